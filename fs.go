package formdata

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EncodeOptions are a set of options for adding files from the filesystem to a form.
// They may be used with EncodeFiles.
type EncodeOptions struct {
	// Base path which should be used for filenames.
	// Filenames will be relative to this path, using forward slashes.
	// By default, it will be the parent of the path provided to EncodeFiles,
	// so a single file is sent with its base name.
	Base string
}

// EncodeFiles adds every regular file under a path to the form, in lexical order.
// Every file is added under the same field name.
// Files are not opened until the form is encoded.
func EncodeFiles(form *Form, field, path string, opts EncodeOptions) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if opts.Base == "" {
		opts.Base = filepath.Dir(path)
	}
	opts.Base, err = filepath.Abs(opts.Base)
	if err != nil {
		return err
	}

	return filepath.WalkDir(path, func(path string, d fs.DirEntry, err error) error {
		// dont try to handle inaccessible files
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return nil
		case d.Type().IsRegular():
			rel, err := filepath.Rel(opts.Base, path)
			if err != nil {
				return err
			}

			file, err := OpenFile(path)
			if err != nil {
				return err
			}
			file.Name = filepath.ToSlash(rel)

			form.AddFile(field, file)
			return nil
		default:
			// error if we dont know what to do with a special file
			return fmt.Errorf("unsupported special file: %s", path)
		}
	})
}

// DecodeOptions is a set of options for writing files from a form into the filesystem.
type DecodeOptions struct {
	// Base is the directory from which filenames will be resolved.
	// Defaults to the working directory.
	Base string

	// Permissions are the permission codes of created files.
	// Defaults to 640.
	Permissions os.FileMode
}

// ErrUnsafePath indicates a filename which would resolve outside of the base directory.
var ErrUnsafePath = errors.New("unsafe file path")

// DecodeFiles writes the file fields of a form into the filesystem.
// Text fields are ignored, as are files with an empty filename, which browsers send for an empty file input.
func DecodeFiles(form Form, opts DecodeOptions) error {
	if opts.Permissions == 0 {
		opts.Permissions = 0640
	}
	if opts.Base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		opts.Base = wd
	}

	for _, field := range form {
		file, ok := field.Value.(*File)
		if !ok || file == nil || file.Name == "" {
			continue
		}

		path, err := resolve(opts.Base, file.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return err
		}

		if err := writeFile(path, file, opts.Permissions); err != nil {
			return fmt.Errorf("failed to write %q: %w", file.Name, err)
		}
	}
	return nil
}

// resolve joins a filename onto the base, rejecting names which escape it.
func resolve(base, name string) (string, error) {
	if name == "" || filepath.IsAbs(filepath.FromSlash(name)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	path := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return path, nil
}

func writeFile(path string, file *File, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if r := file.reader(); r != nil {
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
	}

	return f.Close()
}
