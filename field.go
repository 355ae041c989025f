package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// Value is the value of a form field.
// It is either Text or *File.
type Value interface {
	formValue()
}

// Text is a plain text field value.
type Text string

func (Text) formValue() {}

// File is a file attachment.
type File struct {
	// Name is the filename sent in the Content-Disposition header.
	Name string

	// Type is the media type of the file.
	// The Content-Type header is omitted when this is empty.
	Type string

	// Content is the raw content of the file.
	// It is copied to the payload unmodified.
	// Content with a ReadAt and Size method, such as *bytes.Reader, and files from OpenFile
	// are read from the start on every encode.
	// Other readers are consumed by the first encode.
	Content io.Reader
}

func (*File) formValue() {}

// sizedReaderAt is content which can be read again from the start.
type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// reader returns a new reader over the whole content, or the content itself if it cannot be reread.
func (f *File) reader() io.Reader {
	switch c := f.Content.(type) {
	case nil:
		return nil
	case *lazyFile:
		return c.reopen()
	case sizedReaderAt:
		return io.NewSectionReader(c, 0, c.Size())
	case *os.File:
		info, err := c.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return c
		}
		return io.NewSectionReader(c, 0, info.Size())
	default:
		return c
	}
}

// NewFile creates a file value with in-memory content.
func NewFile(name, typ string, content []byte) *File {
	return &File{
		Name:    name,
		Type:    typ,
		Content: bytes.NewReader(content),
	}
}

// OpenFile creates a file value backed by a file on disk.
// The media type is guessed from the file extension, and is left empty if unknown.
// Every encode opens the file on first read and closes it once fully read.
// Exactly as many bytes as the file held when OpenFile was called are sent.
func OpenFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path %q is not a regular file", path)
	}
	return &File{
		Name: info.Name(),
		Type: mime.TypeByExtension(filepath.Ext(path)),
		Content: &lazyFile{
			path: path,
			size: info.Size(),
		},
	}, nil
}

// lazyFile is a reader over the first size bytes of a file, which is opened on first read.
type lazyFile struct {
	path string
	size int64
	read int64
	f    *os.File
	done bool
}

// reopen creates an unread copy of the reader.
func (lf *lazyFile) reopen() *lazyFile {
	return &lazyFile{path: lf.path, size: lf.size}
}

func (lf *lazyFile) Read(dst []byte) (int, error) {
	if lf.done {
		return 0, io.EOF
	}
	if lf.read >= lf.size {
		if err := lf.Close(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	if lf.f == nil {
		f, err := os.Open(lf.path)
		if err != nil {
			return 0, err
		}
		lf.f = f
	}

	// bytes appended since OpenFile are not sent
	if rem := lf.size - lf.read; int64(len(dst)) > rem {
		dst = dst[:rem]
	}
	n, err := lf.f.Read(dst)
	lf.read += int64(n)
	if err == io.EOF {
		if cerr := lf.Close(); cerr != nil {
			return n, cerr
		}
		if lf.read < lf.size {
			return n, fmt.Errorf("file %q shrank below %d bytes: %w", lf.path, lf.size, io.ErrUnexpectedEOF)
		}
	}
	return n, err
}

// Size is the size of the file when OpenFile was called.
func (lf *lazyFile) Size() int64 {
	return lf.size
}

func (lf *lazyFile) Close() error {
	lf.done = true
	if lf.f == nil {
		return nil
	}
	err := lf.f.Close()
	lf.f = nil
	return err
}

// Field is a named form value.
type Field struct {
	Name  string
	Value Value
}

// TextField creates a plain text field.
func TextField(name, value string) Field {
	return Field{Name: name, Value: Text(value)}
}

// FileField creates a file attachment field.
func FileField(name string, file *File) Field {
	return Field{Name: name, Value: file}
}

// Supported reports whether a value can be encoded.
// Missing values, including nil files, are not supported and are dropped from payloads.
func Supported(v Value) bool {
	switch v := v.(type) {
	case Text:
		return true
	case *File:
		return v != nil
	default:
		return false
	}
}

// Form is an ordered collection of fields.
// Names may repeat.
type Form []Field

// Add appends a text field.
func (f *Form) Add(name, value string) {
	*f = append(*f, TextField(name, value))
}

// AddFile appends a file field.
func (f *Form) AddFile(name string, file *File) {
	*f = append(*f, FileField(name, file))
}

// Get returns the first value with the given name, or nil if there is none.
func (f Form) Get(name string) Value {
	for _, field := range f {
		if field.Name == name {
			return field.Value
		}
	}
	return nil
}

// Values returns all values with the given name, in order.
func (f Form) Values(name string) []Value {
	var vals []Value
	for _, field := range f {
		if field.Name == name {
			vals = append(vals, field.Value)
		}
	}
	return vals
}

// Supported returns the fields which can be encoded, preserving order.
func (f Form) Supported() Form {
	out := make(Form, 0, len(f))
	for _, field := range f {
		if Supported(field.Value) {
			out = append(out, field)
		}
	}
	return out
}

// Close closes the content of every file which implements io.Closer.
func (f Form) Close() error {
	var errs []error
	for _, field := range f {
		file, ok := field.Value.(*File)
		if !ok || file == nil {
			continue
		}
		if c, ok := file.Content.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close file %q: %w", file.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
