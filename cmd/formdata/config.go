package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaddr2line/formdata"
	"gopkg.in/yaml.v3"
)

// formFile is a YAML description of a form.
type formFile struct {
	// Boundary is the boundary to use, unless one is set on the command line.
	Boundary string `yaml:"boundary"`

	// Compression is the Content-Encoding to apply.
	Compression string `yaml:"compression"`

	// Level is the compression level.
	Level int `yaml:"level"`

	// Fields are the form fields, in order.
	Fields []fieldSpec `yaml:"fields"`
}

// fieldSpec describes one field.
// Exactly one of Value and File must be set.
type fieldSpec struct {
	Name string `yaml:"name"`

	// Value is the text value.
	Value *string `yaml:"value"`

	// File is the path of a file to attach.
	// Relative paths are resolved against the directory of the form file.
	File string `yaml:"file"`

	// Filename overrides the filename sent for File.
	Filename string `yaml:"filename"`

	// Type overrides the media type guessed for File.
	Type string `yaml:"type"`
}

func loadFormFile(path string) (*formFile, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(dat))
	dec.KnownFields(true)
	var ff formFile
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("failed to parse form file %q: %w", path, err)
	}
	return &ff, nil
}

// form converts the field specs into a form.
func (ff *formFile) form(dir string) (formdata.Form, error) {
	form := make(formdata.Form, 0, len(ff.Fields))
	for i, spec := range ff.Fields {
		field, err := spec.field(dir)
		if err != nil {
			return nil, fmt.Errorf("field[%d]: %w", i, err)
		}
		form = append(form, field)
	}
	return form, nil
}

func (s fieldSpec) field(dir string) (formdata.Field, error) {
	switch {
	case s.Value != nil && s.File != "":
		return formdata.Field{}, fmt.Errorf("field %q has both a value and a file", s.Name)
	case s.Value != nil:
		return formdata.TextField(s.Name, *s.Value), nil
	case s.File != "":
		path := s.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		file, err := formdata.OpenFile(path)
		if err != nil {
			return formdata.Field{}, err
		}
		if s.Filename != "" {
			file.Name = s.Filename
		}
		if s.Type != "" {
			file.Type = s.Type
		}
		return formdata.FileField(s.Name, file), nil
	default:
		return formdata.Field{}, fmt.Errorf("field %q has neither a value nor a file", s.Name)
	}
}

// parseArg parses a command line field.
// "name=value" is a text field, and "name@path" attaches a file.
// A file may be suffixed with ";type=<media type>" to override its media type.
func parseArg(arg string) (formdata.Field, error) {
	i := strings.IndexAny(arg, "=@")
	if i < 1 {
		return formdata.Field{}, fmt.Errorf("invalid field %q: expected name=value or name@path", arg)
	}
	name, rest := arg[:i], arg[i+1:]

	if arg[i] == '=' {
		return formdata.TextField(name, rest), nil
	}

	path, typ, hasType := strings.Cut(rest, ";type=")
	if path == "" {
		return formdata.Field{}, errors.New("missing file path in " + arg)
	}
	file, err := formdata.OpenFile(path)
	if err != nil {
		return formdata.Field{}, err
	}
	if hasType {
		file.Type = typ
	}
	return formdata.FileField(name, file), nil
}
