package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
)

// ParseContentType extracts the boundary from a multipart/form-data Content-Type header value.
func ParseContentType(v string) (string, error) {
	typ, params, err := mime.ParseMediaType(v)
	if err != nil {
		return "", err
	}
	if typ != "multipart/form-data" {
		return "", fmt.Errorf("unexpected media type %q", typ)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return "", errors.New("missing boundary parameter")
	}
	return boundary, nil
}

// Decode reads a multipart/form-data payload back into a form.
// Parts with a filename parameter are decoded as files with their content buffered in memory.
// Filenames are kept as sent, including any directory components.
func Decode(src io.Reader, boundary string) (Form, error) {
	mr := multipart.NewReader(src, boundary)
	form := Form{}
	for i := 0; ; i++ {
		p, err := mr.NextRawPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part[%d]: %w", i, err)
		}

		_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
		if err != nil {
			return nil, fmt.Errorf("invalid disposition of part[%d]: %w", i, err)
		}

		dat, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read part[%d]: %w", i, err)
		}

		name := params["name"]
		if filename, ok := params["filename"]; ok {
			form.AddFile(name, &File{
				Name:    filename,
				Type:    p.Header.Get("Content-Type"),
				Content: bytes.NewReader(dat),
			})
		} else {
			form.Add(name, string(dat))
		}
	}
}
