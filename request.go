package formdata

import (
	"context"
	"io"
	"net/http"
)

// RequestOptions control how a body is attached to an HTTP request.
type RequestOptions struct {
	// Method is the HTTP method.
	// Defaults to POST.
	Method string

	// Compression is the Content-Encoding to apply to the body.
	// This package supports "gzip", "zstd" and "lz4".
	// Defaults to no compression.
	Compression string

	// CompressionLevel is the level of compression to use.
	// Uses a sane default if omitted.
	CompressionLevel int
}

// NewRequest creates an HTTP request which sends the body.
// The Content-Type header is set from the body boundary.
// The request takes ownership of the body, which is closed by the transport after sending,
// or before returning if the request cannot be created.
func NewRequest(ctx context.Context, url string, body *Body, opts RequestOptions) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}

	var src io.Reader = body
	length := body.ContentLength()
	if opts.Compression != "" {
		zr, err := body.Compressed(opts.Compression, opts.CompressionLevel)
		if err != nil {
			body.Close()
			return nil, err
		}
		src = &compressedBody{ReadCloser: zr, body: body}
		length = -1
	}

	req, err := http.NewRequestWithContext(ctx, method, url, src)
	if err != nil {
		if c, ok := src.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", body.ContentType())
	if opts.Compression != "" {
		req.Header.Set("Content-Encoding", opts.Compression)
	}
	return req, nil
}

// compressedBody closes both the compressed stream and the underlying body.
type compressedBody struct {
	io.ReadCloser
	body *Body
}

func (cb *compressedBody) Close() error {
	err := cb.ReadCloser.Close()
	if berr := cb.body.Close(); err == nil {
		err = berr
	}
	return err
}
