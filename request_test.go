package formdata_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jaddr2line/formdata"
)

func TestNewRequest(t *testing.T) {
	in := []testField{
		{Name: "a", Text: "1"},
		{Name: "f", File: true, Filename: "x.txt", Type: "text/plain", Data: "hi"},
	}

	tbl := []struct {
		Opts formdata.RequestOptions
	}{
		{},
		{Opts: formdata.RequestOptions{Method: http.MethodPut}},
		{Opts: formdata.RequestOptions{Compression: "gzip"}},
		{Opts: formdata.RequestOptions{Compression: "zstd", CompressionLevel: 3}},
		{Opts: formdata.RequestOptions{Compression: "lz4"}},
	}
	for _, c := range tbl {
		form := make(formdata.Form, 0, len(in))
		for _, f := range in {
			form = append(form, f.field())
		}
		body := formdata.NewBody(form, "req-boundary")

		type received struct {
			Method   string
			Type     string
			Encoding string
			Length   int64
			Fields   []testField
		}
		var got received
		var handlerErr error
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got.Method = r.Method
			got.Type = r.Header.Get("Content-Type")
			got.Encoding = r.Header.Get("Content-Encoding")
			got.Length = r.ContentLength

			var src io.Reader = r.Body
			if got.Encoding != "" {
				zr, err := formdata.Decompress(got.Encoding, r.Body)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				defer zr.Close()
				src = zr
			}
			boundary, err := formdata.ParseContentType(got.Type)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			form, err := formdata.Decode(src, boundary)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			got.Fields, handlerErr = readFields(form)
			if handlerErr != nil {
				http.Error(w, handlerErr.Error(), http.StatusInternalServerError)
			}
		}))

		req, err := formdata.NewRequest(context.Background(), srv.URL, body, c.Opts)
		if err != nil {
			srv.Close()
			t.Fatalf("failed to create request: %s", err)
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			srv.Close()
			t.Fatalf("failed to send request: %s", err)
		}
		resp.Body.Close()
		srv.Close()
		if handlerErr != nil {
			t.Fatalf("server failed to read fields: %s", handlerErr)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("server rejected request: %s", resp.Status)
		}

		expect := received{
			Method:   c.Opts.Method,
			Type:     "multipart/form-data; boundary=req-boundary",
			Encoding: c.Opts.Compression,
			Length:   body.ContentLength(),
			Fields:   in,
		}
		if expect.Method == "" {
			expect.Method = http.MethodPost
		}
		if expect.Encoding != "" {
			expect.Length = -1
		}
		if diff := cmp.Diff(expect, got); diff != "" {
			t.Errorf("wrong request (-want +got): %s", diff)
		}
	}
}

// closeTracker is single use content which records whether it was closed.
type closeTracker struct {
	io.Reader
	closed bool
}

func (ct *closeTracker) Close() error {
	ct.closed = true
	return nil
}

func TestNewRequestClosesBodyOnError(t *testing.T) {
	tbl := []struct {
		Name string
		URL  string
		Opts formdata.RequestOptions
	}{
		{Name: "unsupported compression", URL: "http://example.com", Opts: formdata.RequestOptions{Compression: "brotli"}},
		{Name: "invalid url", URL: "://bad"},
		{Name: "invalid url compressed", URL: "://bad", Opts: formdata.RequestOptions{Compression: "gzip"}},
	}
	for _, c := range tbl {
		content := &closeTracker{Reader: strings.NewReader("hi")}
		body := formdata.NewBody(formdata.Form{
			formdata.FileField("f", &formdata.File{Name: "f", Content: content}),
		}, "B")

		_, err := formdata.NewRequest(context.Background(), c.URL, body, c.Opts)
		if err == nil {
			t.Errorf("%s: expected error", c.Name)
			continue
		}
		if c.Opts.Compression == "brotli" && !errors.Is(err, formdata.ErrUnsupportedCompression) {
			t.Errorf("%s: expected unsupported compression error but got %v", c.Name, err)
		}
		if !content.closed {
			t.Errorf("%s: body content was not closed", c.Name)
		}
	}
}
