// formdata builds multipart/form-data bodies from the command line, and unpacks them.
//
// Encoding:
//
//	formdata [flags] name=value name@path[;type=media/type] ...
//
// The body is written to --output, or sent to --url.
//
// Decoding:
//
//	formdata -d --content-type 'multipart/form-data; boundary=...' -i body.bin -C out/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jaddr2line/formdata"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	decode      bool
	boundary    string
	contentType string
	compression string
	level       int
	formPath    string
	input       string
	output      string
	url         string
	method      string
	dir         string
	list        bool
	check       bool
	verbose     bool
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("formdata", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVarP(&opts.decode, "decode", "d", false, "decode a body instead of encoding one")
	flagSet.StringVarP(&opts.boundary, "boundary", "b", "", "boundary token (random when encoding if empty)")
	flagSet.StringVar(&opts.contentType, "content-type", "", "Content-Type header to take the boundary from when decoding")
	flagSet.StringVarP(&opts.compression, "compress", "z", "", "content encoding to apply or remove (gzip/zstd/lz4)")
	flagSet.IntVarP(&opts.level, "level", "l", 0, "compression level")
	flagSet.StringVarP(&opts.formPath, "form", "f", "", "YAML form file")
	flagSet.StringVarP(&opts.input, "input", "i", "-", "body to decode (path, - or http(s) URL)")
	flagSet.StringVarP(&opts.output, "output", "o", "-", "destination of the encoded body")
	flagSet.StringVarP(&opts.url, "url", "u", "", "send the encoded body to this URL")
	flagSet.StringVarP(&opts.method, "method", "X", http.MethodPost, "HTTP method used with --url")
	flagSet.StringVarP(&opts.dir, "dir", "C", ".", "directory to extract decoded files into")
	flagSet.BoolVarP(&opts.list, "list", "t", false, "list decoded fields instead of extracting files")
	flagSet.BoolVar(&opts.check, "check", false, "reject invalid boundaries and unsafe names before encoding")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug information")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if opts.decode {
		return decodeCmd(opts, logger, stdout)
	}
	return encodeCmd(flagSet.Args(), opts, logger, stdout)
}

func encodeCmd(args []string, opts options, logger *slog.Logger, stdout io.Writer) error {
	var form formdata.Form
	if opts.formPath != "" {
		ff, err := loadFormFile(opts.formPath)
		if err != nil {
			return err
		}
		form, err = ff.form(filepath.Dir(opts.formPath))
		if err != nil {
			return err
		}
		if opts.boundary == "" {
			opts.boundary = ff.Boundary
		}
		if opts.compression == "" {
			opts.compression = ff.Compression
			opts.level = ff.Level
		}
	}
	for _, arg := range args {
		field, err := parseArg(arg)
		if err != nil {
			return err
		}
		form = append(form, field)
	}

	if opts.boundary == "" {
		boundary, err := formdata.RandomBoundary()
		if err != nil {
			return err
		}
		opts.boundary = boundary
	}
	if opts.check {
		if err := formdata.CheckBoundary(opts.boundary); err != nil {
			return err
		}
		if err := formdata.CheckNames(form); err != nil {
			return err
		}
	}

	body := formdata.NewBody(form, opts.boundary)
	defer body.Close()
	logger.Debug("encoding form",
		"fields", len(form),
		"boundary", opts.boundary,
		"content_length", body.ContentLength(),
		"compression", opts.compression,
	)

	if opts.url != "" {
		return send(opts, body, logger, stdout)
	}

	var dst io.Writer = stdout
	var out *os.File
	if opts.output != "-" {
		f, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
		if err != nil {
			return err
		}
		defer f.Close()
		dst, out = f, f
	}

	var src io.Reader = body
	if opts.compression != "" {
		zr, err := body.Compressed(opts.compression, opts.level)
		if err != nil {
			return err
		}
		defer zr.Close()
		src = zr
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("failed to write body: %w", err)
	}
	if out != nil {
		if err := out.Close(); err != nil {
			return err
		}
	}
	logger.Info("wrote body", "bytes", n, "content_type", body.ContentType())
	return nil
}

func send(opts options, body *formdata.Body, logger *slog.Logger, stdout io.Writer) error {
	req, err := formdata.NewRequest(context.Background(), opts.url, body, formdata.RequestOptions{
		Method:           opts.method,
		Compression:      opts.compression,
		CompressionLevel: opts.level,
	})
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	logger.Info("sent body", "url", opts.url, "status", resp.Status)

	if _, err := io.Copy(stdout, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	return nil
}

func decodeCmd(opts options, logger *slog.Logger, stdout io.Writer) error {
	src, contentType, encoding, err := openInput(opts.input)
	if err != nil {
		return err
	}
	defer src.Close()

	if opts.contentType != "" {
		contentType = opts.contentType
	}
	boundary := opts.boundary
	if boundary == "" {
		if contentType == "" {
			return errors.New("a boundary or content type is required to decode")
		}
		boundary, err = formdata.ParseContentType(contentType)
		if err != nil {
			return err
		}
	}

	if opts.compression != "" {
		encoding = opts.compression
	}
	var r io.Reader = src
	if encoding != "" && encoding != "identity" {
		zr, err := formdata.Decompress(encoding, src)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	}

	form, err := formdata.Decode(r, boundary)
	if err != nil {
		return err
	}
	logger.Debug("decoded form", "fields", len(form), "boundary", boundary)

	if opts.list {
		for _, field := range form {
			switch v := field.Value.(type) {
			case formdata.Text:
				fmt.Fprintf(stdout, "%s: %q\n", field.Name, string(v))
			case *formdata.File:
				size := formdata.ContentChunk(v.Content).Size()
				fmt.Fprintf(stdout, "%s: file %q (%s, %d bytes)\n", field.Name, v.Name, v.Type, size)
			}
		}
		return nil
	}

	if err := formdata.DecodeFiles(form, formdata.DecodeOptions{Base: opts.dir}); err != nil {
		return err
	}
	for _, field := range form {
		if file, ok := field.Value.(*formdata.File); ok {
			logger.Info("extracted file", "field", field.Name, "name", file.Name)
		}
	}
	return nil
}

// openInput opens a body to decode, returning any Content-Type and Content-Encoding known for it.
func openInput(input string) (io.ReadCloser, string, string, error) {
	if input == "-" {
		return io.NopCloser(os.Stdin), "", "", nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, "", "", err
	}
	switch u.Scheme {
	case "", "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, "", "", err
		}
		return f, "", "", nil
	case "http", "https":
		resp, err := http.Get(u.String())
		if err != nil {
			return nil, "", "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", "", fmt.Errorf("failed to download: %s", resp.Status)
		}
		return resp.Body, resp.Header.Get("Content-Type"), resp.Header.Get("Content-Encoding"), nil
	default:
		return nil, "", "", errors.New("unsupported url scheme")
	}
}
