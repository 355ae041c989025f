package formdata

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// ErrUnsupportedCompression indicates an unknown compression algorithm.
var ErrUnsupportedCompression = errors.New("unsupported compression algorithm")

// Decompress wraps a compressed payload in a decompressor.
// This package supports "gzip", "zstd" and "lz4".
func Decompress(algo string, src io.Reader) (io.ReadCloser, error) {
	switch algo {
	case "gzip":
		return gzip.NewReader(src)
	case "zstd":
		d, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case "lz4":
		return io.NopCloser(lz4.NewReader(src)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, algo)
	}
}

// compress wraps dst in a compressor.
// A level of 0 selects the default level of the algorithm.
func compress(algo string, level int, dst io.Writer) (io.WriteCloser, error) {
	switch algo {
	case "gzip":
		if level == 0 {
			return gzip.NewWriter(dst), nil
		}
		return gzip.NewWriterLevel(dst, level)
	case "zstd":
		if level == 0 {
			return zstd.NewWriter(dst)
		}
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	case "lz4":
		w := lz4.NewWriter(dst)
		w.Header.CompressionLevel = level
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, algo)
	}
}

// Compressed returns a reader over the compressed body.
// Compression runs in a separate goroutine, which exits when the reader is drained or closed.
// Closing the returned reader waits for that goroutine, but does not close the body.
func (b *Body) Compressed(algo string, level int) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	z, err := compress(algo, level, pw)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := io.Copy(z, b)
		if cerr := z.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	return &compressedReader{PipeReader: pr, done: done}, nil
}

type compressedReader struct {
	*io.PipeReader
	done chan struct{}
}

func (cr *compressedReader) Close() error {
	err := cr.PipeReader.Close()
	<-cr.done
	return err
}
