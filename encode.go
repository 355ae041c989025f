package formdata

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// Chunk is a single piece of a payload, either header text or content.
type Chunk struct {
	text string
	body io.Reader
}

// TextChunk creates a chunk of text.
func TextChunk(s string) Chunk {
	return Chunk{text: s}
}

// ContentChunk creates a chunk which copies raw content from a reader.
func ContentChunk(r io.Reader) Chunk {
	return Chunk{body: r}
}

// Reader returns a reader over the bytes of the chunk.
func (c Chunk) Reader() io.Reader {
	if c.body != nil {
		return c.body
	}
	return strings.NewReader(c.text)
}

// Size returns the number of bytes in the chunk, or -1 if it is not known.
func (c Chunk) Size() int64 {
	if c.body == nil {
		return int64(len(c.text))
	}
	switch r := c.body.(type) {
	case interface{ Len() int }:
		return int64(r.Len())
	case interface{ Size() int64 }:
		return r.Size()
	default:
		return -1
	}
}

// separator is the empty chunk between part headers and content.
var separator = TextChunk("")

// Part is the encoded form of a single field.
// It holds the header lines, an empty separator, and the content.
type Part struct {
	Chunks []Chunk
}

// Extract converts fields to parts, in order.
// Fields with unsupported values are skipped.
func Extract(fields []Field) []Part {
	parts := make([]Part, 0, len(fields))
	for _, f := range fields {
		if !Supported(f.Value) {
			continue
		}
		parts = append(parts, extractPart(f))
	}
	return parts
}

func extractPart(f Field) Part {
	switch v := f.Value.(type) {
	case Text:
		return Part{Chunks: []Chunk{
			TextChunk(dispositionLine(f.Name)),
			separator,
			TextChunk(string(v)),
		}}
	case *File:
		chunks := make([]Chunk, 0, 4)
		chunks = append(chunks, TextChunk(fileDispositionLine(f.Name, v.Name)))
		if v.Type != "" {
			chunks = append(chunks, TextChunk(contentTypeLine(v.Type)))
		}
		content := TextChunk("")
		if r := v.reader(); r != nil {
			content = ContentChunk(r)
		}
		return Part{Chunks: append(chunks, separator, content)}
	default:
		panic("unsupported form value")
	}
}

// Frame places an opening boundary line before each part, and appends the closing boundary line.
func Frame(parts []Part, boundary string) []Chunk {
	n := 1
	for _, p := range parts {
		n += 1 + len(p.Chunks)
	}

	chunks := make([]Chunk, 0, n)
	open := TextChunk(openingBoundary(boundary))
	for _, p := range parts {
		chunks = append(chunks, open)
		chunks = append(chunks, p.Chunks...)
	}
	return append(chunks, TextChunk(closingBoundary(boundary)))
}

// Assemble joins chunks with a single CRLF between each pair.
// There is no trailing CRLF.
func Assemble(chunks []Chunk) io.Reader {
	readers := make([]io.Reader, 0, 2*len(chunks))
	for i, c := range chunks {
		if i > 0 {
			readers = append(readers, strings.NewReader(lineBreak))
		}
		readers = append(readers, c.Reader())
	}
	return io.MultiReader(readers...)
}

// assembledSize is the size of the assembled chunks, or -1 if not known.
func assembledSize(chunks []Chunk) int64 {
	if len(chunks) == 0 {
		return 0
	}
	size := int64(len(lineBreak) * (len(chunks) - 1))
	for _, c := range chunks {
		n := c.Size()
		if n < 0 {
			return -1
		}
		size += n
	}
	return size
}

// Body is a streaming multipart/form-data payload.
type Body struct {
	io.Reader
	boundary string
	size     int64
	closers  []io.Closer
}

// NewBody creates a payload from fields using the given boundary.
// The boundary is not validated.
// File content is read as the body is read.
// Each body reads its own copy of rereadable file content, so the same fields may be encoded again.
func NewBody(fields []Field, boundary string) *Body {
	chunks := Frame(Extract(fields), boundary)

	var closers []io.Closer
	for _, c := range chunks {
		if cl, ok := c.body.(io.Closer); ok {
			closers = append(closers, cl)
		}
	}

	return &Body{
		Reader:   Assemble(chunks),
		boundary: boundary,
		size:     assembledSize(chunks),
		closers:  closers,
	}
}

// Boundary is the boundary separating the parts.
func (b *Body) Boundary() string {
	return b.boundary
}

// ContentType is the value of the Content-Type header to send with the body.
func (b *Body) ContentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

// ContentLength is the total size of the body.
// It is -1 if the size of some file content is not known.
func (b *Body) ContentLength() int64 {
	return b.size
}

// Close closes the content readers used by the body which implement io.Closer.
// This includes files from OpenFile opened for this body, but not content which is reread through ReadAt.
func (b *Body) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Encode reads the entire payload of fields into memory.
// Errors reading file content are returned unchanged.
func Encode(fields []Field, boundary string) ([]byte, error) {
	body := NewBody(fields, boundary)

	var buf bytes.Buffer
	if body.size > 0 {
		buf.Grow(int(body.size))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
