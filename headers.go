package formdata

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// lineBreak separates every pair of adjacent chunks in a payload.
const lineBreak = "\r\n"

// dispositionLine is the header line which starts a text part.
// Names are not escaped.
func dispositionLine(name string) string {
	return `Content-Disposition: form-data; name="` + name + `"`
}

// fileDispositionLine is the header line which starts a file part.
func fileDispositionLine(name, filename string) string {
	return dispositionLine(name) + `; filename="` + filename + `"`
}

func contentTypeLine(typ string) string {
	return "Content-Type: " + typ
}

func openingBoundary(boundary string) string {
	return "--" + boundary
}

func closingBoundary(boundary string) string {
	return "--" + boundary + "--"
}

// ErrInvalidBoundary indicates that a boundary does not meet the requirements of RFC 2046.
var ErrInvalidBoundary = errors.New("invalid boundary")

// CheckBoundary checks that a boundary is 1-70 characters from the RFC 2046 boundary alphabet,
// and does not end with a space.
// Encoding does not require this check.
func CheckBoundary(boundary string) error {
	if len(boundary) < 1 || len(boundary) > 70 {
		return fmt.Errorf("%w: length %d is outside of 1-70", ErrInvalidBoundary, len(boundary))
	}
	for _, c := range boundary {
		if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
			continue
		}
		switch c {
		case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?', ' ':
			continue
		}
		return fmt.Errorf("%w: illegal character %q", ErrInvalidBoundary, c)
	}
	if strings.HasSuffix(boundary, " ") {
		return fmt.Errorf("%w: trailing space", ErrInvalidBoundary)
	}
	return nil
}

// RandomBoundary generates a random 60 character hex boundary.
func RandomBoundary() (string, error) {
	var buf [30]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate boundary: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// ErrUnsafeHeader indicates a field name or filename which would corrupt the part headers.
var ErrUnsafeHeader = errors.New("unsafe header value")

// CheckNames checks that no field name or filename contains a double quote or line break.
// Such values are written verbatim by the encoder, so this must be used to reject them if needed.
func CheckNames(fields []Field) error {
	for i, f := range fields {
		if strings.ContainsAny(f.Name, "\"\r\n") {
			return fmt.Errorf("%w: field[%d] name %q", ErrUnsafeHeader, i, f.Name)
		}
		file, ok := f.Value.(*File)
		if !ok || file == nil {
			continue
		}
		if strings.ContainsAny(file.Name, "\"\r\n") {
			return fmt.Errorf("%w: field[%d] filename %q", ErrUnsafeHeader, i, file.Name)
		}
		if strings.ContainsAny(file.Type, "\r\n") {
			return fmt.Errorf("%w: field[%d] content type %q", ErrUnsafeHeader, i, file.Type)
		}
	}
	return nil
}
