// Package formdata encodes ordered form fields into multipart/form-data payloads.
// Text and file fields are framed with a caller supplied boundary and joined with CRLF line breaks,
// producing a body suitable for an HTTP request with the header "Content-Type: multipart/form-data; boundary=<token>".
package formdata
