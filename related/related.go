// Package related encodes and decodes multipart/related message bodies
// (RFC 2046), the framing DICOMweb uses to transport binary DICOM payloads
// over HTTP. Parts are opaque byte payloads; each part's Content-Type matches
// the outer "type" parameter by convention.
package related

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// MultipartFormatError indicates a multipart body or content type that could
// not be parsed: a Content-Type missing its boundary or type parameter, or
// malformed/unterminated boundary markers.
type MultipartFormatError struct {
	Msg string
}

func (e *MultipartFormatError) Error() string {
	return "multipart format error: " + e.Msg
}

// Decoder controls how multipart bodies are decoded.
type Decoder struct {
	// SkipNestedMultipart drops parts that declare a multipart media type of
	// their own. Some servers wrap a single-frame response in a redundant
	// multipart envelope; such parts are structural markers, not payloads.
	// Recursing into genuinely nested multiparts is not supported.
	SkipNestedMultipart bool
}

// Decode splits a multipart/related body into its ordered leaf payloads using
// the default decoder, which skips redundant nested multipart markers.
func Decode(body []byte, contentType string) ([][]byte, error) {
	return Decoder{SkipNestedMultipart: true}.Decode(body, contentType)
}

// Decode splits body on the boundary declared in contentType and returns the
// payload of each part with its transfer encoding undone.
func (d Decoder) Decode(body []byte, contentType string) ([][]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &MultipartFormatError{Msg: fmt.Sprintf("parse content type %q: %v", contentType, err)}
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, &MultipartFormatError{Msg: fmt.Sprintf("content type %q has no boundary parameter", contentType)}
	}

	var parts [][]byte
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			return nil, &MultipartFormatError{Msg: fmt.Sprintf("read part: %v", err)}
		}

		if d.SkipNestedMultipart && isMultipart(part.Header.Get("Content-Type")) {
			_ = part.Close()
			continue
		}

		payload, err := readPayload(part)
		_ = part.Close()
		if err != nil {
			return nil, &MultipartFormatError{Msg: fmt.Sprintf("read part payload: %v", err)}
		}
		parts = append(parts, payload)
	}
}

// Encode frames the given payloads as a multipart/related body. contentType
// must carry both a "boundary" and an inner-part media "type" parameter, e.g.
//
//	multipart/related; type="application/dicom"; boundary="xyz"
//
// Payloads are inserted as raw bytes; no transfer encoding is applied.
func Encode(parts [][]byte, contentType string) ([]byte, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &MultipartFormatError{Msg: fmt.Sprintf("parse content type %q: %v", contentType, err)}
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, &MultipartFormatError{Msg: fmt.Sprintf("content type %q has no boundary parameter", contentType)}
	}
	partType, ok := params["type"]
	if !ok {
		return nil, &MultipartFormatError{Msg: fmt.Sprintf("content type %q has no type parameter", contentType)}
	}

	var buf bytes.Buffer
	for _, part := range parts {
		fmt.Fprintf(&buf, "\r\n--%s\r\nContent-Type: %s\r\n\r\n", boundary, partType)
		buf.Write(part)
	}
	fmt.Fprintf(&buf, "\r\n--%s--", boundary)
	return buf.Bytes(), nil
}

// isMultipart reports whether a part's own Content-Type declares a multipart
// media type.
func isMultipart(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "multipart/")
}

// readPayload drains a part, reversing its Content-Transfer-Encoding.
// mime/multipart decodes quoted-printable transparently; base64 is undone
// here.
func readPayload(part *multipart.Part) ([]byte, error) {
	var r io.Reader = part
	if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
		r = base64.NewDecoder(base64.StdEncoding, part)
	}
	return io.ReadAll(r)
}
