// Package formdata extracts the first file part of a multipart/form-data body.
package formdata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// ErrMalformedBody is returned when the body does not match the multipart
// structure its content type declares.
var ErrMalformedBody = errors.New("malformed multipart body")

const defaultContentType = "application/octet-stream"

// Part is the decoded first part of a multipart body.
type Part struct {
	Data        []byte
	FieldName   string
	FileName    string
	ContentType string
}

// Decode returns the first part of body, split on the boundary declared in
// contentType. Part bytes are returned as sent: no transfer encoding is
// undone. The whole body is validated up to the end of that part: a
// boundary that never appears, a truncated part or an empty payload all fail
// with ErrMalformedBody.
func Decode(body []byte, contentType string) (Part, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return Part{}, fmt.Errorf("%w: content type %q: %v", ErrMalformedBody, contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return Part{}, fmt.Errorf("%w: content type %q is not multipart", ErrMalformedBody, mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return Part{}, fmt.Errorf("%w: no boundary in content type", ErrMalformedBody)
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	p, err := reader.NextRawPart()
	if err == io.EOF {
		return Part{}, fmt.Errorf("%w: body has no parts", ErrMalformedBody)
	}
	if err != nil {
		return Part{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	defer p.Close()

	data, err := io.ReadAll(p)
	if err != nil {
		return Part{}, fmt.Errorf("%w: reading first part: %v", ErrMalformedBody, err)
	}
	if len(data) == 0 {
		return Part{}, fmt.Errorf("%w: first part carries no payload", ErrMalformedBody)
	}

	ct := p.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}

	return Part{
		Data:        data,
		FieldName:   p.FormName(),
		FileName:    p.FileName(),
		ContentType: ct,
	}, nil
}
