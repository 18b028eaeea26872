// Package upload implements the two upload paths: issuing scoped upload
// credentials and storing small multipart uploads inline.
package upload

import (
	"net/http"
	"strings"
)

// HeaderForwardedFor carries the client address set by the trusted proxy.
const HeaderForwardedFor = "X-Forwarded-For"

// Reply messages.
const (
	msgNoFilename  = "Filename is not defined"
	msgMalformed   = "Malformed request"
	msgNoBody      = "Request body is not defined"
	msgUnreadable  = "Request body could not be read"
	msgTooLarge    = "Request body too large"
	msgUnexpected  = "Unexpected error."
	msgMisconfig   = "service misconfigured"
	msgInlineStore = "OK"
)

// Request is an inbound upload request.
type Request struct {
	Filename string
	// First address of X-Forwarded-For.
	SourceIP    string
	Body        []byte
	ContentType string
}

// ShapeError reports a missing required field.
type ShapeError struct {
	Status  int
	Message string
}

func (e *ShapeError) Error() string {
	return e.Message
}

// ValidateForCredential checks the fields the credential path needs.
func (r Request) ValidateForCredential() error {
	if r.Filename == "" {
		return &ShapeError{Status: http.StatusBadRequest, Message: msgNoFilename}
	}
	if r.SourceIP == "" {
		return &ShapeError{Status: http.StatusUnprocessableEntity, Message: msgMalformed}
	}
	return nil
}

// ValidateForInline checks the fields the inline path needs.
func (r Request) ValidateForInline() error {
	if r.Filename == "" {
		return &ShapeError{Status: http.StatusBadRequest, Message: msgNoFilename}
	}
	if len(r.Body) == 0 {
		return &ShapeError{Status: http.StatusBadRequest, Message: msgNoBody}
	}
	return nil
}

// FirstForwardedIP returns the client entry of an X-Forwarded-For value.
func FirstForwardedIP(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
