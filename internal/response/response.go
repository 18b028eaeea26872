// Package response provides the reply envelope shared by the upload handlers.
package response

import (
	"encoding/json"
	"net/http"
)

// Reply is a status code, a body and optional headers.
type Reply struct {
	Status  int
	Body    string
	Headers map[string]string
}

// Format builds a Reply. A zero status means 200.
func Format(message string, status int, headers map[string]string) Reply {
	if status == 0 {
		status = http.StatusOK
	}
	return Reply{Status: status, Body: message, Headers: headers}
}

// OK builds a 200 reply with a plain-text body.
func OK(message string) Reply {
	return Format(message, http.StatusOK, nil)
}

// Error builds a reply with the given status and message.
func Error(status int, message string) Reply {
	return Format(message, status, nil)
}

// JSON builds a reply whose body is payload encoded as JSON.
func JSON(status int, payload interface{}) (Reply, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}
	return Format(string(b), status, map[string]string{"Content-Type": "application/json"}), nil
}

// Write renders reply on w. Text/plain is used unless reply sets Content-Type.
func Write(w http.ResponseWriter, reply Reply) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for k, v := range reply.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(reply.Status)
	_, _ = w.Write([]byte(reply.Body))
}
