package mailapi

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout reports a request cut off by its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrNetwork reports a transport failure or an open circuit.
	ErrNetwork = errors.New("network failure")
	// ErrMalformed reports a body that is not the expected JSON.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx response that carried no backend error message.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// BackendError is an {"ok": false, "error": ...} reply.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}
