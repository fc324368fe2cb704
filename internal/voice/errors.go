package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/inbox-voice-lab/internal/mailapi"
)

// Error categories. Every failed Outcome wraps exactly one of these.
var (
	ErrUnsupported   = errors.New("speech recognition not supported")
	ErrSessionActive = errors.New("recognition session already active")
	ErrBusy          = errors.New("classification already in flight")
	ErrRecognition   = errors.New("recognition error")
	ErrTimeout       = errors.New("request timed out")
	ErrNetwork       = errors.New("network failure")
	ErrMalformed     = errors.New("malformed response")
	ErrBackend       = errors.New("backend error")
	ErrPrecondition  = errors.New("precondition unmet")
	ErrUnknownIntent = errors.New("unknown intent")
)

// User-facing messages.
const (
	MsgUnsupported    = "Speech recognition not supported"
	MsgListening      = "Listening..."
	MsgAlreadyActive  = "Already listening"
	MsgBusy           = "Still processing the previous command"
	MsgTimeout        = "Request timed out. Please try again."
	MsgCannotConnect  = "Cannot connect to server. Please check your connection."
	MsgNotFound       = "Endpoint not found. Please check server configuration."
	MsgForbidden      = "Permission denied. Please refresh page."
	MsgServerError    = "Server error. Please try again later."
	MsgNetworkGeneric = "Network error occurred"
	MsgMalformed      = "Server returned invalid response. Please check server configuration."
	MsgNotRecognized  = "Command not recognized"
)

// SpokenNotRecognized is spoken for every unknown intent.
const SpokenNotRecognized = `Command not recognized. Say "help" for available commands.`

// Error is a categorized failure carrying the message shown to the user.
type Error struct {
	Category error
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Category}
	}
	return []error{e.Category, e.Err}
}

func newError(category error, msg string, cause error) *Error {
	return &Error{Category: category, Message: msg, Err: cause}
}

// fromRequestError turns a backend client error into its category and user
// message. timedOut is set when the controller's own deadline fired; that
// always wins so a timed-out attempt reports only the timeout message.
func fromRequestError(err error, timedOut bool) *Error {
	if timedOut || errors.Is(err, mailapi.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrTimeout, MsgTimeout, err)
	}
	var be *mailapi.BackendError
	if errors.As(err, &be) {
		return newError(ErrBackend, "Error: "+be.Message, err)
	}
	var se *mailapi.StatusError
	if errors.As(err, &se) {
		return newError(ErrNetwork, statusMessage(se.Status), err)
	}
	if errors.Is(err, mailapi.ErrMalformed) {
		return newError(ErrMalformed, MsgMalformed, err)
	}
	if errors.Is(err, mailapi.ErrNetwork) {
		return newError(ErrNetwork, MsgCannotConnect, err)
	}
	return newError(ErrNetwork, MsgNetworkGeneric, err)
}

func statusMessage(status int) string {
	switch {
	case status == 404:
		return MsgNotFound
	case status == 403:
		return MsgForbidden
	case status >= 500:
		return MsgServerError
	default:
		return MsgNetworkGeneric
	}
}

// fromActionError reports a failed page action. Transport failures get the
// same messages as a failed classification; other errors are shown as
// "Error: <message>".
func fromActionError(err error) *Error {
	var ve *Error
	if errors.As(err, &ve) {
		return ve
	}
	var se *mailapi.StatusError
	if errors.Is(err, mailapi.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mailapi.ErrNetwork) || errors.Is(err, mailapi.ErrMalformed) || errors.As(err, &se) {
		return fromRequestError(err, false)
	}
	var be *mailapi.BackendError
	if errors.As(err, &be) {
		return newError(ErrBackend, "Error: "+be.Message, err)
	}
	return newError(ErrBackend, "Error: "+err.Error(), err)
}
