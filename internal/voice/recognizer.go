package voice

import (
	"errors"
	"strings"
	"sync"
)

// RecognitionOptions configures one recognition session.
type RecognitionOptions struct {
	Continuous     bool
	InterimResults bool
	Lang           string
}

// RecognitionHandler receives the callbacks of one session. OnEnd is called
// exactly once per session, after any OnResult or OnError.
type RecognitionHandler interface {
	OnResult(transcript string)
	OnError(err error)
	OnEnd()
}

// Recognizer is a speech-to-text engine. Stop is idempotent.
type Recognizer interface {
	Start(opts RecognitionOptions, h RecognitionHandler) error
	Stop() error
}

var (
	errEngineBusy = errors.New("recognition already started")
	errNoSpeech   = errors.New("no-speech")
)

// LineRecognizer treats the next typed line as the final transcript. The
// terminal loop feeds it while it is armed.
type LineRecognizer struct {
	mu    sync.Mutex
	armed bool
	h     RecognitionHandler
}

func NewLineRecognizer() *LineRecognizer { return &LineRecognizer{} }

func (r *LineRecognizer) Start(_ RecognitionOptions, h RecognitionHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.armed {
		return errEngineBusy
	}
	r.armed = true
	r.h = h
	return nil
}

// Armed reports whether a session is waiting for a line.
func (r *LineRecognizer) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Feed delivers line to the armed session and ends it. A blank line is a
// no-speech error. It returns false when no session is armed.
func (r *LineRecognizer) Feed(line string) bool {
	r.mu.Lock()
	if !r.armed {
		r.mu.Unlock()
		return false
	}
	h := r.h
	r.armed = false
	r.h = nil
	r.mu.Unlock()

	if strings.TrimSpace(line) == "" {
		h.OnError(errNoSpeech)
	} else {
		h.OnResult(line)
	}
	h.OnEnd()
	return true
}

func (r *LineRecognizer) Stop() error {
	r.mu.Lock()
	if !r.armed {
		r.mu.Unlock()
		return nil
	}
	h := r.h
	r.armed = false
	r.h = nil
	r.mu.Unlock()
	h.OnEnd()
	return nil
}
