package ui

import "sync/atomic"

// Echo is a voice.Speaker that prints what would be spoken. Output is
// immediate, so it is never mid-utterance.
type Echo struct {
	term   *Terminal
	spoken atomic.Int64
}

func NewEcho(t *Terminal) *Echo { return &Echo{term: t} }

func (e *Echo) Speak(text string) error {
	e.spoken.Add(1)
	e.term.mu.Lock()
	defer e.term.mu.Unlock()
	e.term.writeLocked(e.term.st.meta.Render("» " + text))
	return nil
}

func (e *Echo) Cancel() {}

func (e *Echo) Speaking() bool { return false }

// Spoken counts utterances so far.
func (e *Echo) Spoken() int64 { return e.spoken.Load() }
