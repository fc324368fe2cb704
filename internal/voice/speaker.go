package voice

// Speaker plays spoken output. Speak interrupts whatever is still playing, so
// at most one utterance is pending at a time. Cancel is idempotent.
type Speaker interface {
	Speak(text string) error
	Cancel()
	Speaking() bool
}

type silentSpeaker struct{}

func (silentSpeaker) Speak(string) error { return nil }
func (silentSpeaker) Cancel()            {}
func (silentSpeaker) Speaking() bool     { return false }

type hiddenFeedback struct{}

func (hiddenFeedback) Show(string, Phase) {}
func (hiddenFeedback) Hide()              {}
