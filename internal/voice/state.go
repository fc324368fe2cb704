package voice

// State is the controller's session state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Phase tags a feedback message. The UI shows its spinner only for
// PhaseListening and PhaseProcessing and auto-hides PhaseSuccess and
// PhaseInfo messages.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseListening  Phase = "listening"
	PhaseProcessing Phase = "processing"
	PhaseError      Phase = "error"
	PhaseSuccess    Phase = "success"
	PhaseInfo       Phase = "info"
)

// Busy reports whether the spinner should be visible for p.
func (p Phase) Busy() bool {
	return p == PhaseListening || p == PhaseProcessing
}

// Transient reports whether feedback in phase p hides itself after a delay.
func (p Phase) Transient() bool {
	return p == PhaseSuccess || p == PhaseInfo
}
