package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inbox-voice-lab/internal/logging"
)

const defaultCommandTimeout = 10 * time.Second

// Deps are the controller's collaborators. A nil Recognizer means speech
// recognition is unsupported, which NewController reports once through
// Feedback; Help, Feedback and Speaker are optional.
type Deps struct {
	Classifier Classifier
	Page       Page
	Help       HelpView
	Feedback   Feedback
	Recognizer Recognizer
	Speaker    Speaker
}

type Options struct {
	// Lang is the fixed recognition locale, "en-US" when empty.
	Lang string
	// CommandTimeout bounds one classification request and one page action.
	CommandTimeout time.Duration
	WakePhrases    []string
	// OnTransition is called under the controller lock and must not call
	// back into the controller.
	OnTransition func(from, to State)
	// OnOutcome receives every finished attempt.
	OnOutcome func(Outcome)
}

// Outcome is the result of one attempt or dispatch. Err wraps one of the
// category errors, context.Canceled for a stopped attempt, or is nil.
type Outcome struct {
	Intent  Intent
	Phase   Phase
	Message string
	Spoken  string
	Err     error
}

// Status is a snapshot for the UI and the control surface.
type Status struct {
	State     State
	Supported bool
	SessionID string
	Speaking  bool
	Last      Outcome
}

var errStopped = errors.New("voice controller stopped")

// Controller turns one spoken utterance into one dispatched page action.
// State changes happen under mu; collaborators are always called with mu
// released so their callbacks may re-enter.
type Controller struct {
	classifier Classifier
	page       Page
	help       HelpView
	feedback   Feedback
	recognizer Recognizer
	speaker    Speaker
	wake       *WakeStripper
	lang       string
	timeout    time.Duration

	onTransition func(from, to State)
	onOutcome    func(Outcome)

	mu      sync.Mutex
	state   State
	session string
	live    int
	req     *attempt
	last    Outcome
}

func NewController(d Deps, o Options) (*Controller, error) {
	if d.Classifier == nil {
		return nil, errors.New("voice: classifier is required")
	}
	if d.Page == nil {
		return nil, errors.New("voice: page is required")
	}
	c := &Controller{
		classifier:   d.Classifier,
		page:         d.Page,
		help:         d.Help,
		feedback:     d.Feedback,
		recognizer:   d.Recognizer,
		speaker:      d.Speaker,
		wake:         NewWakeStripper(o.WakePhrases),
		lang:         o.Lang,
		timeout:      o.CommandTimeout,
		onTransition: o.OnTransition,
		onOutcome:    o.OnOutcome,
	}
	if c.feedback == nil {
		c.feedback = hiddenFeedback{}
	}
	if c.speaker == nil {
		c.speaker = silentSpeaker{}
	}
	if c.lang == "" {
		c.lang = "en-US"
	}
	if c.timeout <= 0 {
		c.timeout = defaultCommandTimeout
	}
	if c.recognizer == nil {
		logging.Warnw("voice: speech recognition not supported, voice control disabled")
		c.feedback.Show(MsgUnsupported, PhaseError)
	}
	return c, nil
}

// Supported reports whether a recognizer is available.
func (c *Controller) Supported() bool { return c.recognizer != nil }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sessions is the number of live recognition sessions, zero or one.
func (c *Controller) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{State: c.state, Supported: c.recognizer != nil, SessionID: c.session, Last: c.last}
	c.mu.Unlock()
	st.Speaking = c.speaker.Speaking()
	return st
}

func (c *Controller) setStateLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	ControllerState.Set(float64(to))
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}

// endSessionLocked releases recognition session id if it is the live one.
func (c *Controller) endSessionLocked(id string) bool {
	if id == "" || c.session != id {
		return false
	}
	c.session = ""
	c.live--
	return true
}

// Toggle starts listening from Idle and stops from Listening. It does
// nothing when recognition is unsupported.
func (c *Controller) Toggle() {
	if !c.Supported() {
		logging.Debugw("voice: toggle ignored, recognition unsupported")
		return
	}
	switch c.State() {
	case StateIdle:
		_ = c.Start()
	case StateListening:
		c.Stop()
	default:
		logging.Debugw("voice: toggle ignored while processing")
		c.feedback.Show(MsgBusy, PhaseProcessing)
	}
}

// Start arms the recognizer for a single final utterance. It never opens a
// second session.
func (c *Controller) Start() error {
	if c.recognizer == nil {
		logging.Warnw("voice: start rejected, recognition unsupported")
		c.feedback.Show(MsgUnsupported, PhaseError)
		RecognitionSessionsTotal.WithLabelValues("unsupported").Inc()
		return ErrUnsupported
	}

	c.mu.Lock()
	if c.state != StateIdle {
		st := c.state
		c.mu.Unlock()
		logging.Warnw("voice: start rejected, session active", "state", st.String())
		if st == StateListening {
			c.feedback.Show(MsgAlreadyActive, PhaseListening)
		} else {
			c.feedback.Show(MsgBusy, PhaseProcessing)
		}
		return ErrSessionActive
	}
	id := uuid.NewString()
	c.session = id
	c.live++
	c.setStateLocked(StateListening)
	c.mu.Unlock()

	c.feedback.Show(MsgListening, PhaseListening)
	opts := RecognitionOptions{Continuous: false, InterimResults: false, Lang: c.lang}
	if err := c.recognizer.Start(opts, &session{c: c, id: id}); err != nil {
		logging.Warnw("voice: recognizer failed to start", append(logging.SessionFields(id), "err", err)...)
		c.mu.Lock()
		owned := c.endSessionLocked(id)
		if owned {
			c.setStateLocked(StateError)
		}
		c.mu.Unlock()
		e := newError(ErrRecognition, "Error: "+err.Error(), err)
		if owned {
			RecognitionSessionsTotal.WithLabelValues("error").Inc()
			c.finish(context.Background(), Outcome{Phase: PhaseError, Message: e.Message, Err: e})
		}
		return e
	}
	logging.Infow("voice: recognition started", append(logging.SessionFields(id), "lang", c.lang)...)
	return nil
}

// session routes recognizer callbacks to the session that armed it, so late
// callbacks of a stopped session are ignored.
type session struct {
	c  *Controller
	id string
}

func (s *session) OnResult(transcript string) { s.c.onResult(s.id, transcript) }
func (s *session) OnError(err error)          { s.c.onError(s.id, err) }
func (s *session) OnEnd()                     { s.c.onEnd(s.id) }

func (c *Controller) currentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// OnResult delivers a final transcript for the live session.
func (c *Controller) OnResult(transcript string) { c.onResult(c.currentSession(), transcript) }

// OnError reports an engine error for the live session.
func (c *Controller) OnError(err error) { c.onError(c.currentSession(), err) }

// OnEnd reports that the live session's engine stopped.
func (c *Controller) OnEnd() { c.onEnd(c.currentSession()) }

func (c *Controller) onResult(id, transcript string) {
	c.mu.Lock()
	if c.state != StateListening || !c.endSessionLocked(id) {
		c.mu.Unlock()
		logging.Debugw("voice: ignoring result for inactive session", logging.SessionFields(id)...)
		return
	}
	a := c.beginProcessingLocked(logging.WithFields(context.Background(), logging.SessionFields(id)...))
	c.mu.Unlock()

	RecognitionSessionsTotal.WithLabelValues("result").Inc()
	if err := c.recognizer.Stop(); err != nil {
		logging.Debugw("voice: recognizer stop after result failed", "err", err)
	}
	text, woke := c.wake.Strip(transcript)
	logging.Infow("voice: command recognized", append(logging.SessionFields(id), "transcript", text, "wake_phrase", woke)...)
	c.process(a, text)
}

func (c *Controller) onError(id string, err error) {
	c.mu.Lock()
	if c.state != StateListening || !c.endSessionLocked(id) {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateError)
	c.mu.Unlock()

	RecognitionSessionsTotal.WithLabelValues("error").Inc()
	logging.Warnw("voice: recognition error", append(logging.SessionFields(id), "err", err)...)
	if serr := c.recognizer.Stop(); serr != nil {
		logging.Debugw("voice: recognizer stop after error failed", "err", serr)
	}
	e := newError(ErrRecognition, "Error: "+err.Error(), err)
	c.finish(context.Background(), Outcome{Phase: PhaseError, Message: e.Message, Err: e})
}

func (c *Controller) onEnd(id string) {
	c.mu.Lock()
	if c.state != StateListening || !c.endSessionLocked(id) {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	RecognitionSessionsTotal.WithLabelValues("ended").Inc()
	logging.Debugw("voice: recognition ended without a result", logging.SessionFields(id)...)
	c.feedback.Hide()
}

// SendVoiceCommand classifies text and dispatches the result. It is the
// path typed commands and the control surface use, and it is rejected while
// a session is listening or a request is in flight.
func (c *Controller) SendVoiceCommand(ctx context.Context, text string) Outcome {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
	case StateListening:
		c.mu.Unlock()
		return c.reject(newError(ErrSessionActive, MsgAlreadyActive, nil), PhaseListening)
	default:
		c.mu.Unlock()
		return c.reject(newError(ErrBusy, MsgBusy, nil), PhaseProcessing)
	}
	a := c.beginProcessingLocked(ctx)
	c.mu.Unlock()

	text, _ = c.wake.Strip(text)
	return c.process(a, text)
}

// attempt is one classification and dispatch; Stop cancels its ctx.
type attempt struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// beginProcessingLocked moves to Processing and registers the attempt in
// the same critical section, so a Stop after the transition reaches it.
func (c *Controller) beginProcessingLocked(ctx context.Context) *attempt {
	cctx, cancel := context.WithCancelCause(ctx)
	a := &attempt{ctx: cctx, cancel: cancel}
	c.req = a
	c.setStateLocked(StateProcessing)
	return a
}

func (c *Controller) reject(e *Error, phase Phase) Outcome {
	logging.Warnw("voice: command rejected", "reason", e.Category.Error())
	c.feedback.Show(e.Message, phase)
	out := Outcome{Phase: phase, Message: e.Message, Err: e}
	VoiceCommandsTotal.WithLabelValues("none", outcomeStatus(out)).Inc()
	return out
}

// process runs one classification and dispatch for a, which the caller
// registered with beginProcessingLocked.
func (c *Controller) process(a *attempt, text string) Outcome {
	defer a.cancel(nil)
	defer func() {
		c.mu.Lock()
		if c.req == a {
			c.req = nil
		}
		c.mu.Unlock()
	}()
	cctx := logging.WithFields(a.ctx, "correlation_id", uuid.NewString())
	ctx := context.WithoutCancel(cctx)

	if cctx.Err() != nil {
		return c.canceled(ctx, Intent{})
	}
	if text == "" {
		e := newError(ErrRecognition, "Error: "+errNoSpeech.Error(), errNoSpeech)
		return c.finish(ctx, Outcome{Phase: PhaseError, Message: e.Message, Err: e})
	}
	c.feedback.Show(`Processing: "`+text+`"`, PhaseProcessing)
	logging.InfowCtx(ctx, "voice: classifying command", "command", text)

	rctx, rcancel := context.WithTimeout(cctx, c.timeout)
	started := time.Now()
	res, err := c.classifier.ClassifyCommand(rctx, text)
	timedOut := errors.Is(rctx.Err(), context.DeadlineExceeded)
	rcancel()
	ClassificationLatency.Observe(time.Since(started).Seconds())

	if !timedOut && cctx.Err() != nil {
		return c.canceled(ctx, Intent{})
	}
	if err != nil {
		e := fromRequestError(err, timedOut)
		logging.WarnwCtx(ctx, "voice: classification failed", "err", err, "category", e.Category.Error(), "latency_ms", time.Since(started).Milliseconds())
		return c.finish(ctx, Outcome{Phase: PhaseError, Message: e.Message, Err: e})
	}

	in := IntentFromAction(res.Action)
	ctx = logging.WithFields(ctx, logging.IntentFields(in.Kind.String(), in.RawType)...)
	logging.InfowCtx(ctx, "voice: command classified", "latency_ms", time.Since(started).Milliseconds())

	dctx, dcancel := context.WithTimeout(logging.WithFields(cctx, logging.IntentFields(in.Kind.String(), in.RawType)...), c.timeout)
	out := c.dispatch(dctx, in)
	dcancel()
	if cctx.Err() != nil {
		return c.canceled(ctx, in)
	}
	return c.finish(ctx, out)
}

// Dispatch runs the handler for in, then reports and speaks its outcome.
func (c *Controller) Dispatch(ctx context.Context, in Intent) Outcome {
	return c.finish(ctx, c.dispatch(ctx, in))
}

func (c *Controller) dispatch(ctx context.Context, in Intent) Outcome {
	h, ok := handlers[in.Kind]
	if !ok {
		h = unknownIntent
	}
	logging.DebugwCtx(ctx, "voice: dispatching intent", logging.IntentFields(in.Kind.String(), in.RawType)...)
	return h(ctx, c, in)
}

// finish shows and speaks out, then returns the controller to Idle.
func (c *Controller) finish(ctx context.Context, out Outcome) Outcome {
	if out.Spoken == "" {
		if out.Err == nil {
			out.Spoken = "Command executed: " + out.Intent.Kind.Phrase()
		} else {
			out.Spoken = out.Message
		}
	}

	c.mu.Lock()
	if out.Err != nil && c.state == StateProcessing {
		c.setStateLocked(StateError)
	}
	c.mu.Unlock()

	if out.Message != "" {
		c.feedback.Show(out.Message, out.Phase)
	}
	c.Speak(out.Spoken)
	c.settle(out)

	if out.Err != nil {
		logging.WarnwCtx(ctx, "voice: command failed", "message", out.Message, "status", outcomeStatus(out))
	} else {
		logging.InfowCtx(ctx, "voice: command completed", "message", out.Message)
	}
	return out
}

// canceled ends an attempt cut short by Stop or by the caller's context.
func (c *Controller) canceled(ctx context.Context, in Intent) Outcome {
	out := Outcome{Intent: in, Phase: PhaseIdle, Err: context.Canceled}
	c.feedback.Hide()
	c.settle(out)
	logging.InfowCtx(ctx, "voice: command canceled")
	return out
}

func (c *Controller) settle(out Outcome) {
	c.mu.Lock()
	if c.state == StateProcessing || c.state == StateError {
		c.setStateLocked(StateIdle)
	}
	c.last = out
	c.mu.Unlock()

	VoiceCommandsTotal.WithLabelValues(intentLabel(out.Intent), outcomeStatus(out)).Inc()
	if c.onOutcome != nil {
		c.onOutcome(out)
	}
}

func intentLabel(in Intent) string {
	if in.Kind == KindUnknown && in.RawType == "" {
		return "none"
	}
	return in.Kind.String()
}

// Speak interrupts any utterance in progress and speaks text.
func (c *Controller) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.speaker.Cancel()
	if err := c.speaker.Speak(text); err != nil {
		logging.Warnw("voice: speak failed", "err", err)
	}
}

// StopVoiceSpeaking cancels any speech in progress.
func (c *Controller) StopVoiceSpeaking() {
	c.speaker.Cancel()
}

// Stop releases the recognition session, cancels an in-flight request,
// hides feedback and silences speech. It is safe to call at any time and
// any number of times.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.endSessionLocked(c.session) {
		RecognitionSessionsTotal.WithLabelValues("stopped").Inc()
	}
	if c.state == StateListening {
		c.setStateLocked(StateIdle)
	}
	a := c.req
	c.mu.Unlock()

	if a != nil {
		a.cancel(errStopped)
	}
	if c.recognizer != nil {
		if err := c.recognizer.Stop(); err != nil {
			logging.Debugw("voice: recognizer stop failed", "err", err)
		}
	}
	c.feedback.Hide()
	c.speaker.Cancel()
	logging.Debugw("voice: stopped")
}
