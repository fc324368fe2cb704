package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/inbox-voice-lab/internal/mailapi"
)

type fakeClassifier struct {
	mu       sync.Mutex
	commands []string
	classify func(ctx context.Context, command string) (*mailapi.CommandResult, error)
	help     func(ctx context.Context) (*mailapi.HelpResult, error)
}

func classifyAs(actionType string) *fakeClassifier {
	return &fakeClassifier{classify: func(context.Context, string) (*mailapi.CommandResult, error) {
		return &mailapi.CommandResult{Action: mailapi.VoiceAction{Type: actionType}}, nil
	}}
}

func (f *fakeClassifier) ClassifyCommand(ctx context.Context, command string) (*mailapi.CommandResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()
	return f.classify(ctx, command)
}

func (f *fakeClassifier) VoiceHelp(ctx context.Context) (*mailapi.HelpResult, error) {
	if f.help == nil {
		return nil, errors.New("help not configured")
	}
	return f.help(ctx)
}

func (f *fakeClassifier) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type fakePage struct {
	mu            sync.Mutex
	items         []mailapi.ListItem
	hasNext       bool
	hasPrevious   bool
	compose       bool
	draftComplete bool
	replyTarget   bool
	actionErr     error
	theme         string
	calls         []string
}

func (p *fakePage) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.actionErr
}

func (p *fakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePage) LoadList(_ context.Context, kind mailapi.ListKind, page int) error {
	return p.record("load:" + string(kind))
}
func (p *fakePage) MarkAllAsRead(context.Context) error { return p.record("mark_all") }
func (p *fakePage) FirstItem() (mailapi.ListItem, bool) {
	if len(p.items) == 0 {
		return mailapi.ListItem{}, false
	}
	return p.items[0], true
}
func (p *fakePage) MarkRead(_ context.Context, id string) error { return p.record("mark_read:" + id) }
func (p *fakePage) Reply(_ context.Context, id string) error    { return p.record("reply:" + id) }
func (p *fakePage) ComposeAvailable() bool                      { return p.compose }
func (p *fakePage) ComposeFocus() error                         { return p.record("compose_focus") }
func (p *fakePage) HasNextPage() bool                           { return p.hasNext }
func (p *fakePage) HasPreviousPage() bool                       { return p.hasPrevious }
func (p *fakePage) NextPage(context.Context) error              { return p.record("next_page") }
func (p *fakePage) PreviousPage(context.Context) error          { return p.record("previous_page") }
func (p *fakePage) ReplyTarget() (mailapi.ListItem, bool) {
	if p.replyTarget {
		return p.FirstItem()
	}
	return mailapi.ListItem{}, false
}
func (p *fakePage) GenerateReply(context.Context) error { return p.record("generate_reply") }
func (p *fakePage) DraftComplete() bool                 { return p.draftComplete }
func (p *fakePage) SaveDraft(context.Context) error     { return p.record("save_draft") }
func (p *fakePage) ScheduleMeeting(_ context.Context, item mailapi.ListItem) error {
	return p.record("schedule:" + item.ID)
}
func (p *fakePage) ToggleTheme()                               { _ = p.record("toggle_theme") }
func (p *fakePage) Archive(_ context.Context, id string) error { return p.record("archive:" + id) }
func (p *fakePage) Delete(_ context.Context, id string) error  { return p.record("delete:" + id) }

type shown struct {
	message string
	phase   Phase
}

type fakeFeedback struct {
	mu     sync.Mutex
	shown  []shown
	hidden int
}

func (f *fakeFeedback) Show(message string, phase Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, shown{message, phase})
}

func (f *fakeFeedback) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden++
}

func (f *fakeFeedback) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.shown))
	for _, s := range f.shown {
		out = append(out, s.message)
	}
	return out
}

func (f *fakeFeedback) Last() shown {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.shown) == 0 {
		return shown{}
	}
	return f.shown[len(f.shown)-1]
}

type fakeSpeaker struct {
	mu       sync.Mutex
	spoken   []string
	cancels  int
	speaking bool
}

func (s *fakeSpeaker) Speak(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	s.speaking = true
	return nil
}

func (s *fakeSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.speaking = false
}

func (s *fakeSpeaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *fakeSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

type fakeHelp struct {
	shown [][]mailapi.CommandHelp
	err   error
}

func (h *fakeHelp) ShowHelp(cmds []mailapi.CommandHelp) error {
	h.shown = append(h.shown, cmds)
	return h.err
}

type harness struct {
	c          *Controller
	classifier *fakeClassifier
	page       *fakePage
	feedback   *fakeFeedback
	speaker    *fakeSpeaker
	help       *fakeHelp
	rec        *LineRecognizer

	mu          sync.Mutex
	transitions []State
}

func newHarness(t interface{ Fatalf(string, ...interface{}) }, cl *fakeClassifier, opts Options) *harness {
	h := &harness{
		classifier: cl,
		page:       &fakePage{},
		feedback:   &fakeFeedback{},
		speaker:    &fakeSpeaker{},
		help:       &fakeHelp{},
		rec:        NewLineRecognizer(),
	}
	opts.OnTransition = func(_, to State) {
		h.mu.Lock()
		h.transitions = append(h.transitions, to)
		h.mu.Unlock()
	}
	c, err := NewController(Deps{
		Classifier: cl,
		Page:       h.page,
		Help:       h.help,
		Feedback:   h.feedback,
		Recognizer: h.rec,
		Speaker:    h.speaker,
	}, opts)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	h.c = c
	return h
}

func (h *harness) Transitions() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.transitions...)
}
