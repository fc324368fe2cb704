package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/inbox-voice-lab/internal/inbox"
	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/mailapi"
	"github.com/inbox-voice-lab/internal/voice"
)

// DefaultAutoHide is how long success and info feedback stays visible.
const DefaultAutoHide = 3 * time.Second

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// FeedbackState is what the feedback line currently shows.
type FeedbackState struct {
	Message string
	Phase   voice.Phase
	Visible bool
	Spinner bool
}

// Terminal writes the assistant's views to out. It satisfies
// voice.Feedback, voice.HelpView and inbox.Renderer. All writes are
// serialized so callbacks from the recognizer and the command loop do not
// interleave lines.
type Terminal struct {
	AutoHide time.Duration

	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	theme    inbox.Theme
	st       styles
	feedback FeedbackState
	frame    int
	gen      uint64
	hide     *time.Timer
}

func NewTerminal(out io.Writer, theme inbox.Theme) *Terminal {
	r := lipgloss.NewRenderer(out)
	if theme == "" {
		theme = inbox.ThemeDark
	}
	r.SetHasDarkBackground(theme == inbox.ThemeDark)
	return &Terminal{
		AutoHide: DefaultAutoHide,
		out:      out,
		renderer: r,
		theme:    theme,
		st:       newStyles(r, PaletteFor(theme)),
	}
}

func (t *Terminal) writeLocked(s string) {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if _, err := io.WriteString(t.out, s); err != nil {
		logging.Debugw("ui: write failed", "err", err)
	}
}

// Show updates the feedback line. The spinner is drawn only while listening
// or processing; success and info messages hide after AutoHide.
func (t *Terminal) Show(message string, phase voice.Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopHideLocked()
	t.gen++
	t.feedback = FeedbackState{Message: message, Phase: phase, Visible: true, Spinner: phase.Busy()}

	line := t.st.phase(phase).Render(message)
	if phase.Busy() {
		line = t.st.spinner.Render(spinnerFrames[t.frame%len(spinnerFrames)]) + " " + line
		t.frame++
	}
	t.writeLocked(line)

	if phase.Transient() && t.AutoHide > 0 {
		gen := t.gen
		t.hide = time.AfterFunc(t.AutoHide, func() { t.expire(gen) })
	}
}

// Hide clears the feedback line.
func (t *Terminal) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopHideLocked()
	t.gen++
	t.feedback = FeedbackState{Phase: voice.PhaseIdle}
}

func (t *Terminal) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.hide = nil
	t.feedback = FeedbackState{Phase: voice.PhaseIdle}
}

func (t *Terminal) stopHideLocked() {
	if t.hide != nil {
		t.hide.Stop()
		t.hide = nil
	}
}

// Feedback returns the current feedback line.
func (t *Terminal) Feedback() FeedbackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feedback
}

// ShowHelp draws the numbered command list in a panel.
func (t *Terminal) ShowHelp(cmds []mailapi.CommandHelp) error {
	if len(cmds) == 0 {
		return fmt.Errorf("no voice commands to show")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	b.WriteString(t.st.title.Render("Voice Commands"))
	for i, c := range cmds {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%2d. %s", i+1, t.st.enabled.Render(c.Command))
		if c.Description != "" {
			b.WriteString("  " + t.st.meta.Render(c.Description))
		}
	}
	_, err := io.WriteString(t.out, t.st.panel.Render(b.String())+"\n")
	return err
}

// RenderList draws the current page and its pager.
func (t *Terminal) RenderList(s inbox.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	title, empty := "Inbox", "No unread emails"
	switch s.View {
	case mailapi.KindDrafts:
		title, empty = "Drafts", "No drafts"
	case mailapi.KindImportant:
		title, empty = "Important", "No important emails"
	}
	lines := []string{t.st.header.Render(fmt.Sprintf("%s (%d)", title, s.Page.Total))}
	if len(s.Page.Items) == 0 {
		lines = append(lines, t.st.meta.Render("  "+empty))
	}
	for i, it := range s.Page.Items {
		lines = append(lines, t.itemLine(s.View, i, it))
	}
	if s.Page.TotalPages > 1 {
		lines = append(lines, "", t.pagerLine(s.Page))
	}
	t.writeLocked(strings.Join(lines, "\n"))
}

func (t *Terminal) itemLine(view mailapi.ListKind, i int, it mailapi.ListItem) string {
	subject := it.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	who := it.From
	if view == mailapi.KindDrafts {
		who = "to " + it.To
	}
	mark := " "
	if it.IsImportant {
		mark = "!"
	}
	line := t.st.item.Render(fmt.Sprintf("%s %d. %s", mark, i+1, subject))
	if who != "" {
		line += "  " + t.st.meta.Render(who)
	}
	if it.Date != "" {
		line += "  " + t.st.meta.Render(it.Date)
	}
	return line
}

func (t *Terminal) pagerLine(p mailapi.ListPage) string {
	pg := pagerFor(p)
	side := func(label string, on bool) string {
		if on {
			return t.st.enabled.Render(label)
		}
		return t.st.disabled.Render(label)
	}
	nums := make([]string, 0, len(pg.Numbers))
	for _, n := range pg.Numbers {
		switch {
		case n == 0:
			nums = append(nums, t.st.meta.Render("…"))
		case n == p.CurrentPage:
			nums = append(nums, t.st.current.Render(fmt.Sprintf("[%d]", n)))
		default:
			nums = append(nums, t.st.meta.Render(fmt.Sprint(n)))
		}
	}
	return strings.Join([]string{
		side("‹ Previous", pg.Previous),
		t.st.meta.Render(pg.Label),
		side("Next ›", pg.Next),
	}, "  ") + "\n" + strings.Join(nums, " ")
}

// RenderCompose draws the compose form.
func (t *Terminal) RenderCompose(c inbox.Compose) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c == (inbox.Compose{}) {
		t.writeLocked(t.st.meta.Render("Compose form cleared"))
		return
	}
	title := "New message"
	if c.ReplyTo != nil {
		title = "Reply"
	}
	if c.Focused {
		title += " (editing)"
	}
	body := strings.Join([]string{
		t.st.title.Render(title),
		t.st.meta.Render("To:      ") + c.To,
		t.st.meta.Render("Subject: ") + c.Subject,
		"",
		c.Body,
	}, "\n")
	t.writeLocked(t.st.panel.Render(body))
}

// Notify prints a one-line notification.
func (t *Terminal) Notify(level inbox.Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLocked(t.st.level(level).Render("[" + string(level) + "] " + message))
}

// ApplyTheme switches palettes.
func (t *Terminal) ApplyTheme(theme inbox.Theme) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.theme = theme
	t.renderer.SetHasDarkBackground(theme == inbox.ThemeDark)
	t.st = newStyles(t.renderer, PaletteFor(theme))
	t.writeLocked(t.st.meta.Render("Theme: " + string(theme)))
}

func (t *Terminal) Theme() inbox.Theme {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.theme
}

// Println writes a plain line, for the command loop's own output.
func (t *Terminal) Println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLocked(s)
}

// pager is the state of the pagination widget.
type pager struct {
	Previous bool
	Next     bool
	Label    string
	// Numbers lists the page buttons; 0 marks an ellipsis.
	Numbers []int
}

const maxVisiblePages = 5

func pagerFor(p mailapi.ListPage) pager {
	total := p.TotalPages
	if total < 1 {
		total = 1
	}
	cur := p.CurrentPage
	if cur < 1 {
		cur = 1
	}
	pg := pager{
		Previous: p.HasPrevious,
		Next:     p.HasNext,
		Label:    fmt.Sprintf("page %d/%d", cur, total),
	}

	start := cur - maxVisiblePages/2
	if start < 1 {
		start = 1
	}
	end := start + maxVisiblePages - 1
	if end > total {
		end = total
	}
	if end-start < maxVisiblePages-1 {
		start = end - maxVisiblePages + 1
		if start < 1 {
			start = 1
		}
	}
	if start > 1 {
		pg.Numbers = append(pg.Numbers, 1)
		if start > 2 {
			pg.Numbers = append(pg.Numbers, 0)
		}
	}
	for n := start; n <= end; n++ {
		pg.Numbers = append(pg.Numbers, n)
	}
	if end < total {
		if end < total-1 {
			pg.Numbers = append(pg.Numbers, 0)
		}
		pg.Numbers = append(pg.Numbers, total)
	}
	return pg
}
