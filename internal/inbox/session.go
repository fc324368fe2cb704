// Package inbox holds the list-view state the assistant renders: current
// view and page, the items on it, the compose form and the theme.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/mailapi"
)

// Backend is the subset of the mail API the session needs.
type Backend interface {
	List(ctx context.Context, kind mailapi.ListKind, page, perPage int) (*mailapi.ListPage, error)
	MarkRead(ctx context.Context, id string) error
	BulkMarkRead(ctx context.Context, ids []string) (int, error)
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ToggleImportant(ctx context.Context, id string) (bool, error)
	BulkArchive(ctx context.Context, ids []string) (int, error)
	DeleteDraft(ctx context.Context, id string) error
	SaveDraft(ctx context.Context, d mailapi.Draft) (string, error)
	GenerateReply(ctx context.Context, r mailapi.ReplyRequest) (*mailapi.Reply, error)
	ScheduleMeeting(ctx context.Context, m mailapi.Meeting) (*mailapi.MeetingResult, error)
}

var (
	ErrNoNextPage      = errors.New("already on last page")
	ErrNoPreviousPage  = errors.New("already on first page")
	ErrNotOnPage       = errors.New("email is not on the current page")
	ErrComposeDisabled = errors.New("compose form not available")
	ErrDraftIncomplete = errors.New("draft needs a recipient, subject and body")
	ErrNoReplyTarget   = errors.New("no email to reply to")
)

type Options struct {
	PerPage int
	Theme   Theme
	// Compose enables the compose form.
	Compose bool
	Now     func() time.Time
}

// Session is the list view. Backend calls happen without the lock held;
// every mutation reloads the current page so the view reflects the server.
type Session struct {
	backend  Backend
	renderer Renderer
	perPage  int
	compose  bool
	now      func() time.Time

	mu    sync.Mutex
	view  mailapi.ListKind
	page  mailapi.ListPage
	form  Compose
	theme Theme
}

func NewSession(b Backend, r Renderer, opts Options) *Session {
	if r == nil {
		r = nopRenderer{}
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 10
	}
	if opts.Theme == "" {
		opts.Theme = ThemeDark
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		backend:  b,
		renderer: r,
		perPage:  opts.PerPage,
		compose:  opts.Compose,
		now:      opts.Now,
		view:     mailapi.KindEmails,
		page:     mailapi.ListPage{Kind: mailapi.KindEmails, CurrentPage: 1},
		theme:    opts.Theme,
	}
}

// Snapshot returns a copy of the visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	p := s.page
	p.Items = append([]mailapi.ListItem(nil), s.page.Items...)
	return Snapshot{View: s.view, Page: p, Theme: s.theme}
}

func (s *Session) View() mailapi.ListKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Session) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// LoadList fetches page of kind and makes it the current view.
func (s *Session) LoadList(ctx context.Context, kind mailapi.ListKind, page int) error {
	if page < 1 {
		page = 1
	}
	lp, err := s.backend.List(ctx, kind, page, s.perPage)
	if err != nil {
		logging.WarnwCtx(ctx, "inbox: list load failed", append(logging.PageFields(string(kind), page, 0), "err", err)...)
		s.renderer.Notify(LevelError, fmt.Sprintf("Failed to load %s: %v", kind, err))
		return err
	}
	s.mu.Lock()
	s.view = kind
	s.page = *lp
	snap := s.snapshotLocked()
	s.mu.Unlock()

	logging.DebugwCtx(ctx, "inbox: list loaded", append(logging.PageFields(string(kind), lp.CurrentPage, lp.TotalPages), "items", len(lp.Items))...)
	s.renderer.RenderList(snap)
	return nil
}

func (s *Session) LoadEmails(ctx context.Context, page int) error {
	return s.LoadList(ctx, mailapi.KindEmails, page)
}

func (s *Session) LoadDrafts(ctx context.Context, page int) error {
	return s.LoadList(ctx, mailapi.KindDrafts, page)
}

// LoadImportant shows every email flagged important.
func (s *Session) LoadImportant(ctx context.Context) error {
	return s.LoadList(ctx, mailapi.KindImportant, 1)
}

// Refresh reloads the current view and page.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	kind, page := s.view, s.page.CurrentPage
	s.mu.Unlock()
	return s.LoadList(ctx, kind, page)
}

func (s *Session) HasNextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.HasNext
}

func (s *Session) HasPreviousPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.HasPrevious
}

func (s *Session) NextPage(ctx context.Context) error {
	s.mu.Lock()
	kind, page, ok := s.view, s.page.CurrentPage, s.page.HasNext
	s.mu.Unlock()
	if !ok {
		return ErrNoNextPage
	}
	return s.LoadList(ctx, kind, page+1)
}

func (s *Session) PreviousPage(ctx context.Context) error {
	s.mu.Lock()
	kind, page, ok := s.view, s.page.CurrentPage, s.page.HasPrevious
	s.mu.Unlock()
	if !ok {
		return ErrNoPreviousPage
	}
	return s.LoadList(ctx, kind, page-1)
}

// FirstItem is the target of "current email" commands.
func (s *Session) FirstItem() (mailapi.ListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.page.Items) == 0 {
		return mailapi.ListItem{}, false
	}
	return s.page.Items[0], true
}

func (s *Session) item(id string) (mailapi.ListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.page.Items {
		if it.ID == id {
			return it, true
		}
	}
	return mailapi.ListItem{}, false
}

func (s *Session) MarkRead(ctx context.Context, id string) error {
	if err := s.backend.MarkRead(ctx, id); err != nil {
		s.renderer.Notify(LevelError, "Failed to mark email as read: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: email marked read", logging.EmailFields(id, "")...)
	s.renderer.Notify(LevelSuccess, "Email marked as read")
	return s.Refresh(ctx)
}

// MarkAllAsRead marks every item on the current page read.
func (s *Session) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.page.Items))
	for _, it := range s.page.Items {
		ids = append(ids, it.ID)
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		s.renderer.Notify(LevelWarning, "No emails to mark as read")
		return nil
	}
	n, err := s.backend.BulkMarkRead(ctx, ids)
	if err != nil {
		s.renderer.Notify(LevelError, "Failed to mark emails as read")
		return err
	}
	logging.InfowCtx(ctx, "inbox: bulk mark read", "requested", len(ids), "marked", n)
	s.renderer.Notify(LevelSuccess, fmt.Sprintf("%d emails marked as read", n))
	return s.Refresh(ctx)
}

func (s *Session) Archive(ctx context.Context, id string) error {
	if err := s.backend.Archive(ctx, id); err != nil {
		s.renderer.Notify(LevelError, "Failed to archive email: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: email archived", logging.EmailFields(id, "")...)
	s.renderer.Notify(LevelSuccess, "Email archived")
	return s.Refresh(ctx)
}

func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		s.renderer.Notify(LevelError, "Failed to delete email: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: email deleted", logging.EmailFields(id, "")...)
	s.renderer.Notify(LevelSuccess, "Email deleted")
	return s.Refresh(ctx)
}

// ToggleImportant flips the important flag of id.
func (s *Session) ToggleImportant(ctx context.Context, id string) error {
	flagged, err := s.backend.ToggleImportant(ctx, id)
	if err != nil {
		s.renderer.Notify(LevelError, "Failed to update important status: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: important toggled", append(logging.EmailFields(id, ""), "important", flagged)...)
	if flagged {
		s.renderer.Notify(LevelSuccess, "Marked as important")
	} else {
		s.renderer.Notify(LevelSuccess, "Removed from important")
	}
	return s.Refresh(ctx)
}

// ArchiveAll archives every item on the current page.
func (s *Session) ArchiveAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.page.Items))
	for _, it := range s.page.Items {
		ids = append(ids, it.ID)
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		s.renderer.Notify(LevelWarning, "No emails to archive")
		return nil
	}
	n, err := s.backend.BulkArchive(ctx, ids)
	if err != nil {
		s.renderer.Notify(LevelError, "Failed to archive emails: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: bulk archive", "requested", len(ids), "archived", n)
	s.renderer.Notify(LevelSuccess, fmt.Sprintf("%d emails archived", n))
	return s.Refresh(ctx)
}

func (s *Session) DeleteDraft(ctx context.Context, id string) error {
	if err := s.backend.DeleteDraft(ctx, id); err != nil {
		s.renderer.Notify(LevelError, "Failed to delete draft: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: draft deleted", "draft_id", id)
	s.renderer.Notify(LevelSuccess, "Draft deleted")
	return s.Refresh(ctx)
}

func (s *Session) ToggleTheme() {
	s.mu.Lock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	t := s.theme
	s.mu.Unlock()
	logging.Debugw("inbox: theme toggled", "theme", string(t))
	s.renderer.ApplyTheme(t)
}

// ScheduleMeeting books a 30 minute meeting at the next full hour about item,
// inviting its sender.
func (s *Session) ScheduleMeeting(ctx context.Context, item mailapi.ListItem) error {
	start := s.now().Truncate(time.Hour).Add(time.Hour)
	subject := strings.TrimSpace(item.Subject)
	if subject == "" {
		subject = "(no subject)"
	}
	m := mailapi.Meeting{
		EmailID:     item.ID,
		Title:       "Meeting: " + subject,
		Description: item.Snippet,
		Start:       start.Format(time.RFC3339),
		End:         start.Add(30 * time.Minute).Format(time.RFC3339),
		Reminders:   []int{15},
	}
	if addr := address(item.From); addr != "" {
		m.Attendees = []string{addr}
	}
	res, err := s.backend.ScheduleMeeting(ctx, m)
	if err != nil {
		s.renderer.Notify(LevelError, "Failed to schedule meeting: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: meeting scheduled", append(logging.EmailFields(item.ID, item.Subject), "event_id", res.EventID, "start", m.Start)...)
	msg := "Meeting scheduled for " + start.Format("Mon 15:04")
	if res.HTMLLink != "" {
		msg += " (" + res.HTMLLink + ")"
	}
	s.renderer.Notify(LevelSuccess, msg)
	return nil
}

// address extracts the bare address from a From header value.
func address(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if a, err := mail.ParseAddress(from); err == nil {
		return a.Address
	}
	return from
}
