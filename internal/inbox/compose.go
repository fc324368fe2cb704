package inbox

import (
	"context"
	"strings"

	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/mailapi"
)

// Compose is the state of the compose form.
type Compose struct {
	To      string
	Subject string
	Body    string
	// ReplyTo is the email being answered, nil for a new message.
	ReplyTo *mailapi.ListItem
	Focused bool
}

// Complete reports whether the form can be saved as a draft.
func (c Compose) Complete() bool {
	return strings.TrimSpace(c.To) != "" && strings.TrimSpace(c.Subject) != "" && strings.TrimSpace(c.Body) != ""
}

func replySubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

func (s *Session) Compose() Compose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Session) ComposeAvailable() bool { return s.compose }

// ComposeFocus puts the cursor in the compose form.
func (s *Session) ComposeFocus() error {
	if !s.compose {
		return ErrComposeDisabled
	}
	s.mu.Lock()
	s.form.Focused = true
	form := s.form
	s.mu.Unlock()
	s.renderer.RenderCompose(form)
	return nil
}

// SetCompose fills the compose form. Empty arguments keep the current value.
func (s *Session) SetCompose(to, subject, body string) error {
	if !s.compose {
		return ErrComposeDisabled
	}
	s.mu.Lock()
	if to != "" {
		s.form.To = to
	}
	if subject != "" {
		s.form.Subject = subject
	}
	if body != "" {
		s.form.Body = body
	}
	form := s.form
	s.mu.Unlock()
	s.renderer.RenderCompose(form)
	return nil
}

// ClearCompose resets the form.
func (s *Session) ClearCompose() {
	s.mu.Lock()
	s.form = Compose{}
	s.mu.Unlock()
	s.renderer.RenderCompose(Compose{})
}

// Reply opens the compose form as a reply to the email id on the page.
func (s *Session) Reply(_ context.Context, id string) error {
	if !s.compose {
		return ErrComposeDisabled
	}
	item, ok := s.item(id)
	if !ok {
		return ErrNotOnPage
	}
	s.mu.Lock()
	s.form = Compose{
		To:      address(item.From),
		Subject: replySubject(item.Subject),
		ReplyTo: &item,
		Focused: true,
	}
	form := s.form
	s.mu.Unlock()
	logging.Debugw("inbox: reply opened", logging.EmailFields(item.ID, item.Subject)...)
	s.renderer.RenderCompose(form)
	return nil
}

// ReplyTarget is the email a generated reply answers: the one in the compose
// form, otherwise the first on the page.
func (s *Session) ReplyTarget() (mailapi.ListItem, bool) {
	if !s.compose {
		return mailapi.ListItem{}, false
	}
	s.mu.Lock()
	target := s.form.ReplyTo
	s.mu.Unlock()
	if target != nil {
		return *target, true
	}
	return s.FirstItem()
}

func (s *Session) DraftComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose && s.form.Complete()
}

// GenerateReply asks the backend for a reply to ReplyTarget and puts it in
// the compose form.
func (s *Session) GenerateReply(ctx context.Context) error {
	target, ok := s.ReplyTarget()
	if !ok {
		return ErrNoReplyTarget
	}
	text := target.BodyText
	if strings.TrimSpace(text) == "" {
		text = target.Snippet
	}
	if strings.TrimSpace(text) == "" {
		text = target.Subject
	}
	reply, err := s.backend.GenerateReply(ctx, mailapi.ReplyRequest{
		EmailText: text,
		MessageID: target.ID,
		Subject:   target.Subject,
		FromEmail: address(target.From),
	})
	if err != nil {
		s.renderer.Notify(LevelError, "Failed to generate reply: "+err.Error())
		return err
	}
	s.mu.Lock()
	s.form = Compose{
		To:      address(target.From),
		Subject: replySubject(target.Subject),
		Body:    reply.DraftReply,
		ReplyTo: &target,
		Focused: true,
	}
	form := s.form
	s.mu.Unlock()
	logging.InfowCtx(ctx, "inbox: reply generated", logging.EmailFields(target.ID, target.Subject)...)
	if reply.Summary != "" {
		s.renderer.Notify(LevelInfo, "Summary: "+reply.Summary)
	}
	s.renderer.RenderCompose(form)
	return nil
}

// SaveDraft stores the compose form as a draft and clears it.
func (s *Session) SaveDraft(ctx context.Context) error {
	s.mu.Lock()
	form := s.form
	s.mu.Unlock()
	if !s.compose {
		return ErrComposeDisabled
	}
	if !form.Complete() {
		return ErrDraftIncomplete
	}
	id, err := s.backend.SaveDraft(ctx, mailapi.Draft{To: form.To, Subject: form.Subject, Body: form.Body})
	if err != nil {
		s.renderer.Notify(LevelError, "Failed to save draft: "+err.Error())
		return err
	}
	logging.InfowCtx(ctx, "inbox: draft saved", "draft_id", id)
	s.ClearCompose()
	s.renderer.Notify(LevelSuccess, "Draft saved")
	if s.View() == mailapi.KindDrafts {
		return s.Refresh(ctx)
	}
	return nil
}
