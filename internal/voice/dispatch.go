package voice

import (
	"context"

	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/mailapi"
)

// Classifier resolves transcripts into intents. *mailapi.Client satisfies it.
type Classifier interface {
	ClassifyCommand(ctx context.Context, command string) (*mailapi.CommandResult, error)
	VoiceHelp(ctx context.Context) (*mailapi.HelpResult, error)
}

// Page is the list view the controller drives. Each action reports its own
// notifications; the controller only checks preconditions and awaits them.
type Page interface {
	LoadList(ctx context.Context, kind mailapi.ListKind, page int) error
	MarkAllAsRead(ctx context.Context) error
	FirstItem() (mailapi.ListItem, bool)
	MarkRead(ctx context.Context, id string) error
	Reply(ctx context.Context, id string) error
	ComposeAvailable() bool
	ComposeFocus() error
	HasNextPage() bool
	HasPreviousPage() bool
	NextPage(ctx context.Context) error
	PreviousPage(ctx context.Context) error
	ReplyTarget() (mailapi.ListItem, bool)
	GenerateReply(ctx context.Context) error
	DraftComplete() bool
	SaveDraft(ctx context.Context) error
	ScheduleMeeting(ctx context.Context, item mailapi.ListItem) error
	ToggleTheme()
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// HelpView displays the list of voice commands.
type HelpView interface {
	ShowHelp(cmds []mailapi.CommandHelp) error
}

// Feedback is the status line the controller keeps in step with its state.
type Feedback interface {
	Show(message string, phase Phase)
	Hide()
}

type handler func(ctx context.Context, c *Controller, in Intent) Outcome

// handlers has exactly one entry per Kind.
var handlers = map[Kind]handler{
	KindLoadEmails:        loadEmails,
	KindMarkAllAsRead:     markAllAsRead,
	KindMarkCurrentAsRead: markCurrentAsRead,
	KindReplyCurrent:      replyCurrent,
	KindComposeEmail:      composeEmail,
	KindNextPage:          nextPage,
	KindPreviousPage:      previousPage,
	KindGenerateReply:     generateReply,
	KindSaveDraft:         saveDraft,
	KindScheduleMeeting:   scheduleMeeting,
	KindToggleTheme:       toggleTheme,
	KindHelp:              showHelp,
	KindArchiveCurrent:    archiveCurrent,
	KindDeleteCurrent:     deleteCurrent,
	KindUnknown:           unknownIntent,
}

func succeeded(in Intent, msg string) Outcome {
	return Outcome{Intent: in, Phase: PhaseSuccess, Message: msg}
}

func unmet(in Intent, msg string) Outcome {
	return Outcome{Intent: in, Phase: PhaseError, Message: msg, Err: newError(ErrPrecondition, msg, nil)}
}

// run awaits a page action and reports msg on success.
func run(in Intent, msg string, action func() error) Outcome {
	if err := action(); err != nil {
		e := fromActionError(err)
		return Outcome{Intent: in, Phase: PhaseError, Message: e.Message, Err: e}
	}
	return succeeded(in, msg)
}

func loadEmails(ctx context.Context, c *Controller, in Intent) Outcome {
	return run(in, "Loading emails...", func() error { return c.page.LoadList(ctx, mailapi.KindEmails, 1) })
}

func markAllAsRead(ctx context.Context, c *Controller, in Intent) Outcome {
	return run(in, "Marking all as read...", func() error { return c.page.MarkAllAsRead(ctx) })
}

func markCurrentAsRead(ctx context.Context, c *Controller, in Intent) Outcome {
	item, ok := c.page.FirstItem()
	if !ok || item.ID == "" {
		return unmet(in, "No email selected")
	}
	return run(in, "Marked as read", func() error { return c.page.MarkRead(ctx, item.ID) })
}

func replyCurrent(ctx context.Context, c *Controller, in Intent) Outcome {
	item, ok := c.page.FirstItem()
	if !ok || item.ID == "" {
		return unmet(in, "No email to reply to")
	}
	return run(in, "Opening reply...", func() error { return c.page.Reply(ctx, item.ID) })
}

func composeEmail(_ context.Context, c *Controller, in Intent) Outcome {
	if !c.page.ComposeAvailable() {
		return unmet(in, "Compose field not found")
	}
	return run(in, "Ready to compose email", c.page.ComposeFocus)
}

func nextPage(ctx context.Context, c *Controller, in Intent) Outcome {
	if !c.page.HasNextPage() {
		return unmet(in, "Already on last page")
	}
	return run(in, "Going to next page...", func() error { return c.page.NextPage(ctx) })
}

func previousPage(ctx context.Context, c *Controller, in Intent) Outcome {
	if !c.page.HasPreviousPage() {
		return unmet(in, "Already on first page")
	}
	return run(in, "Going to previous page...", func() error { return c.page.PreviousPage(ctx) })
}

func generateReply(ctx context.Context, c *Controller, in Intent) Outcome {
	if _, ok := c.page.ReplyTarget(); !ok {
		return unmet(in, "No email to generate a reply for")
	}
	return run(in, "Generating reply...", func() error { return c.page.GenerateReply(ctx) })
}

func saveDraft(ctx context.Context, c *Controller, in Intent) Outcome {
	if !c.page.DraftComplete() {
		return unmet(in, "Draft is incomplete")
	}
	return run(in, "Saving draft...", func() error { return c.page.SaveDraft(ctx) })
}

func scheduleMeeting(ctx context.Context, c *Controller, in Intent) Outcome {
	item, ok := c.page.FirstItem()
	if !ok {
		return unmet(in, "No email selected for meeting")
	}
	return run(in, "Opening meeting scheduler...", func() error { return c.page.ScheduleMeeting(ctx, item) })
}

func toggleTheme(_ context.Context, c *Controller, in Intent) Outcome {
	c.page.ToggleTheme()
	return succeeded(in, "Theme toggled")
}

func archiveCurrent(ctx context.Context, c *Controller, in Intent) Outcome {
	item, ok := c.page.FirstItem()
	if !ok || item.ID == "" {
		return unmet(in, "No email to archive")
	}
	return run(in, "Email archived", func() error { return c.page.Archive(ctx, item.ID) })
}

func deleteCurrent(ctx context.Context, c *Controller, in Intent) Outcome {
	item, ok := c.page.FirstItem()
	if !ok || item.ID == "" {
		return unmet(in, "No email to delete")
	}
	return run(in, "Email deleted", func() error { return c.page.Delete(ctx, item.ID) })
}

// showHelp takes commands from the intent, then the help endpoint, then the
// built-in list. The view and the spoken summary use the same list.
func showHelp(ctx context.Context, c *Controller, in Intent) Outcome {
	if c.help == nil {
		return unmet(in, "Error: Help view not available")
	}
	cmds := in.Commands
	spoken := in.VoiceOutput
	if len(cmds) == 0 && c.classifier != nil {
		res, err := c.classifier.VoiceHelp(ctx)
		switch {
		case err != nil:
			logging.WarnwCtx(ctx, "voice: help endpoint failed, using built-in commands", "err", err)
		case len(res.Commands) > 0:
			cmds = res.Commands
			if spoken == "" {
				spoken = res.VoiceOutput
			}
		}
	}
	if len(cmds) == 0 {
		cmds = DefaultCommands()
	}
	if err := c.help.ShowHelp(cmds); err != nil {
		msg := "Error showing help"
		return Outcome{Intent: in, Phase: PhaseError, Message: msg, Err: newError(ErrBackend, msg, err)}
	}
	if spoken == "" {
		spoken = SpokenSummary(cmds)
	}
	out := succeeded(in, "Showing voice commands")
	out.Spoken = spoken
	return out
}

func unknownIntent(_ context.Context, _ *Controller, in Intent) Outcome {
	return Outcome{
		Intent:  in,
		Phase:   PhaseError,
		Message: MsgNotRecognized,
		Spoken:  SpokenNotRecognized,
		Err:     newError(ErrUnknownIntent, MsgNotRecognized, nil),
	}
}
