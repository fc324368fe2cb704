package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/inbox-voice-lab/internal/control"
	"github.com/inbox-voice-lab/internal/inbox"
	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/ui"
	"github.com/inbox-voice-lab/internal/voice"
)

const (
	listenHelp = `Press Enter to start or stop listening, then type what you would say.
Any other line is sent as a command directly.`

	typedHelp = `Type a command to send it directly.`

	metaHelp = `  /inbox  /drafts  /important  load a list
  /star [ID]  /delete-draft [ID]  flag an email, drop a draft
  /archive-all             archive the page shown
  /to /subject /body TEXT  fill the compose form
  /say TEXT  /hush         speak, stop speaking
  /stop  /status  /theme  /quit`
)

// app is the interactive command loop.
type app struct {
	ctl         control.Controller
	lines       *voice.LineRecognizer
	session     *inbox.Session
	term        *ui.Terminal
	interactive bool
}

// help leaves out listening when recognition is unsupported.
func (a *app) help() string {
	if !a.ctl.Status().Supported {
		return typedHelp + "\n" + metaHelp
	}
	return listenHelp + "\n" + metaHelp
}

func (a *app) prompt() {
	if !a.interactive {
		return
	}
	p := ">"
	if a.lines != nil && a.lines.Armed() {
		p = "(listening) >"
	}
	a.term.Println(p)
}

// run reads lines from in until EOF, /quit or ctx is done.
func (a *app) run(ctx context.Context, in io.Reader) error {
	a.term.Println(a.help())
	sc := bufio.NewScanner(in)
	a.prompt()
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if quit := a.handle(ctx, sc.Text()); quit {
			return nil
		}
		a.prompt()
	}
	return sc.Err()
}

// handle runs one input line and reports whether the loop should end.
func (a *app) handle(ctx context.Context, line string) bool {
	text := strings.TrimSpace(line)
	armed := a.lines != nil && a.lines.Armed()

	if !strings.HasPrefix(text, "/") {
		switch {
		case armed:
			a.lines.Feed(text)
		case text == "":
			a.ctl.Toggle()
		default:
			a.ctl.SendVoiceCommand(ctx, text)
		}
		return false
	}

	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)
	logging.Debugw("assistant: loop command", "command", cmd)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help", "/?":
		a.term.Println(a.help())
	case "/stop":
		a.ctl.Stop()
	case "/status":
		st := a.ctl.Status()
		a.term.Println(fmt.Sprintf("state=%s supported=%t speaking=%t last=%q", st.State, st.Supported, st.Speaking, st.Last.Message))
	case "/say":
		a.ctl.Speak(arg)
	case "/hush":
		a.ctl.StopVoiceSpeaking()
	case "/inbox":
		_ = a.session.LoadEmails(ctx, 1)
	case "/drafts":
		_ = a.session.LoadDrafts(ctx, 1)
	case "/important":
		_ = a.session.LoadImportant(ctx)
	case "/star":
		if id, ok := a.target(arg); ok {
			_ = a.session.ToggleImportant(ctx, id)
		}
	case "/archive-all":
		_ = a.session.ArchiveAll(ctx)
	case "/delete-draft":
		if id, ok := a.target(arg); ok {
			_ = a.session.DeleteDraft(ctx, id)
		}
	case "/theme":
		a.session.ToggleTheme()
	case "/to", "/subject", "/body":
		a.setCompose(cmd, arg)
	default:
		a.term.Notify(inbox.LevelWarning, "Unknown command "+cmd+", try /help")
	}
	return false
}

// target is arg, or the first item shown when arg is empty.
func (a *app) target(arg string) (string, bool) {
	if arg != "" {
		return arg, true
	}
	if it, ok := a.session.FirstItem(); ok {
		return it.ID, true
	}
	a.term.Notify(inbox.LevelWarning, "Nothing to act on")
	return "", false
}

func (a *app) setCompose(field, value string) {
	var err error
	switch field {
	case "/to":
		err = a.session.SetCompose(value, "", "")
	case "/subject":
		err = a.session.SetCompose("", value, "")
	case "/body":
		err = a.session.SetCompose("", "", value)
	}
	if err != nil {
		a.term.Notify(inbox.LevelError, err.Error())
	}
}
