package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inbox-voice-lab/internal/inbox"
	"github.com/inbox-voice-lab/internal/mailapi"
	"github.com/inbox-voice-lab/internal/ui"
	"github.com/inbox-voice-lab/internal/voice"
)

func newTestApp(t *testing.T) (*app, *voice.Controller) {
	t.Helper()
	a, ctl, _ := newTestAppWith(t, true)
	return a, ctl
}

// newTestAppWith wires the loop against a backend that classifies "a b" as
// type "a_b" and serves one empty page of emails. Without speech the
// controller has no recognizer.
func newTestAppWith(t *testing.T, speech bool) (*app, *voice.Controller, *bytes.Buffer) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/voice/command/":
			var body struct {
				Command string `json:"command"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":      true,
				"command": body.Command,
				"action":  map[string]string{"type": strings.ReplaceAll(body.Command, " ", "_")},
			})
		case "/api/emails/":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true, "emails": []interface{}{}, "total_pages": 1, "current_page": 1, "per_page": 10, "total_emails": 0,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)

	var out bytes.Buffer
	term := ui.NewTerminal(&out, inbox.ThemeDark)
	api := mailapi.New(mailapi.Options{BaseURL: ts.URL, Timeout: 2 * time.Second})
	session := inbox.NewSession(api, term, inbox.Options{Compose: true})
	deps := voice.Deps{
		Classifier: api,
		Page:       session,
		Help:       term,
		Feedback:   term,
		Speaker:    ui.NewEcho(term),
	}
	var lines *voice.LineRecognizer
	if speech {
		lines = voice.NewLineRecognizer()
		deps.Recognizer = lines
	}
	ctl, err := voice.NewController(deps, voice.Options{WakePhrases: []string{"hey inbox"}})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return &app{ctl: ctl, lines: lines, session: session, term: term}, ctl, &out
}

func TestEnterArmsAndNextLineIsTheUtterance(t *testing.T) {
	a, ctl := newTestApp(t)
	ctx := context.Background()

	a.handle(ctx, "")
	if !a.lines.Armed() || ctl.State() != voice.StateListening {
		t.Fatalf("enter did not start listening: state %s", ctl.State())
	}
	a.handle(ctx, "Hey inbox, load emails")
	if a.lines.Armed() || ctl.State() != voice.StateIdle {
		t.Fatalf("utterance not consumed: state %s", ctl.State())
	}
	last := ctl.Status().Last
	if last.Intent.Kind != voice.KindLoadEmails || last.Err != nil {
		t.Fatalf("last outcome %+v", last)
	}
	if ctl.Sessions() != 0 {
		t.Fatalf("sessions left open: %d", ctl.Sessions())
	}
}

func TestEnterTwiceStopsListening(t *testing.T) {
	a, ctl := newTestApp(t)
	a.handle(context.Background(), "")
	a.handle(context.Background(), "/stop")
	if a.lines.Armed() || ctl.State() != voice.StateIdle {
		t.Fatalf("stop left state %s", ctl.State())
	}
}

func TestTypedCommandsAndMetaCommands(t *testing.T) {
	a, ctl := newTestApp(t)
	ctx := context.Background()

	a.handle(ctx, "toggle theme")
	if a.session.Theme() != inbox.ThemeLight {
		t.Fatalf("typed command not dispatched: %+v", ctl.Status().Last)
	}

	a.handle(ctx, "/to ana@example.com")
	a.handle(ctx, "/subject Lunch")
	a.handle(ctx, "/body Noon works")
	if c := a.session.Compose(); c.To != "ana@example.com" || c.Subject != "Lunch" || c.Body != "Noon works" {
		t.Fatalf("compose form %+v", c)
	}
	if a.handle(ctx, "/status") {
		t.Fatalf("/status should not quit")
	}
	if !a.handle(ctx, "/quit") {
		t.Fatalf("/quit should end the loop")
	}
}

func TestRunStopsAtQuit(t *testing.T) {
	a, _ := newTestApp(t)
	in := strings.NewReader("/theme\n/quit\n/theme\n")
	if err := a.run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.session.Theme() != inbox.ThemeLight {
		t.Fatalf("lines after /quit were processed")
	}
}

func TestRedactAnyHidesTokens(t *testing.T) {
	v := redactAny(map[string]any{
		"API": map[string]any{"BaseURL": "http://x", "AuthToken": "secret", "CSRFToken": ""},
	}).(map[string]any)
	api := v["API"].(map[string]any)
	if api["AuthToken"] != "<redacted>" || api["BaseURL"] != "http://x" || api["CSRFToken"] != "" {
		t.Fatalf("redacted %+v", api)
	}
}

func TestWithoutRecognitionListeningIsNotOffered(t *testing.T) {
	a, ctl, out := newTestAppWith(t, false)
	if err := a.run(context.Background(), strings.NewReader("\n\n/quit\n")); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if strings.Contains(text, "Press Enter") || !strings.Contains(text, typedHelp) {
		t.Fatalf("help still offers listening:\n%s", text)
	}
	if n := strings.Count(text, voice.MsgUnsupported); n != 1 {
		t.Fatalf("unsupported notice shown %d times:\n%s", n, text)
	}
	if ctl.State() != voice.StateIdle || ctl.Status().Supported {
		t.Fatalf("status %+v", ctl.Status())
	}
}

func TestImportantAndCleanupMetaCommands(t *testing.T) {
	var calls []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/emails/important/":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"ok": true, "emails": []map[string]string{{"id": "m7", "subject": "Contract"}},
			})
		case "/api/email/m7/toggle-important/":
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "is_important": false})
		case "/api/emails/bulk-archive/":
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "success_count": 1})
		case "/api/drafts/d3/delete/":
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	var out bytes.Buffer
	term := ui.NewTerminal(&out, inbox.ThemeDark)
	api := mailapi.New(mailapi.Options{BaseURL: ts.URL, Timeout: 2 * time.Second})
	a := &app{session: inbox.NewSession(api, term, inbox.Options{}), term: term}
	ctx := context.Background()

	for _, line := range []string{"/important", "/star", "/archive-all", "/delete-draft d3"} {
		a.handle(ctx, line)
	}
	want := []string{
		"GET /api/emails/important/",
		"POST /api/email/m7/toggle-important/",
		"GET /api/emails/important/",
		"POST /api/emails/bulk-archive/",
		"GET /api/emails/important/",
		"DELETE /api/drafts/d3/delete/",
		"GET /api/emails/important/",
	}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls:\n%s", strings.Join(calls, "\n"))
	}
	text := out.String()
	for _, s := range []string{"Important (1)", "Removed from important", "1 emails archived", "Draft deleted"} {
		if !strings.Contains(text, s) {
			t.Fatalf("output missing %q:\n%s", s, text)
		}
	}
}
