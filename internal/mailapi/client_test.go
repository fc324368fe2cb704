package mailapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(Options{BaseURL: ts.URL + "/", AuthToken: "tok", CSRFToken: "csrf", Timeout: 2 * time.Second})
}

func TestClassifyCommandSendsHeadersAndDecodesAction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/voice/command/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization header: %q", got)
		}
		if got := r.Header.Get("X-CSRFToken"); got != "csrf" {
			t.Errorf("csrf header: %q", got)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["command"] != "next page" {
			t.Errorf("command body: %v", body)
		}
		w.Write([]byte(`{"ok":true,"action":{"type":"next_page","message":"Going to next page..."},"command":"next page","message":"ok"}`))
	})

	res, err := c.ClassifyCommand(context.Background(), "next page")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Action.Type != "next_page" || res.Action.Message != "Going to next page..." {
		t.Fatalf("unexpected action: %+v", res.Action)
	}
}

func TestClassifyCommandMissingActionIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"command":"x"}`))
	})
	_, err := c.ClassifyCommand(context.Background(), "x")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNonJSONBodyIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	})
	_, err := c.ClassifyCommand(context.Background(), "x")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestStatusErrors(t *testing.T) {
	for _, status := range []int{403, 404, 500, 418} {
		status := status
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		})
		_, err := c.VoiceHelp(context.Background())
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: expected StatusError, got %v", status, err)
		}
		if se.Status != status {
			t.Fatalf("status %d: got %d", status, se.Status)
		}
	}
}

func TestBackendErrorFromEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"error":"Command is required"}`))
	})
	_, err := c.ClassifyCommand(context.Background(), "")
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if be.Message != "Command is required" || be.Status != 400 {
		t.Fatalf("unexpected backend error: %+v", be)
	}
}

func TestOKFalseOn200IsBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"Email not found"}`))
	})
	err := c.MarkRead(context.Background(), "abc")
	var be *BackendError
	if !errors.As(err, &be) || be.Message != "Email not found" {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestContextDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ClassifyCommand(ctx, "slow")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestUnreachableServerIsNetworkAndTripsBreaker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := New(Options{BaseURL: url, Timeout: time.Second})
	var last error
	for i := 0; i < 6; i++ {
		_, last = c.VoiceHelp(context.Background())
		if !errors.Is(last, ErrNetwork) {
			t.Fatalf("attempt %d: expected ErrNetwork, got %v", i, last)
		}
	}
	if !strings.Contains(last.Error(), "circuit open") {
		t.Fatalf("expected open circuit after repeated failures, got %v", last)
	}
}

func TestListEmailsPaging(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/emails/" {
			t.Errorf("path %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("per_page") != "10" {
			t.Errorf("query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"ok":true,"emails":[{"id":"m1","subject":"Hi","from":"a@b.c","snippet":"s","date":"d"}],"total_pages":3,"current_page":2,"total_emails":21,"per_page":10}`))
	})
	lp, err := c.ListEmails(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if lp.Kind != KindEmails || len(lp.Items) != 1 || lp.Total != 21 {
		t.Fatalf("unexpected page: %+v", lp)
	}
	if lp.Items[0].From != "a@b.c" {
		t.Fatalf("from alias not decoded: %+v", lp.Items[0])
	}
	if !lp.HasNext || !lp.HasPrevious {
		t.Fatalf("navigation flags not derived: %+v", lp)
	}
}

func TestListDraftsUsesDraftsKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"drafts":[{"id":"d1","subject":"Re: x","to":"z@y"}],"total_pages":1,"current_page":1,"total_drafts":1,"has_next":false,"has_previous":false}`))
	})
	lp, err := c.List(context.Background(), KindDrafts, 1, 10)
	if err != nil {
		t.Fatalf("list drafts: %v", err)
	}
	if lp.Kind != KindDrafts || lp.Items[0].To != "z@y" || lp.HasNext || lp.HasPrevious {
		t.Fatalf("unexpected page: %+v", lp)
	}
}

func TestBulkMarkReadAndMutations(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/emails/bulk-mark-read/" {
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			if len(body["email_ids"]) != 2 {
				t.Errorf("email_ids: %v", body)
			}
			w.Write([]byte(`{"ok":true,"success_count":2}`))
			return
		}
		w.Write([]byte(`{"ok":true,"message":"done"}`))
	})
	ctx := context.Background()
	n, err := c.BulkMarkRead(ctx, []string{"a", "b"})
	if err != nil || n != 2 {
		t.Fatalf("bulk: n=%d err=%v", n, err)
	}
	if err := c.Archive(ctx, "a"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := c.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := []string{"/api/emails/bulk-mark-read/", "/api/email/a/archive/", "/api/email/b/delete/"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("paths: %v", paths)
	}
}

func TestAssistEndpoints(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/drafts/save/":
			w.Write([]byte(`{"ok":true,"draft_id":"r-1"}`))
		case "/api/generate-reply/":
			var req ReplyRequest
			json.NewDecoder(r.Body).Decode(&req)
			w.Write([]byte(`{"ok":true,"summary":"sum","draft_reply":"Thanks for ` + req.Subject + `"}`))
		case "/api/schedule-meeting/":
			w.Write([]byte(`{"ok":true,"event_id":"ev1","html_link":"https://cal/ev1"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	id, err := c.SaveDraft(ctx, Draft{To: "a@b", Subject: "s", Body: "b"})
	if err != nil || id != "r-1" {
		t.Fatalf("save draft: %q %v", id, err)
	}
	reply, err := c.GenerateReply(ctx, ReplyRequest{EmailText: "hello", Subject: "lunch"})
	if err != nil || reply.DraftReply != "Thanks for lunch" {
		t.Fatalf("generate reply: %+v %v", reply, err)
	}
	if _, err := c.GenerateReply(ctx, ReplyRequest{}); err == nil {
		t.Fatalf("expected error for empty email text")
	}
	ev, err := c.ScheduleMeeting(ctx, Meeting{Title: "Meeting: lunch", Start: "2026-01-01T10:00:00Z", End: "2026-01-01T10:30:00Z"})
	if err != nil || ev.EventID != "ev1" {
		t.Fatalf("schedule: %+v %v", ev, err)
	}
}

func TestImportantAndDraftMaintenance(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/emails/important/":
			w.Write([]byte(`{"ok":true,"emails":[{"id":"m1","subject":"Board deck","from":"ana@example.com"},{"id":"m2","subject":"Offsite"}]}`))
		case "/api/email/m1/toggle-important/":
			w.Write([]byte(`{"ok":true,"is_important":false}`))
		case "/api/emails/bulk-archive/":
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			w.Write([]byte(fmt.Sprintf(`{"ok":true,"success_count":%d,"total_count":%d}`, len(body["email_ids"]), len(body["email_ids"]))))
		case "/api/drafts/d1/delete/":
			w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	lp, err := c.List(ctx, KindImportant, 3, 10)
	if err != nil {
		t.Fatalf("important: %v", err)
	}
	if lp.Kind != KindImportant || len(lp.Items) != 2 || lp.TotalPages != 1 || lp.CurrentPage != 1 || lp.HasNext || lp.HasPrevious {
		t.Fatalf("important page %+v", lp)
	}
	if !lp.Items[0].IsImportant || lp.Items[0].From != "ana@example.com" {
		t.Fatalf("important item %+v", lp.Items[0])
	}
	flagged, err := c.ToggleImportant(ctx, "m1")
	if err != nil || flagged {
		t.Fatalf("toggle important: %v %v", flagged, err)
	}
	n, err := c.BulkArchive(ctx, []string{"m1", "m2"})
	if err != nil || n != 2 {
		t.Fatalf("bulk archive: n=%d err=%v", n, err)
	}
	if err := c.DeleteDraft(ctx, "d1"); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	want := []string{
		"GET /api/emails/important/",
		"POST /api/email/m1/toggle-important/",
		"POST /api/emails/bulk-archive/",
		"DELETE /api/drafts/d1/delete/",
	}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls: %v", calls)
	}
}
