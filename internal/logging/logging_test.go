package logging

import (
	"context"
	"sync"
	"testing"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries [][]interface{}
	msgs    []string
}

func (r *recordingLogger) record(msg string, kv []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	r.entries = append(r.entries, kv)
}

func (r *recordingLogger) Infow(msg string, kv ...interface{})  { r.record(msg, kv) }
func (r *recordingLogger) Debugw(msg string, kv ...interface{}) { r.record(msg, kv) }
func (r *recordingLogger) Warnw(msg string, kv ...interface{})  { r.record(msg, kv) }
func (r *recordingLogger) Errorw(msg string, kv ...interface{}) { r.record(msg, kv) }
func (r *recordingLogger) Sync() error                          { return nil }

func TestInfowCtxMergesContextFields(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	t.Cleanup(func() { SetLogger(nil) })

	ctx := WithFields(context.Background(), SessionFields("abc")...)
	ctx = WithFields(ctx, "intent", "help")
	InfowCtx(ctx, "voice: dispatched", "phase", "success")

	if len(rec.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(rec.entries))
	}
	got := rec.entries[0]
	want := []interface{}{"session.id", "abc", "intent", "help", "phase", "success"}
	if len(got) != len(want) {
		t.Fatalf("fields mismatch: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("field %d mismatch: want=%v got=%v", i, want[i], got[i])
		}
	}
}

func TestSetLoggerNilRestoresNoop(t *testing.T) {
	SetLogger(&recordingLogger{})
	SetLogger(nil)
	// Must not panic whichever logger is restored.
	Infow("after reset")
	if GetLogger() == nil {
		t.Fatal("GetLogger returned nil")
	}
}

func TestIntentFieldsOmitsMatchingRawType(t *testing.T) {
	if got := IntentFields("help", "help"); len(got) != 2 {
		t.Fatalf("expected 2 values, got %v", got)
	}
	if got := IntentFields("unknown", "analyze_thread"); len(got) != 4 {
		t.Fatalf("expected 4 values, got %v", got)
	}
}
