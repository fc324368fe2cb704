package voice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readSidecar(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var sc map[string]interface{}
	if err := json.Unmarshal(b, &sc); err != nil {
		t.Fatalf("decode sidecar: %v", err)
	}
	return sc
}

func TestArchiveSaveAndAnnotate(t *testing.T) {
	a := NewArchive(t.TempDir(), time.Hour, 0)
	path, err := a.SaveUtterance("abc", buildWAV(make([]byte, 4), 16000, 1, 16), map[string]interface{}{"lang": "en-US"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	sc := readSidecar(t, path)
	wavPath, _ := sc["wav_path"].(string)
	if sc["correlation_id"] != "abc" || sc["lang"] != "en-US" || !strings.HasSuffix(wavPath, "_cidabc.wav") {
		t.Fatalf("sidecar %+v", sc)
	}
	if _, err := os.Stat(wavPath); err != nil {
		t.Fatalf("wav not written: %v", err)
	}

	if err := a.Annotate("abc", map[string]interface{}{"transcript": "next page"}); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if sc := readSidecar(t, path); sc["transcript"] != "next page" || sc["lang"] != "en-US" {
		t.Fatalf("annotated sidecar %+v", sc)
	}
	if err := a.Annotate("missing", map[string]interface{}{"x": 1}); err == nil {
		t.Fatalf("expected error for unknown cid")
	}
}

func TestArchivePruneByAgeAndCount(t *testing.T) {
	dir := t.TempDir()
	a := NewArchive(dir, time.Hour, 2)
	now := time.Now()
	var paths []string
	for i, cid := range []string{"old", "a", "b", "c"} {
		p, err := a.SaveUtterance(cid, []byte("RIFF"), nil)
		if err != nil {
			t.Fatalf("save %s: %v", cid, err)
		}
		mod := now.Add(time.Duration(i-3) * time.Minute)
		if cid == "old" {
			mod = now.Add(-2 * time.Hour)
		}
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
		paths = append(paths, p)
	}

	if n := a.Prune(now); n != 2 {
		t.Fatalf("pruned %d pairs, want 2", n)
	}
	for i, p := range paths {
		_, err := os.Stat(p)
		kept := err == nil
		if kept != (i >= 2) {
			t.Fatalf("%s kept=%v", filepath.Base(p), kept)
		}
	}
	wavs, _ := filepath.Glob(filepath.Join(dir, "*.wav"))
	if len(wavs) != 2 {
		t.Fatalf("wavs left %v", wavs)
	}
}

func TestNilArchiveIsDisabled(t *testing.T) {
	var a *Archive = NewArchive("  ", time.Hour, 1)
	if a != nil {
		t.Fatalf("blank dir should disable the archive")
	}
	if p, err := a.SaveUtterance("x", nil, nil); p != "" || err != nil {
		t.Fatalf("nil archive saved %q %v", p, err)
	}
	if a.Prune(time.Now()) != 0 || a.Annotate("x", nil) != nil {
		t.Fatalf("nil archive should do nothing")
	}
}

func TestWhisperRecognizerArchivesUtterance(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "archive"})
	}))
	defer ts.Close()

	dir := t.TempDir()
	r := NewWhisperRecognizer(ts.URL, []string{"printf", "abcd"}, 16000, 2*time.Second)
	r.Archive = NewArchive(dir, time.Hour, 10)
	h := newRecordingHandler()
	if err := r.Start(RecognitionOptions{Lang: "en-US"}, h); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-h.ended:
	case <-time.After(5 * time.Second):
		t.Fatalf("recognizer never ended")
	}
	sidecars, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(sidecars) != 1 {
		t.Fatalf("sidecars %v", sidecars)
	}
	sc := readSidecar(t, sidecars[0])
	if sc["transcript"] != "archive" || sc["lang"] != "en-US" {
		t.Fatalf("sidecar %+v", sc)
	}
}
