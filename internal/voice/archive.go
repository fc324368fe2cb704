package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inbox-voice-lab/internal/logging"
)

// Archive keeps captured utterances on disk as <ts>_cid<id>.wav with a JSON
// sidecar next to it. A nil *Archive discards everything.
type Archive struct {
	Dir       string
	Retention time.Duration
	MaxFiles  int

	mu sync.Mutex
}

// NewArchive returns nil when dir is empty.
func NewArchive(dir string, retention time.Duration, maxFiles int) *Archive {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return &Archive{Dir: dir, Retention: retention, MaxFiles: maxFiles}
}

// saveFileAtomic writes data to a tmp file in the same directory, fsyncs
// it and renames it into place.
func saveFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// SaveUtterance writes wav and a sidecar holding meta plus the correlation
// id and wav path. It returns the sidecar path.
func (a *Archive) SaveUtterance(cid string, wav []byte, meta map[string]interface{}) (string, error) {
	if a == nil {
		return "", nil
	}
	base := filepath.Join(a.Dir, fmt.Sprintf("%s_cid%s", time.Now().UTC().Format("20060102T150405.000Z"), cid))
	wavPath := base + ".wav"
	if err := saveFileAtomic(wavPath, wav, 0o644); err != nil {
		return "", fmt.Errorf("saving %s: %w", wavPath, err)
	}
	sc := map[string]interface{}{}
	for k, v := range meta {
		sc[k] = v
	}
	sc["correlation_id"] = cid
	sc["wav_path"] = wavPath
	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", err
	}
	jsonPath := base + ".json"
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := saveFileAtomic(jsonPath, b, 0o644); err != nil {
		return "", fmt.Errorf("saving %s: %w", jsonPath, err)
	}
	logging.Debugw("archive: utterance saved", "path", jsonPath, "correlation_id", cid)
	return jsonPath, nil
}

// find returns the sidecar whose correlation_id is cid, or "".
func (a *Archive) find(cid string) string {
	files, err := os.ReadDir(a.Dir)
	if err != nil {
		logging.Warnw("archive: failed to list dir", "dir", a.Dir, "err", err)
		return ""
	}
	for _, fi := range files {
		name := fi.Name()
		if strings.HasSuffix(name, ".json") && strings.Contains(name, "_cid"+cid) {
			return filepath.Join(a.Dir, name)
		}
	}
	for _, fi := range files {
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(a.Dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			logging.Debugw("archive: failed to read sidecar while searching", "path", path, "err", err, "correlation_id", cid)
			continue
		}
		var sc map[string]interface{}
		if json.Unmarshal(b, &sc) == nil && sc["correlation_id"] == cid {
			return path
		}
	}
	return ""
}

// Annotate merges updates into the sidecar of cid.
func (a *Archive) Annotate(cid string, updates map[string]interface{}) error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	path := a.find(cid)
	if path == "" {
		return fmt.Errorf("sidecar not found for cid=%s in %s", cid, a.Dir)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading sidecar %s: %w", path, err)
	}
	var sc map[string]interface{}
	if err := json.Unmarshal(b, &sc); err != nil {
		return fmt.Errorf("invalid sidecar JSON %s: %w", path, err)
	}
	for k, v := range updates {
		sc[k] = v
	}
	nb, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}
	if err := saveFileAtomic(path, nb, 0o644); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", path, err)
	}
	return nil
}

// Prune removes pairs older than Retention, then the oldest pairs beyond
// MaxFiles. It returns how many pairs it removed.
func (a *Archive) Prune(now time.Time) int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	files, err := os.ReadDir(a.Dir)
	if err != nil {
		logging.Debugw("archive: prune readDir failed", "err", err)
		return 0
	}
	type pair struct {
		jsonPath string
		wavPath  string
		mod      time.Time
	}
	var pairs []pair
	for _, fi := range files {
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		jsonPath := filepath.Join(a.Dir, name)
		info, err := fi.Info()
		if err != nil {
			continue
		}
		wavPath := strings.TrimSuffix(jsonPath, ".json") + ".wav"
		if b, err := os.ReadFile(jsonPath); err == nil {
			var sc map[string]interface{}
			if json.Unmarshal(b, &sc) == nil {
				if v, ok := sc["wav_path"].(string); ok && v != "" {
					wavPath = v
				}
			}
		}
		pairs = append(pairs, pair{jsonPath: jsonPath, wavPath: wavPath, mod: info.ModTime()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].mod.Before(pairs[j].mod) })

	remove := func(p pair) {
		_ = os.Remove(p.jsonPath)
		_ = os.Remove(p.wavPath)
	}
	removed := 0
	kept := pairs[:0]
	for _, p := range pairs {
		if a.Retention > 0 && p.mod.Before(now.Add(-a.Retention)) {
			remove(p)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if a.MaxFiles > 0 && len(kept) > a.MaxFiles {
		for _, p := range kept[:len(kept)-a.MaxFiles] {
			remove(p)
			removed++
		}
	}
	if removed > 0 {
		logging.Infow("archive: pruned utterances", "dir", a.Dir, "removed", removed)
	}
	return removed
}

// StartCleaner prunes every interval until ctx is done.
func (a *Archive) StartCleaner(ctx context.Context, interval time.Duration) {
	if a == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.Prune(now)
			}
		}
	}()
}
