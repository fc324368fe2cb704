package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/inbox-voice-lab/internal/logging"
)

// TTSSpeaker synthesizes text with an external TTS service and plays the
// returned audio through a player command that reads it from stdin.
type TTSSpeaker struct {
	URL       string
	AuthToken string
	Player    []string
	Timeout   time.Duration
	Client    *http.Client

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	speaking bool
}

func NewTTSSpeaker(ttsURL, authToken string, player []string, timeout time.Duration) *TTSSpeaker {
	return &TTSSpeaker{URL: ttsURL, AuthToken: authToken, Player: player, Timeout: timeout, Client: &http.Client{}}
}

// Speak cancels the utterance in progress and starts text in the background.
func (t *TTSSpeaker) Speak(text string) error {
	if t.URL == "" {
		return errors.New("tts client not configured")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.cancel = cancel
	t.speaking = true
	t.mu.Unlock()

	go t.play(ctx, gen, text)
	return nil
}

func (t *TTSSpeaker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.speaking = false
}

func (t *TTSSpeaker) Speaking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speaking
}

func (t *TTSSpeaker) play(ctx context.Context, gen uint64, text string) {
	defer func() {
		t.mu.Lock()
		if t.gen == gen {
			if t.cancel != nil {
				t.cancel()
			}
			t.speaking = false
			t.cancel = nil
		}
		t.mu.Unlock()
	}()

	audio, err := t.synthesize(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warnw("tts: synthesis failed", "err", err)
		}
		return
	}
	if len(t.Player) == 0 || ctx.Err() != nil {
		return
	}
	cmd := exec.CommandContext(ctx, t.Player[0], t.Player[1:]...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		logging.Warnw("tts: player failed", "err", err, "player", t.Player[0])
	}
}

func (t *TTSSpeaker) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, _ := json.Marshal(map[string]string{"text": text})
	timeout := 10 * time.Second
	if t.Timeout > 0 {
		timeout = t.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.AuthToken)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("tts returned status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logging.Debugw("tts: audio received", "bytes", len(audio))
	return audio, nil
}
