package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inbox-voice-lab/internal/logging"
)

// buildWAV creates a simple RIFF/WAVE header for 16-bit PCM and returns the
// concatenated bytes (header + data).
func buildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)
	dataLen := uint32(len(pcm))
	riffSize := uint32(4 + (8 + 16) + (8 + dataLen))

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, riffSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}

// WhisperRecognizer captures one utterance of mono PCM16LE from a capture
// command and transcribes it with a Whisper-compatible HTTP service.
type WhisperRecognizer struct {
	URL            string
	CaptureCommand []string
	SampleRate     int
	Timeout        time.Duration
	HTTP           *http.Client

	// Archive, when set, keeps each captured utterance and its transcript.
	Archive *Archive

	mu     sync.Mutex
	active *whisperRun
}

// whisperRun is one capture and transcription.
type whisperRun struct {
	cancel context.CancelFunc
}

func NewWhisperRecognizer(whisperURL string, capture []string, sampleRate int, timeout time.Duration) *WhisperRecognizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &WhisperRecognizer{
		URL:            whisperURL,
		CaptureCommand: capture,
		SampleRate:     sampleRate,
		Timeout:        timeout,
		HTTP:           &http.Client{},
	}
}

func (r *WhisperRecognizer) Start(opts RecognitionOptions, h RecognitionHandler) error {
	if r.URL == "" {
		return errors.New("WHISPER_URL not set")
	}
	if len(r.CaptureCommand) == 0 {
		return errors.New("capture command not set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return errEngineBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	wr := &whisperRun{cancel: cancel}
	r.active = wr
	go r.run(ctx, wr, opts, h)
	return nil
}

// Stop cancels the live session and releases the engine at once, so Start
// may follow while the stopped session is still winding down.
func (r *WhisperRecognizer) Stop() error {
	r.mu.Lock()
	active := r.active
	r.active = nil
	r.mu.Unlock()
	if active != nil {
		active.cancel()
	}
	return nil
}

// run records one utterance and reports it. The engine is released before
// the callbacks fire so the handler may start the next session.
func (r *WhisperRecognizer) run(ctx context.Context, self *whisperRun, opts RecognitionOptions, h RecognitionHandler) {
	text, err := r.listen(ctx, opts.Lang)
	stopped := ctx.Err() != nil

	r.mu.Lock()
	if r.active == self {
		r.active = nil
	}
	r.mu.Unlock()
	self.cancel()

	switch {
	case stopped:
	case err != nil:
		h.OnError(err)
	case text == "":
		h.OnError(errNoSpeech)
	default:
		h.OnResult(text)
	}
	h.OnEnd()
}

func (r *WhisperRecognizer) listen(ctx context.Context, lang string) (string, error) {
	cid := uuid.NewString()
	pcm, err := r.capture(ctx)
	if err != nil {
		logging.Warnw("whisper: capture failed", "err", err, "correlation_id", cid)
		return "", fmt.Errorf("audio-capture: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	archived := r.archive(cid, pcm, lang)
	text, err := r.transcribe(ctx, pcm, lang, cid)
	if archived {
		update := map[string]interface{}{"transcript": text}
		if err != nil {
			update["transcribe_error"] = err.Error()
		}
		if aerr := r.Archive.Annotate(cid, update); aerr != nil {
			logging.Warnw("whisper: failed to annotate utterance", "err", aerr, "correlation_id", cid)
		}
	}
	if err != nil {
		logging.Warnw("whisper: transcription failed", "err", err, "correlation_id", cid)
		return "", fmt.Errorf("network: %w", err)
	}
	return text, nil
}

// archive saves the captured audio before it is transcribed.
func (r *WhisperRecognizer) archive(cid string, pcm []byte, lang string) bool {
	if r.Archive == nil {
		return false
	}
	meta := map[string]interface{}{
		"lang":        lang,
		"sample_rate": r.SampleRate,
		"captured_at": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := r.Archive.SaveUtterance(cid, buildWAV(pcm, r.SampleRate, 1, 16), meta); err != nil {
		logging.Warnw("whisper: failed to archive utterance", "err", err, "correlation_id", cid)
		return false
	}
	return true
}

func (r *WhisperRecognizer) capture(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.CaptureCommand[0], r.CaptureCommand[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// transcribe wraps pcm into a WAV and POSTs it to the service. The locale's
// language part is passed as the language query parameter.
func (r *WhisperRecognizer) transcribe(ctx context.Context, pcm []byte, lang, correlationID string) (string, error) {
	whisperURL := r.URL
	if u, err := url.Parse(r.URL); err == nil {
		q := u.Query()
		if l := strings.SplitN(lang, "-", 2)[0]; l != "" {
			q.Set("language", strings.ToLower(l))
		}
		u.RawQuery = q.Encode()
		whisperURL = u.String()
	}

	wav := buildWAV(pcm, r.SampleRate, 1, 16)
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, whisperURL, bytes.NewReader(wav))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("X-Correlation-ID", correlationID)

	samples := len(pcm) / 2
	logging.Debugw("whisper: sending audio", "url", whisperURL, "correlation_id", correlationID, "bytes", len(pcm), "duration_ms", samples*1000/r.SampleRate)
	sent := time.Now()
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("stt status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	logging.Infow("whisper: transcript received", "correlation_id", correlationID, "stt_latency_ms", time.Since(sent).Milliseconds(), "transcript", text)
	return text, nil
}
