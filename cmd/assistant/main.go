package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/inbox-voice-lab/internal/config"
	"github.com/inbox-voice-lab/internal/control"
	"github.com/inbox-voice-lab/internal/inbox"
	"github.com/inbox-voice-lab/internal/logging"
	"github.com/inbox-voice-lab/internal/mailapi"
	"github.com/inbox-voice-lab/internal/ui"
	"github.com/inbox-voice-lab/internal/voice"
)

var version = "dev"

// sensitiveKeys lists config keys which should never be logged in plaintext.
var sensitiveKeys = map[string]struct{}{
	"authtoken": {}, "auth_token": {}, "csrftoken": {}, "csrf_token": {}, "token": {},
}

// redactAny walks a decoded JSON value and replaces values for sensitive
// keys with a placeholder. It modifies maps and slices in place.
func redactAny(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		for k, val := range vv {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				if s, isStr := val.(string); isStr && s == "" {
					continue
				}
				vv[k] = "<redacted>"
				continue
			}
			vv[k] = redactAny(val)
		}
		return vv
	case []any:
		for i, it := range vv {
			vv[i] = redactAny(it)
		}
		return vv
	default:
		return v
	}
}

// effectiveConfig is cfg as a loggable value with secrets removed.
func effectiveConfig(cfg *config.Config) any {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "<unavailable>"
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return "<unavailable>"
	}
	return redactAny(v)
}

// buildRecognizer returns the configured engine and, for the line engine,
// the same value so the command loop can feed it.
func buildRecognizer(ctx context.Context, cfg *config.Config) (voice.Recognizer, *voice.LineRecognizer) {
	switch cfg.Voice.Recognizer {
	case "whisper":
		wr := voice.NewWhisperRecognizer(cfg.Whisper.URL, strings.Fields(cfg.Whisper.CaptureCommand), cfg.Whisper.SampleRate, cfg.WhisperTimeout())
		if a := voice.NewArchive(cfg.Whisper.SaveDir, cfg.SaveRetention(), cfg.Whisper.SaveMaxFiles); a != nil {
			wr.Archive = a
			a.StartCleaner(ctx, time.Minute)
		}
		return wr, nil
	case "none":
		return nil, nil
	default:
		lr := voice.NewLineRecognizer()
		return lr, lr
	}
}

func buildSpeaker(cfg *config.Config, t *ui.Terminal) voice.Speaker {
	if cfg.TTS.URL == "" {
		return ui.NewEcho(t)
	}
	return voice.NewTTSSpeaker(cfg.TTS.URL, cfg.TTS.AuthToken, strings.Fields(cfg.TTS.PlayerCommand), cfg.TTSTimeout())
}

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("ASSISTANT_CONFIG"), "path to a YAML config file")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()
	if *showVersion {
		os.Stdout.WriteString(version + "\n")
		return
	}

	sugar := logging.Init()
	if sugar == nil {
		l, _ := zap.NewProduction()
		sugar = l.Sugar()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	sugar.Infow("assistant: starting", "version", version, "config", effectiveConfig(cfg))

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	terminal := ui.NewTerminal(os.Stdout, inbox.Theme(cfg.Display.Theme))

	api := mailapi.New(mailapi.Options{
		BaseURL:   cfg.API.BaseURL,
		AuthToken: cfg.API.AuthToken,
		CSRFToken: cfg.API.CSRFToken,
		Timeout:   cfg.APITimeout(),
	})
	session := inbox.NewSession(api, terminal, inbox.Options{
		PerPage: cfg.Display.PerPage,
		Theme:   inbox.Theme(cfg.Display.Theme),
		Compose: cfg.Display.Compose,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recognizer, lines := buildRecognizer(ctx, cfg)
	ctl, err := voice.NewController(voice.Deps{
		Classifier: api,
		Page:       session,
		Help:       terminal,
		Feedback:   terminal,
		Recognizer: recognizer,
		Speaker:    buildSpeaker(cfg, terminal),
	}, voice.Options{
		Lang:           cfg.Voice.Lang,
		CommandTimeout: cfg.CommandTimeout(),
		WakePhrases:    cfg.Voice.WakePhrases,
		OnTransition: func(from, to voice.State) {
			logging.Debugw("assistant: voice state", "from", from.String(), "to", to.String())
		},
	})
	if err != nil {
		sugar.Fatalf("voice controller: %v", err)
	}

	if cfg.Control.Addr != "" {
		srv := control.NewServer(ctl, version)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Control.Addr); err != nil {
				sugar.Warnw("control server stopped", "err", err)
			}
		}()
	}

	if err := session.LoadEmails(ctx, 1); err != nil {
		sugar.Warnw("initial email load failed", "err", err)
	}

	a := &app{
		ctl:         ctl,
		lines:       lines,
		session:     session,
		term:        terminal,
		interactive: interactive,
	}
	done := make(chan error, 1)
	go func() { done <- a.run(ctx, os.Stdin) }()

	select {
	case <-ctx.Done():
		sugar.Infow("shutdown signal received, closing resources")
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			sugar.Warnw("command loop ended", "err", err)
		}
	}

	// Leaving the assistant releases the microphone, cancels any request in
	// flight and silences speech.
	ctl.Stop()
	stop()
	sugar.Info("shutdown complete")
	_ = logging.Sync()
}
