package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig points at the webmail assistant backend.
type APIConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token"`
	CSRFToken string `mapstructure:"csrf_token" yaml:"csrf_token"`
	TimeoutMS int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// VoiceConfig controls the voice command controller.
type VoiceConfig struct {
	// Recognizer selects the speech engine: "line", "whisper" or "none".
	Recognizer       string   `mapstructure:"recognizer" yaml:"recognizer"`
	Lang             string   `mapstructure:"lang" yaml:"lang"`
	CommandTimeoutMS int      `mapstructure:"command_timeout_ms" yaml:"command_timeout_ms"`
	WakePhrases      []string `mapstructure:"wake_phrases" yaml:"wake_phrases"`
}

// WhisperConfig configures the HTTP speech-to-text recognizer.
type WhisperConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	CaptureCommand string `mapstructure:"capture_command" yaml:"capture_command"`
	SampleRate     int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	TimeoutMS      int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`

	// SaveDir keeps captured utterances with JSON sidecars. Empty disables it.
	SaveDir            string `mapstructure:"save_dir" yaml:"save_dir"`
	SaveRetentionHours int    `mapstructure:"save_retention_hours" yaml:"save_retention_hours"`
	SaveMaxFiles       int    `mapstructure:"save_max_files" yaml:"save_max_files"`
}

// TTSConfig configures the HTTP text-to-speech speaker. An empty URL keeps
// spoken output in the terminal.
type TTSConfig struct {
	URL           string `mapstructure:"url" yaml:"url"`
	AuthToken     string `mapstructure:"auth_token" yaml:"auth_token"`
	PlayerCommand string `mapstructure:"player_command" yaml:"player_command"`
	TimeoutMS     int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// ControlConfig configures the MCP control surface. An empty Addr disables it.
type ControlConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DisplayConfig holds terminal rendering preferences.
type DisplayConfig struct {
	Theme   string `mapstructure:"theme" yaml:"theme"`
	PerPage int    `mapstructure:"per_page" yaml:"per_page"`
	Compose bool   `mapstructure:"compose" yaml:"compose"`
}

// Config is the top-level assistant configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Voice   VoiceConfig   `mapstructure:"voice" yaml:"voice"`
	Whisper WhisperConfig `mapstructure:"whisper" yaml:"whisper"`
	TTS     TTSConfig     `mapstructure:"tts" yaml:"tts"`
	Control ControlConfig `mapstructure:"control" yaml:"control"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

var defaults = map[string]interface{}{
	"api.base_url":                 "http://127.0.0.1:8000",
	"api.timeout_ms":               10000,
	"voice.recognizer":             "line",
	"voice.lang":                   "en-US",
	"voice.command_timeout_ms":     10000,
	"voice.wake_phrases":           []string{},
	"whisper.capture_command":      "arecord -q -f S16_LE -r 16000 -c 1 -t raw -d 5",
	"whisper.sample_rate":          16000,
	"whisper.timeout_ms":           15000,
	"whisper.save_retention_hours": 24,
	"whisper.save_max_files":       200,
	"tts.player_command":           "aplay -q",
	"tts.timeout_ms":               10000,
	"control.addr":                 "127.0.0.1:9001",
	"display.theme":                "dark",
	"display.per_page":             10,
	"display.compose":              true,
}

// envBindings maps config keys to the environment variables that override
// them. Several names are shared with the speech services' own deployments.
var envBindings = map[string][]string{
	"api.base_url":                 {"MAIL_API_URL"},
	"api.auth_token":               {"MAIL_API_TOKEN"},
	"api.csrf_token":               {"MAIL_API_CSRF_TOKEN"},
	"api.timeout_ms":               {"MAIL_API_TIMEOUT_MS"},
	"voice.recognizer":             {"VOICE_RECOGNIZER"},
	"voice.lang":                   {"VOICE_LANG", "STT_LANGUAGE"},
	"voice.command_timeout_ms":     {"VOICE_COMMAND_TIMEOUT_MS"},
	"voice.wake_phrases":           {"WAKE_PHRASES"},
	"whisper.url":                  {"WHISPER_URL"},
	"whisper.capture_command":      {"WHISPER_CAPTURE_COMMAND"},
	"whisper.sample_rate":          {"WHISPER_SAMPLE_RATE"},
	"whisper.timeout_ms":           {"WHISPER_TIMEOUT_MS"},
	"whisper.save_dir":             {"SAVE_AUDIO_DIR"},
	"whisper.save_retention_hours": {"SAVE_AUDIO_RETENTION_HOURS"},
	"whisper.save_max_files":       {"SAVE_AUDIO_MAX_FILES"},
	"tts.url":                      {"TTS_URL"},
	"tts.auth_token":               {"TTS_AUTH_TOKEN"},
	"tts.player_command":           {"TTS_PLAYER_COMMAND"},
	"tts.timeout_ms":               {"TTS_TIMEOUT_MS"},
	"control.addr":                 {"CONTROL_ADDR"},
	"display.theme":                {"DISPLAY_THEME"},
	"display.per_page":             {"DISPLAY_PER_PAGE"},
	"display.compose":              {"DISPLAY_COMPOSE"},
}

// Load reads configuration from path (YAML) layered over defaults and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, envs := range envBindings {
		args := append([]string{k}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	// WAKE_PHRASES arrives as one comma-separated string.
	cfg.Voice.WakePhrases = splitPhrases(cfg.Voice.WakePhrases)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitPhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, entry := range in {
		for _, p := range strings.Split(entry, ",") {
			if s := strings.ToLower(strings.TrimSpace(p)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Validate rejects values the assistant cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	switch c.Voice.Recognizer {
	case "line", "none":
	case "whisper":
		if c.Whisper.URL == "" {
			return errors.New("whisper.url is required when voice.recognizer is whisper")
		}
	default:
		return fmt.Errorf("unknown voice.recognizer %q", c.Voice.Recognizer)
	}
	switch c.Display.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("unknown display.theme %q", c.Display.Theme)
	}
	if c.Display.PerPage < 1 || c.Display.PerPage > 50 {
		return fmt.Errorf("display.per_page must be between 1 and 50, got %d", c.Display.PerPage)
	}
	return nil
}

func ms(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

// CommandTimeout bounds one classification request.
func (c *Config) CommandTimeout() time.Duration {
	return ms(c.Voice.CommandTimeoutMS, 10*time.Second)
}

func (c *Config) APITimeout() time.Duration {
	return ms(c.API.TimeoutMS, 10*time.Second)
}

func (c *Config) WhisperTimeout() time.Duration {
	return ms(c.Whisper.TimeoutMS, 15*time.Second)
}

// SaveRetention is how long archived utterances are kept.
func (c *Config) SaveRetention() time.Duration {
	if c.Whisper.SaveRetentionHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Whisper.SaveRetentionHours) * time.Hour
}

func (c *Config) TTSTimeout() time.Duration {
	return ms(c.TTS.TimeoutMS, 10*time.Second)
}
