package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
	mu    sync.RWMutex
)

// Logger is the structured logging interface used across the assistant.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Sync() error
}

type noopLogger struct{}

func (noopLogger) Infow(string, ...interface{})  {}
func (noopLogger) Debugw(string, ...interface{}) {}
func (noopLogger) Warnw(string, ...interface{})  {}
func (noopLogger) Errorw(string, ...interface{}) {}
func (noopLogger) Sync() error                   { return nil }

// current starts as a no-op so packages can log before Init runs (tests).
var current Logger = noopLogger{}

// Init builds the process logger from LOG_LEVEL and LOG_OUTPUT and redirects
// the standard library logger into zap. Only the first call has an effect.
//
// LOG_OUTPUT defaults to stderr so structured logs do not interleave with the
// terminal UI written to stdout.
func Init() *zap.SugaredLogger {
	once.Do(func() {
		level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
		output := strings.TrimSpace(os.Getenv("LOG_OUTPUT"))
		if output == "" {
			output = "stderr"
		}
		cfg := zap.Config{
			Encoding:         "json",
			EncoderConfig:    zap.NewProductionEncoderConfig(),
			OutputPaths:      []string{output},
			ErrorOutputPaths: []string{"stderr"},
		}
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.CallerKey = "caller"
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

		logger, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel))
		if err != nil {
			logger, _ = zap.NewProduction()
		}
		_ = zap.RedirectStdLog(logger)
		sugar = logger.Sugar()
		SetLogger(sugar)
	})
	return sugar
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// SetLogger replaces the package-level logger. Passing nil restores the
// logger built by Init, or the no-op logger when Init was never called.
func SetLogger(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	switch {
	case l != nil:
		current = l
	case sugar != nil:
		current = sugar
	default:
		current = noopLogger{}
	}
}

// GetLogger returns the active Logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetLogger().Infow(msg, keysAndValues...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetLogger().Debugw(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	GetLogger().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetLogger().Errorw(msg, keysAndValues...)
}

// Sync flushes any buffered logs.
func Sync() error {
	return GetLogger().Sync()
}

type ctxKeyType struct{}

// WithFields returns a context carrying the given key/value pairs, appended to
// any already attached.
func WithFields(ctx context.Context, kv ...interface{}) context.Context {
	if len(kv) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(ctxKeyType{}).([]interface{})
	merged := make([]interface{}, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, ctxKeyType{}, merged)
}

// FromContext returns the fields attached with WithFields.
func FromContext(ctx context.Context) []interface{} {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(ctxKeyType{}).([]interface{})
	return v
}

func merge(ctx context.Context, kv []interface{}) []interface{} {
	ctxFields := FromContext(ctx)
	if len(ctxFields) == 0 {
		return kv
	}
	merged := make([]interface{}, 0, len(ctxFields)+len(kv))
	merged = append(merged, ctxFields...)
	return append(merged, kv...)
}

func InfowCtx(ctx context.Context, msg string, kv ...interface{}) {
	Infow(msg, merge(ctx, kv)...)
}

func DebugwCtx(ctx context.Context, msg string, kv ...interface{}) {
	Debugw(msg, merge(ctx, kv)...)
}

func WarnwCtx(ctx context.Context, msg string, kv ...interface{}) {
	Warnw(msg, merge(ctx, kv)...)
}

// Canonical dot-separated keys keep downstream queries uniform.

func SessionFields(sessionID string) []interface{} {
	return []interface{}{"session.id", sessionID}
}

func IntentFields(kind, rawType string) []interface{} {
	if rawType == "" || rawType == kind {
		return []interface{}{"intent", kind}
	}
	return []interface{}{"intent", kind, "intent.raw", rawType}
}

func EmailFields(id, subject string) []interface{} {
	if subject == "" {
		return []interface{}{"email.id", id}
	}
	return []interface{}{"email.id", id, "email.subject", subject}
}

// PageFields describes list-view position.
func PageFields(view string, page, totalPages int) []interface{} {
	return []interface{}{"view", view, "page", page, "total_pages", totalPages}
}
