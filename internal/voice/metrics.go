package voice

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VoiceCommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_voice_commands_total",
		Help: "Voice commands processed, by intent and outcome status",
	}, []string{"intent", "status"})

	ClassificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inbox_voice_classification_latency_seconds",
		Help:    "Latency of backend intent classification",
		Buckets: prometheus.DefBuckets,
	})

	RecognitionSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_voice_recognition_sessions_total",
		Help: "Recognition sessions by how they ended",
	}, []string{"result"})

	ControllerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inbox_voice_controller_state",
		Help: "Current controller state (0 idle, 1 listening, 2 processing, 3 error)",
	})
)

var statusLabels = []struct {
	category error
	label    string
}{
	{ErrTimeout, "timeout"},
	{ErrNetwork, "network"},
	{ErrMalformed, "malformed"},
	{ErrBackend, "backend"},
	{ErrPrecondition, "precondition"},
	{ErrUnknownIntent, "unknown"},
	{ErrRecognition, "recognition"},
	{ErrBusy, "busy"},
	{ErrSessionActive, "session_active"},
	{ErrUnsupported, "unsupported"},
}

// outcomeStatus is the status label recorded for o.
func outcomeStatus(o Outcome) string {
	if o.Err == nil {
		return "ok"
	}
	for _, s := range statusLabels {
		if errors.Is(o.Err, s.category) {
			return s.label
		}
	}
	return "canceled"
}

// StatusLabel is "ok", "canceled" or the short name of the error category.
func (o Outcome) StatusLabel() string { return outcomeStatus(o) }
