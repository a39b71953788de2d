// Package telemetry provides Prometheus metrics, tracing and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Submissions      *prometheus.CounterVec // result
	MetadataFetches  *prometheus.CounterVec // provider, result
	Advances         *prometheus.CounterVec // kind
	Commands         *prometheus.CounterVec // command
	StateSaves       *prometheus.CounterVec // result
	AutoplayFailures prometheus.Counter
	ChatMessages     prometheus.Counter

	// Histograms (seconds)
	MetadataFetchDuration *prometheus.HistogramVec // provider

	// Gauges
	QueueDepthGauge  prometheus.Gauge
	WebsocketClients prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Submissions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "clipqueue_submissions_total", Help: "Clip submissions by outcome"}, []string{"result"})
		MetadataFetches = promauto.NewCounterVec(prometheus.CounterOpts{Name: "clipqueue_metadata_fetches_total", Help: "Metadata fetches by provider and outcome"}, []string{"provider", "result"})
		Advances = promauto.NewCounterVec(prometheus.CounterOpts{Name: "clipqueue_advances_total", Help: "Changes of the current clip by kind"}, []string{"kind"})
		Commands = promauto.NewCounterVec(prometheus.CounterOpts{Name: "clipqueue_commands_total", Help: "Executed chat and admin commands"}, []string{"command"})
		StateSaves = promauto.NewCounterVec(prometheus.CounterOpts{Name: "clipqueue_state_saves_total", Help: "State persistence attempts by outcome"}, []string{"result"})
		AutoplayFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "clipqueue_autoplay_failures_total", Help: "Autoplay URL resolutions that disabled autoplay"})
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "clipqueue_chat_messages_total", Help: "Chat messages received"})
		MetadataFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clipqueue_metadata_fetch_duration_seconds",
			Help:    "Metadata fetch duration seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "clipqueue_queue_depth", Help: "Clips waiting in the queue"})
		WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{Name: "clipqueue_websocket_clients", Help: "Connected overlay clients"})
	})
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveMetadataFetch records one fetch and its duration.
func ObserveMetadataFetch(provider string, ok bool, d time.Duration) {
	if MetadataFetches != nil {
		MetadataFetches.WithLabelValues(provider, outcome(ok)).Inc()
	}
	if MetadataFetchDuration != nil {
		MetadataFetchDuration.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// RecordSubmission counts a submission outcome such as "accepted" or "duplicate".
func RecordSubmission(result string) {
	if Submissions != nil {
		Submissions.WithLabelValues(result).Inc()
	}
}

// RecordAdvance counts a change of the current clip.
func RecordAdvance(kind string) {
	if Advances != nil {
		Advances.WithLabelValues(kind).Inc()
	}
}

// RecordCommand counts an executed command.
func RecordCommand(name string) {
	if Commands != nil {
		Commands.WithLabelValues(name).Inc()
	}
}

// RecordStateSave counts a persistence attempt.
func RecordStateSave(ok bool) {
	if StateSaves != nil {
		StateSaves.WithLabelValues(outcome(ok)).Inc()
	}
}

// RecordAutoplayFailure counts an autoplay resolution failure.
func RecordAutoplayFailure() {
	if AutoplayFailures != nil {
		AutoplayFailures.Inc()
	}
}

// RecordChatMessage counts a received chat message.
func RecordChatMessage() {
	if ChatMessages != nil {
		ChatMessages.Inc()
	}
}

// SetQueueDepth records the number of pending clips.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// AddWebsocketClients adjusts the connected client gauge by delta.
func AddWebsocketClients(delta int) {
	if WebsocketClients != nil {
		WebsocketClients.Add(float64(delta))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
