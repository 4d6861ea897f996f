package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bot's Prometheus metrics.
type Metrics struct {
	UpdatesReceived *prometheus.CounterVec
	NotesCreated    prometheus.Counter
	EventsCreated   prometheus.Counter
	UndoOperations  prometheus.Counter
	ExternalErrors  *prometheus.CounterVec
	ProcessingTime  prometheus.Histogram
}

var globalMetrics *Metrics

// Init registers the bot's metrics with the default registry.
func Init() *Metrics {
	metrics := &Metrics{
		UpdatesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memobot_updates_received_total",
			Help: "Total Telegram updates received by kind",
		}, []string{"kind"}), // kind: text, voice, photo, document, command, callback

		NotesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memobot_notes_created_total",
			Help: "Total notes created",
		}),

		EventsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memobot_calendar_events_created_total",
			Help: "Total calendar events created from notes",
		}),

		UndoOperations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memobot_undo_operations_total",
			Help: "Total undo operations performed",
		}),

		ExternalErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memobot_external_errors_total",
			Help: "Total errors from external services",
		}, []string{"service"}), // service: notion, telegram, llm, calendar, clickup, transcribe, vector

		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "memobot_update_processing_duration_seconds",
			Help:    "Update processing latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}

	globalMetrics = metrics
	return metrics
}

// Get returns the global metrics instance, nil before Init.
func Get() *Metrics {
	return globalMetrics
}

// ExternalError increments the error counter for a service, tolerating a
// nil receiver so call sites do not need to guard.
func (m *Metrics) ExternalError(service string) {
	if m == nil {
		return
	}
	m.ExternalErrors.WithLabelValues(service).Inc()
}
