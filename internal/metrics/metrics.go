package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	MessagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listmunge_messages_processed_total",
		Help: "Total number of messages run through the pipeline",
	})

	MessagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listmunge_messages_skipped_total",
		Help: "Total number of messages whose Subject was left alone",
	}, []string{"reason"})

	HandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "listmunge_handler_duration_seconds",
		Help:    "Time taken by each pipeline handler",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 0.1ms to ~1.6s
	}, []string{"handler"})

	// Subject Metrics
	SubjectsRewritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listmunge_subjects_rewritten_total",
		Help: "Total number of Subject headers rewritten by list and strategy",
	}, []string{"list", "strategy"})

	NestedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listmunge_nested_messages_total",
		Help: "Total number of messages that arrived from a parent list",
	})

	// Sequence Metrics
	PostIDsAdvanced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listmunge_post_ids_advanced_total",
		Help: "Total number of post sequence advances by list",
	}, []string{"list"})

	SequenceBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listmunge_sequence_breaker_state",
		Help: "Sequence store circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"backend"})

	// Batch Metrics
	BatchMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listmunge_batch_messages_total",
		Help: "Total messages handled by batch runs",
	}, []string{"source", "result"})

	// Error Metrics
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listmunge_errors_total",
		Help: "Total errors by component",
	}, []string{"component", "type"})
)

// RecordRewrite records a rewritten Subject
func RecordRewrite(list, strategy string) {
	SubjectsRewritten.WithLabelValues(list, strategy).Inc()
}

// RecordSkip records a message the rewriter did not touch
func RecordSkip(reason string) {
	MessagesSkipped.WithLabelValues(reason).Inc()
}

// RecordHandler records the duration of one handler run
func RecordHandler(handler string, durationSeconds float64) {
	HandlerDuration.WithLabelValues(handler).Observe(durationSeconds)
}

// RecordAdvance records a post sequence advance
func RecordAdvance(list string) {
	PostIDsAdvanced.WithLabelValues(list).Inc()
}

// RecordBreakerState records a sequence store circuit breaker transition
func RecordBreakerState(backend string, state int) {
	SequenceBreakerState.WithLabelValues(backend).Set(float64(state))
}

// RecordBatch records the outcome of one message in a batch run
func RecordBatch(source string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	BatchMessages.WithLabelValues(source, result).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	Errors.WithLabelValues(component, errorType).Inc()
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
