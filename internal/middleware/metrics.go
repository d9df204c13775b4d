package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_messages_received_total",
		Help: "Total number of inbound messages seen",
	}, []string{"chat_type"})

	messagesIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_messages_ignored_total",
		Help: "Total number of inbound messages dropped before classification",
	}, []string{"reason"})

	classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_classifications_total",
		Help: "Total number of trigger classifications by category",
	}, []string{"category"})

	repliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_replies_sent_total",
		Help: "Total number of outbound replies by text source",
	}, []string{"source"})

	repliesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_replies_suppressed_total",
		Help: "Total number of suppressed replies",
	}, []string{"reason"})

	generativeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_generative_requests_total",
		Help: "Total number of generative source calls",
	}, []string{"status"})

	generativeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modbot_generative_request_duration_seconds",
		Help:    "Duration of generative source calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modbot_storage_operations_total",
		Help: "Total number of backing store calls by operation and outcome",
	}, []string{"operation", "status"})

	burstFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modbot_burst_flushes_total",
		Help: "Total number of aggregated burst replies dispatched",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records an inbound message
func (m *Metrics) RecordMessageReceived(chatType string) {
	messagesReceived.WithLabelValues(chatType).Inc()
}

// RecordMessageIgnored records a message dropped before classification
func (m *Metrics) RecordMessageIgnored(reason string) {
	messagesIgnored.WithLabelValues(reason).Inc()
}

// RecordClassification records a classification outcome
func (m *Metrics) RecordClassification(category string) {
	classifications.WithLabelValues(category).Inc()
}

// RecordReplySent records an outbound reply by source
func (m *Metrics) RecordReplySent(source string) {
	repliesSent.WithLabelValues(source).Inc()
}

// RecordReplySuppressed records a reply that was resolved but not sent
func (m *Metrics) RecordReplySuppressed(reason string) {
	repliesSuppressed.WithLabelValues(reason).Inc()
}

// RecordGenerativeRequest records one generative source call
func (m *Metrics) RecordGenerativeRequest(status string, duration time.Duration) {
	generativeRequests.WithLabelValues(status).Inc()
	generativeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStorageOperation records one backing store call outcome
func (m *Metrics) RecordStorageOperation(operation, status string) {
	storageOperations.WithLabelValues(operation, status).Inc()
}

// RecordBurstFlush records one aggregated burst reply
func (m *Metrics) RecordBurstFlush() {
	burstFlushes.Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
