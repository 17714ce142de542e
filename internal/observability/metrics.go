package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanes",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lanes",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	dragOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanes",
			Subsystem: "drag",
			Name:      "outcomes_total",
			Help:      "Finished drags by outcome.",
		},
		[]string{"outcome", "destination"},
	)
	deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanes",
			Subsystem: "bank",
			Name:      "deposits_total",
			Help:      "Bank deposit attempts by result.",
		},
		[]string{"result"},
	)
	snapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanes",
			Subsystem: "realtime",
			Name:      "snapshots_total",
			Help:      "Container re-fetches by result.",
		},
		[]string{"container", "result"},
	)
	annotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanes",
			Subsystem: "annotation",
			Name:      "requests_total",
			Help:      "Annotation requests by terminal status.",
		},
		[]string{"status"},
	)
	annotationChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lanes",
			Subsystem: "annotation",
			Name:      "chunks_total",
			Help:      "Annotation text chunks applied to the board.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, dragOutcomes, deposits,
			snapshots, annotations, annotationChunks)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDrag(outcome, destination string) {
	RegisterMetrics()
	dragOutcomes.WithLabelValues(outcome, destination).Inc()
}

// RecordDeposit counts a deposit attempt; result is "created", "duplicate",
// or "failed".
func RecordDeposit(result string) {
	RegisterMetrics()
	deposits.WithLabelValues(result).Inc()
}

func RecordSnapshot(container string, success bool) {
	RegisterMetrics()
	result := "applied"
	if !success {
		result = "failed"
	}
	snapshots.WithLabelValues(container, result).Inc()
}

func RecordAnnotation(status string) {
	RegisterMetrics()
	annotations.WithLabelValues(status).Inc()
}

func RecordAnnotationChunk() {
	RegisterMetrics()
	annotationChunks.Inc()
}
