package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidvault",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status code.",
	}, []string{"method", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vidvault",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	BytesStreamed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidvault",
		Name:      "stream_bytes_total",
		Help:      "Video bytes sent to clients.",
	})

	IngestStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidvault",
		Name:      "ingest_tasks_started_total",
		Help:      "Ingest tasks accepted.",
	})

	IngestCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidvault",
		Name:      "ingest_tasks_completed_total",
		Help:      "Ingest tasks that reached the catalog.",
	})

	IngestFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidvault",
		Name:      "ingest_tasks_failed_total",
		Help:      "Ingest tasks that failed.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one finished request.
func ObserveRequest(method string, code int, seconds float64) {
	RequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	RequestDuration.WithLabelValues(method).Observe(seconds)
}
