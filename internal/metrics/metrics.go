package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pairFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envy_pair_failed_total",
			Help: "Total number of failed project/provider reconciliations",
		},
		[]string{"provider", "mode"},
	)

	pairCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envy_pair_count_total",
			Help: "Total number of project/provider reconciliations",
		},
		[]string{"provider", "mode"},
	)

	pairDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "envy_pair_duration_seconds",
			Help:    "Project/provider reconciliation duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "mode"},
	)

	lastRunEnd = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "envy_last_run_end_timestamp",
			Help: "Unix timestamp of when the last run ended",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envy_http_requests_total",
			Help: "Total number of provider API requests by method and status code",
		},
		[]string{"provider", "method", "code"},
	)
)

func PairSucceeded(provider, mode string, startTime time.Time) {
	pairCount.WithLabelValues(provider, mode).Inc()
	pairDuration.WithLabelValues(provider, mode).Observe(time.Since(startTime).Seconds())
}

func PairFailed(provider, mode string, startTime time.Time) {
	pairCount.WithLabelValues(provider, mode).Inc()
	pairFailed.WithLabelValues(provider, mode).Inc()
	pairDuration.WithLabelValues(provider, mode).Observe(time.Since(startTime).Seconds())
}

func RunEnded() {
	lastRunEnd.SetToCurrentTime()
}

// HTTPRequest counts a provider API call. A zero code means the request
// never got a response.
func HTTPRequest(provider, method string, code int) {
	httpRequests.WithLabelValues(provider, method, strconv.Itoa(code)).Inc()
}

// WriteTextfile writes all metrics of the default registry in the text
// exposition format, suitable for the node exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
