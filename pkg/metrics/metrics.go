// Package metrics instruments the SDK with Prometheus collectors,
// generalized from the teacher's pkg/metrics (cluster node/service/Raft
// gauges registered in an init() plus a Timer helper) to the mod SDK's own
// observability surface: reconciliation cycles, install/update/uninstall
// outcomes, HTTP requests by status class, cache hit/miss, and
// download/upload byte counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modio_reconciliation_cycles_total",
			Help: "Total number of scheduler Tick cycles run",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "modio_reconciliation_duration_seconds",
			Help:    "Time taken by one scheduler Tick cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	InstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modio_installs_total",
			Help: "Total number of mod installs by outcome",
		},
		[]string{"outcome"},
	)

	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modio_updates_total",
			Help: "Total number of mod updates by outcome",
		},
		[]string{"outcome"},
	)

	UninstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modio_uninstalls_total",
			Help: "Total number of mod uninstalls by outcome",
		},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modio_http_requests_total",
			Help: "Total number of API requests by status class",
		},
		[]string{"status_class"},
	)

	CacheResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modio_cache_results_total",
			Help: "Total number of cache lookups by cache name and result",
		},
		[]string{"cache", "result"},
	)

	DownloadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modio_download_bytes_total",
			Help: "Total number of modfile bytes downloaded",
		},
	)

	UploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "modio_upload_bytes_total",
			Help: "Total number of modfile bytes uploaded",
		},
	)

	CollectionSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modio_collection_entries",
			Help: "Number of entries in the local mod collection by state",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(
		ReconciliationCyclesTotal,
		ReconciliationDuration,
		InstallsTotal,
		UpdatesTotal,
		UninstallsTotal,
		HTTPRequestsTotal,
		CacheResultsTotal,
		DownloadBytesTotal,
		UploadBytesTotal,
		CollectionSize,
	)
}

// Handler returns the Prometheus scrape handler; a host embedding the SDK
// wires it into its own HTTP mux the way the teacher's API server mounted
// metrics.Handler().
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass buckets an HTTP status code into the label Prometheus
// metrics group by ("2xx", "4xx", ...).
func StatusClass(statusCode int) string {
	switch statusCode / 100 {
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	default:
		return "other"
	}
}

// Timer times an in-flight operation for later observation against a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
