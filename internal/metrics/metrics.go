package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marginalia"

var (
	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total provider requests by provider, kind and result",
		},
		[]string{"provider", "kind", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider requests by provider and kind",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "kind"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Processing jobs by terminal result (completed, failed)",
		},
		[]string{"result"},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time from processing start to terminal status",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	pagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_processed_total",
			Help:      "Total pages analysed",
		},
	)

	uploadRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rejections_total",
			Help:      "Uploads rejected before a job was created, by reason",
		},
		[]string{"reason"},
	)

	marginaliaTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "marginalia_generated_total",
			Help:      "Marginalia images by source (provider, mock)",
		},
		[]string{"source"},
	)
)

// Collectors returns every collector so callers can register them on a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{providerReqs, providerLatency, jobsTotal, jobDuration, pagesProcessed, uploadRejections, marginaliaTotal}
}

// Init registers collectors.
func Init() {
	prometheus.MustRegister(Collectors()...)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, kind, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, kind, result).Inc()
	providerLatency.WithLabelValues(provider, kind).Observe(dur.Seconds())
}

func ObserveJob(result string, dur time.Duration) {
	jobsTotal.WithLabelValues(result).Inc()
	jobDuration.Observe(dur.Seconds())
}

func IncPages() { pagesProcessed.Inc() }

func IncUploadRejected(reason string) { uploadRejections.WithLabelValues(reason).Inc() }

func AddMarginalia(source string, n int) {
	marginaliaTotal.WithLabelValues(source).Add(float64(n))
}
