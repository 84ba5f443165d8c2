package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ExportsTotal           *prometheus.CounterVec
	ExtractionDuration     prometheus.Histogram
	ListingsExtractedTotal prometheus.Counter
	CreditsConsumedTotal   prometheus.Counter
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_total",
			Help: "Total number of export jobs by terminal status.",
		},
		[]string{"status", "reason"},
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Duration of extraction sessions.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	ListingsExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_extracted_total",
			Help: "Total number of valid listings extracted across sessions.",
		},
	)

	CreditsConsumedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Total credits debited at settlement.",
		},
	)
}
