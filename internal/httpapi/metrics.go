package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the processing pipeline.
type Metrics struct {
	RequestsTotal      prometheus.Counter
	RequestErrors      prometheus.Counter
	ProcessDuration    prometheus.Histogram
	TranscribeDuration prometheus.Histogram
	ClipBytes          prometheus.Histogram
}

// NewMetrics registers pipeline metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "soundcheck_process_requests_total",
			Help: "Total number of audio processing requests",
		}),
		RequestErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "soundcheck_process_errors_total",
			Help: "Total number of failed audio processing requests",
		}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "soundcheck_process_duration_seconds",
			Help:    "End-to-end processing duration per request",
			Buckets: prometheus.DefBuckets,
		}),
		TranscribeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "soundcheck_transcribe_duration_seconds",
			Help:    "Recognizer latency per request",
			Buckets: prometheus.DefBuckets,
		}),
		ClipBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "soundcheck_clip_bytes",
			Help:    "Uploaded clip size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}
