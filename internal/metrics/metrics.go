// Package metrics exposes prometheus counters for the upload paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	KiB = float64(1024)
	MiB = float64(1024 * KiB)
)

// Outcome labels.
const (
	OutcomeIssued    = "issued"
	OutcomeStored    = "stored"
	OutcomeRejected  = "rejected"
	OutcomeMisconfig = "misconfigured"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
	OutcomeOversized = "oversized"
)

// Collector groups the service's metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	credentials   *prometheus.CounterVec
	inlineUploads *prometheus.CounterVec
	inlineBytes   prometheus.Histogram
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		credentials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dropgate_credentials_total",
				Help: "Upload credential requests by outcome",
			},
			[]string{"outcome"},
		),
		inlineUploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dropgate_inline_uploads_total",
				Help: "Inline upload requests by outcome",
			},
			[]string{"outcome"},
		),
		inlineBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "dropgate_inline_upload_bytes",
				Help: "Sizes of inline uploads written to storage",
				Buckets: []float64{
					KiB,
					64 * KiB,
					512 * KiB,
					MiB,
					4 * MiB,
					16 * MiB,
				},
			},
		),
	}

	c.registry.MustRegister(c.credentials, c.inlineUploads, c.inlineBytes)
	return c
}

// Credential counts one credential request.
func (c *Collector) Credential(outcome string) {
	c.credentials.WithLabelValues(outcome).Inc()
}

// InlineUpload counts one inline upload request.
func (c *Collector) InlineUpload(outcome string) {
	c.inlineUploads.WithLabelValues(outcome).Inc()
}

// InlineBytes records the size of a stored inline upload.
func (c *Collector) InlineBytes(n int) {
	c.inlineBytes.Observe(float64(n))
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
