package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes.
const (
	OutcomeGated      = "gated"
	OutcomeOCRFailed  = "ocr_failed"
	OutcomeVerified   = "verified"
	OutcomeUnverified = "unverified"
	OutcomeError      = "error"
)

var (
	scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medverify_scans_total",
		Help: "Scan requests by outcome.",
	}, []string{"outcome"})

	detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medverify_detections_total",
		Help: "Detections returned by the detector, by class.",
	}, []string{"class"})

	outboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medverify_outbound_requests_total",
		Help: "Calls to the MedVerify service by endpoint and result.",
	}, []string{"endpoint", "result"})

	outboundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medverify_outbound_duration_seconds",
		Help:    "Latency of calls to the MedVerify service.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})
)

// ObserveScan counts one finished scan.
func ObserveScan(outcome string) {
	scans.WithLabelValues(outcome).Inc()
}

// Detection classes with their own series. Anything else is counted as
// ClassOther, since some backends return free-form labels.
const (
	ClassBody  = "body"
	ClassTitle = "title"
	ClassOther = "other"
)

// ObserveDetection counts one detection of the given class.
func ObserveDetection(class string) {
	switch class {
	case ClassBody, ClassTitle:
	default:
		class = ClassOther
	}
	detections.WithLabelValues(class).Inc()
}

// ObserveOutbound records one call to the MedVerify service.
// result is "ok" or "error".
func ObserveOutbound(endpoint, result string, d time.Duration) {
	outboundRequests.WithLabelValues(endpoint, result).Inc()
	outboundDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
