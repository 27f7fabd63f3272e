package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveScan(t *testing.T) {
	before := testutil.ToFloat64(scans.WithLabelValues(OutcomeGated))
	ObserveScan(OutcomeGated)
	ObserveScan(OutcomeGated)
	assert.Equal(t, before+2, testutil.ToFloat64(scans.WithLabelValues(OutcomeGated)))
}

func TestObserveOutbound(t *testing.T) {
	before := testutil.ToFloat64(outboundRequests.WithLabelValues("ocr", "error"))
	ObserveOutbound("ocr", "error", 150*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(outboundRequests.WithLabelValues("ocr", "error")))
}

func TestHandlerExposesCounters(t *testing.T) {
	ObserveDetection("title")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `medverify_detections_total{class="title"}`)
}

func TestObserveDetection_UnknownClassesShareOneSeries(t *testing.T) {
	before := testutil.ToFloat64(detections.WithLabelValues(ClassOther))
	ObserveDetection("Medicine Box")
	ObserveDetection("label text")
	ObserveDetection(ClassBody)

	assert.Equal(t, before+2, testutil.ToFloat64(detections.WithLabelValues(ClassOther)))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), `class="Medicine Box"`)
}
