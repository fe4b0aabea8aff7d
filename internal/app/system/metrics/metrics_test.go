package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/heard/internal/app/system/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(metrics.Registrations.WithLabelValues("success"))
	metrics.Registrations.WithLabelValues("success").Inc()
	after := testutil.ToFloat64(metrics.Registrations.WithLabelValues("success"))
	if after != before+1 {
		t.Fatalf("registrations_total{outcome=success} = %v, want %v", after, before+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.SignIns.WithLabelValues("success", "email").Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "heard_signins_total") {
		t.Fatalf("metrics output missing heard_signins_total")
	}
}
