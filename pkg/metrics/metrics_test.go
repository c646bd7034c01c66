package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDeliveryMetricsIncrement(t *testing.T) {
	host := "smtp.metrics-test.example"

	SendSuccess.WithLabelValues(host).Inc()
	if v := testutil.ToFloat64(SendSuccess.WithLabelValues(host)); v < 1 {
		t.Fatalf("expected SendSuccess >= 1, got %v", v)
	}

	SendFailure.WithLabelValues(host).Add(2)
	if v := testutil.ToFloat64(SendFailure.WithLabelValues(host)); v < 2 {
		t.Fatalf("expected SendFailure >= 2, got %v", v)
	}
}

func TestWorkerEventsLabelCardinality(t *testing.T) {
	WorkerEvents.Reset()
	defer WorkerEvents.Reset()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("WorkerEvents panicked: %v", r)
		}
	}()

	WorkerEvents.WithLabelValues("test worker", "start").Inc()
	if v := testutil.ToFloat64(WorkerEvents.WithLabelValues("test worker", "start")); v != 1 {
		t.Fatalf("expected metric value 1 after increment, got %v", v)
	}
}

func TestMetricsHandlerExposesQueueDepth(t *testing.T) {
	QueueDepth.Set(7)
	defer QueueDepth.Set(0)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mail_dispatcher_queue_depth 7") {
		t.Fatalf("queue depth gauge missing from exposition")
	}
}
