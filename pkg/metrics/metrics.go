package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	ItemsQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_items_queued_total",
		Help: "Total number of items accepted into the dispatch queue",
	}, []string{"database"})
	ItemsCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_items_cancelled_total",
		Help: "Total number of queued items removed by bulk cancellation",
	}, []string{"database"})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mail_dispatcher_queue_depth",
		Help: "Number of items waiting in the sending and incoming lists",
	})

	// Delivery metrics, labelled by SMTP host
	SendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_send_success_total",
		Help: "Total number of items delivered successfully",
	}, []string{"host"})
	SendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_send_failure_total",
		Help: "Total number of delivery attempts that failed",
	}, []string{"host"})

	// Worker lifecycle
	WorkerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_worker_events_total",
		Help: "Worker lifecycle events by worker name and event type",
	}, []string{"worker", "event"})
	WorkersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mail_dispatcher_workers_active",
		Help: "Number of workers currently registered",
	})

	ResultsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mail_dispatcher_results_stored",
		Help: "Number of outcomes held in the result ledger",
	})

	// Audit trail
	AuditEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_audit_events_total",
		Help: "Total number of audit events written per sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_audit_events_dropped_total",
		Help: "Total number of audit events dropped per sink and reason",
	}, []string{"sink", "reason"})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_audit_sink_errors_total",
		Help: "Total number of audit sink write errors by error type",
	}, []string{"sink", "error_type"})

	// HTTP boundary
	RequestsRateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_dispatcher_requests_rate_limited_total",
		Help: "Total number of API requests rejected by the per-client rate limiter, by route",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(ItemsQueued)
	prometheus.MustRegister(ItemsCancelled)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(SendSuccess)
	prometheus.MustRegister(SendFailure)
	prometheus.MustRegister(WorkerEvents)
	prometheus.MustRegister(WorkersActive)
	prometheus.MustRegister(ResultsStored)
	prometheus.MustRegister(AuditEvents)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(RequestsRateLimited)
}

// MetricsHandler returns an HTTP handler serving the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
