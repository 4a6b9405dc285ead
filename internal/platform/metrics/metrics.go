package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by all three services.
// Methods are safe to call on a nil *Metrics so components can run without
// instrumentation in tests.
type Metrics struct {
	Published          *prometheus.CounterVec
	PublishFailures    *prometheus.CounterVec
	BestEffortDropped  *prometheus.CounterVec
	CircuitBreakerOpen prometheus.Gauge
	Consumed           *prometheus.CounterVec
	HandlerDuration    *prometheus.HistogramVec

	ReportsCreated       prometheus.Counter
	UsersRegistered      prometheus.Counter
	ReportCounterUpdates prometheus.Counter
	AuditRecordsStored   prometheus.Counter
}

// New creates all collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cityfix_events_published_total",
			Help: "Envelopes accepted by the broker, by exchange and routing key",
		}, []string{"exchange", "routing_key"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cityfix_events_publish_failures_total",
			Help: "Publish attempts the broker did not accept, by exchange and publish policy",
		}, []string{"exchange", "policy"}),
		BestEffortDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cityfix_events_best_effort_dropped_total",
			Help: "Best-effort envelopes dropped instead of published, by reason",
		}, []string{"reason"}),
		CircuitBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "cityfix_events_best_effort_circuit_open",
			Help: "Best-effort publish circuit state (0=closed, 1=open)",
		}),
		Consumed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cityfix_events_consumed_total",
			Help: "Deliveries processed, by queue and outcome (ack, requeue, dead_letter, discard)",
		}, []string{"queue", "outcome"}),
		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cityfix_events_handler_duration_seconds",
			Help:    "Time spent in consumer handlers",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
		ReportsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "cityfix_reports_created_total",
			Help: "Reports created",
		}),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "cityfix_users_registered_total",
			Help: "Users registered",
		}),
		ReportCounterUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "cityfix_user_report_counter_updates_total",
			Help: "Per-user report counter increments applied",
		}),
		AuditRecordsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "cityfix_audit_records_stored_total",
			Help: "Audit records appended by the audit sink",
		}),
	}
}

func (m *Metrics) IncPublished(exchange, routingKey string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(exchange, routingKey).Inc()
}

func (m *Metrics) IncPublishFailure(exchange, policy string) {
	if m == nil {
		return
	}
	m.PublishFailures.WithLabelValues(exchange, policy).Inc()
}

func (m *Metrics) IncBestEffortDropped(reason string) {
	if m == nil {
		return
	}
	m.BestEffortDropped.WithLabelValues(reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerOpen.Set(1)
	} else {
		m.CircuitBreakerOpen.Set(0)
	}
}

// ObserveDelivery records one processed delivery.
func (m *Metrics) ObserveDelivery(queue, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(queue, outcome).Inc()
	m.HandlerDuration.WithLabelValues(queue).Observe(seconds)
}

func (m *Metrics) IncReportsCreated() {
	if m == nil {
		return
	}
	m.ReportsCreated.Inc()
}

func (m *Metrics) IncUsersRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncReportCounterUpdates() {
	if m == nil {
		return
	}
	m.ReportCounterUpdates.Inc()
}

func (m *Metrics) IncAuditRecordsStored() {
	if m == nil {
		return
	}
	m.AuditRecordsStored.Inc()
}
