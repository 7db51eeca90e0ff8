package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the authorization, audit and throttling counters. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	AuthzDecisions *prometheus.CounterVec
	AuditEntries   *prometheus.CounterVec
	AuditSkipped   prometheus.Counter
	AuditFailures  prometheus.Counter
	Throttled      *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthzDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuetrack_authz_decisions_total",
			Help: "Authorization decisions by guard and outcome",
		}, []string{"guard", "outcome"}),
		AuditEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuetrack_audit_entries_total",
			Help: "Audit log entries written by entity type and mutation kind",
		}, []string{"entity", "kind"}),
		AuditSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "issuetrack_audit_skipped_total",
			Help: "Tracked mutations committed without a log entry because the actor could not be resolved",
		}),
		AuditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "issuetrack_audit_failures_total",
			Help: "Tracked mutations rolled back because the audit entry could not be written",
		}),
		Throttled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuetrack_throttled_requests_total",
			Help: "Register and login requests rejected by the per-IP limit",
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveDecision(guard, outcome string) {
	if m == nil {
		return
	}
	m.AuthzDecisions.WithLabelValues(guard, outcome).Inc()
}

func (m *Metrics) IncrementAuditEntries(entity, kind string) {
	if m == nil {
		return
	}
	m.AuditEntries.WithLabelValues(entity, kind).Inc()
}

func (m *Metrics) IncrementAuditSkipped() {
	if m == nil {
		return
	}
	m.AuditSkipped.Inc()
}

func (m *Metrics) IncrementAuditFailures() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

func (m *Metrics) IncrementThrottled(route string) {
	if m == nil {
		return
	}
	m.Throttled.WithLabelValues(route).Inc()
}
