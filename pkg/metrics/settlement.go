package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts checkout, capture, escrow and outbox outcomes.
type SettlementMetrics struct {
	checkouts   *prometheus.CounterVec
	captures    *prometheus.CounterVec
	warnings    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	outbox      *prometheus.CounterVec
}

func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by payment method and outcome.",
		}, []string{"method", "outcome"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_captures_total",
			Help:      "Gateway results handled by outcome.",
		}, []string{"outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_commit_warnings_total",
			Help:      "Best-effort post-commit steps that failed.",
		}, []string{"step"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_transitions_total",
			Help:      "Escrow transitions by event and outcome.",
		}, []string{"event", "outcome"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox publish results by event type.",
		}, []string{"event_type", "outcome"}),
	}
	reg.MustRegister(m.checkouts, m.captures, m.warnings, m.transitions, m.outbox)
	return m
}

func (m *SettlementMetrics) IncCheckout(method, outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncCapture(outcome string) {
	if m == nil || m.captures == nil {
		return
	}
	m.captures.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncWarning(step string) {
	if m == nil || m.warnings == nil {
		return
	}
	m.warnings.WithLabelValues(normalizeLabel(step)).Inc()
}

func (m *SettlementMetrics) IncTransition(event, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncOutbox(eventType, outcome string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
