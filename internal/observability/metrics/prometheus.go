// Package metrics provides Prometheus metrics for the referral case workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	CasesCreated          prometheus.Counter
	StatusTransitions     *prometheus.CounterVec
	BlockedTransitions    *prometheus.CounterVec
	CasesClaimed          prometheus.Counter
	PharmacyPushes        prometheus.Counter
	RequestDuration       prometheus.Histogram
	TimelineEvents        *prometheus.CounterVec
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		CasesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cases_created_total",
			Help: "Total referral cases created",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_status_transitions_total",
			Help: "Total status transitions by target status",
		}, []string{"to_status"}),
		BlockedTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "case_blocked_transitions_total",
			Help: "Total status transitions rejected by blockers",
		}, []string{"blocker"}),
		CasesClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cases_claimed_total",
			Help: "Total cases claimed by infusion organizations",
		}),
		PharmacyPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pharmacy_pushes_total",
			Help: "Total pharmacy order pushes",
		}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "case_request_duration_seconds",
			Help:    "Case API request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		TimelineEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_events_total",
			Help: "Total timeline events recorded by event type",
		}, []string{"event_type"}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.CasesCreated,
		m.StatusTransitions,
		m.BlockedTransitions,
		m.CasesClaimed,
		m.PharmacyPushes,
		m.RequestDuration,
		m.TimelineEvents,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
