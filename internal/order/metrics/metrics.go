package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the order orchestrator.
type Metrics struct {
	// Reservation outcomes by result ("reserved", "already_owned",
	// "unavailable", "error")
	ReservationOutcome *prometheus.CounterVec

	// Transfer outcomes by trigger ("webhook", "payment", "retry") and result
	TransferOutcome *prometheus.CounterVec

	// Attempts consumed per transfer retry loop
	TransferAttempts prometheus.Histogram

	// Webhook events by source ("registrar", "payment") and disposition
	WebhookEvents *prometheus.CounterVec

	// Compensating domain returns by result
	ReturnOutcome *prometheus.CounterVec

	// End-to-end latency of a reservation batch
	ReserveBatchLatency prometheus.Histogram
}

// New creates a Metrics instance with all orchestrator metrics registered
// on the default registry.
func New() *Metrics {
	return &Metrics{
		ReservationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nameclaim_order_reservations_total",
			Help: "Total domain reservation attempts by outcome",
		}, []string{"outcome"}),

		TransferOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nameclaim_order_transfers_total",
			Help: "Total ownership transfer attempts by trigger and outcome",
		}, []string{"trigger", "outcome"}),

		TransferAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nameclaim_order_transfer_attempts",
			Help:    "Registrar calls consumed per transfer retry loop",
			Buckets: []float64{1, 2, 3},
		}),

		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nameclaim_order_webhook_events_total",
			Help: "Inbound webhook events by source and disposition",
		}, []string{"source", "disposition"}),

		ReturnOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nameclaim_order_returns_total",
			Help: "Compensating domain returns by outcome",
		}, []string{"outcome"}),

		ReserveBatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nameclaim_order_reserve_batch_duration_seconds",
			Help:    "Duration of a full reservation batch including registrar fan-out",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncReservation records a single-domain reservation outcome.
func (m *Metrics) IncReservation(outcome string) {
	if m != nil {
		m.ReservationOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncTransfer records a transfer outcome for a given trigger.
func (m *Metrics) IncTransfer(trigger, outcome string) {
	if m != nil {
		m.TransferOutcome.WithLabelValues(trigger, outcome).Inc()
	}
}

// ObserveTransferAttempts records how many registrar calls a retry loop used.
func (m *Metrics) ObserveTransferAttempts(attempts int) {
	if m != nil {
		m.TransferAttempts.Observe(float64(attempts))
	}
}

// IncWebhook records an inbound webhook disposition.
func (m *Metrics) IncWebhook(source, disposition string) {
	if m != nil {
		m.WebhookEvents.WithLabelValues(source, disposition).Inc()
	}
}

// IncReturn records a compensating return outcome.
func (m *Metrics) IncReturn(outcome string) {
	if m != nil {
		m.ReturnOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveReserveBatch records the duration of a reservation batch.
func (m *Metrics) ObserveReserveBatch(d time.Duration) {
	if m != nil {
		m.ReserveBatchLatency.Observe(d.Seconds())
	}
}
