package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	PollTicks         prometheus.Counter
	TransientFailures prometheus.Counter
	PaymentsConfirmed prometheus.Counter
	ImagesDelivered   prometheus.Counter
	OrdersExpired     prometheus.Counter
	OrdersFailed      prometheus.Counter
	ActivePollers     prometheus.Gauge
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_poll_ticks_total",
			Help: "Balance lookup attempts across all pollers.",
		}),
		TransientFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_poll_transient_failures_total",
			Help: "Balance lookups that failed with a network or decode error.",
		}),
		PaymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Orders whose payment was confirmed.",
		}),
		ImagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "images_delivered_total",
			Help: "Images handed out to confirmed orders.",
		}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Orders that reached their deadline unpaid.",
		}),
		OrdersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_failed_total",
			Help: "Orders abandoned or failed after repeated lookup errors.",
		}),
		ActivePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payment_active_pollers",
			Help: "Pollers currently watching an address.",
		}),
	}

	reg.MustRegister(
		m.PollTicks,
		m.TransientFailures,
		m.PaymentsConfirmed,
		m.ImagesDelivered,
		m.OrdersExpired,
		m.OrdersFailed,
		m.ActivePollers,
	)
	return m
}

// NewNop returns metrics backed by a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
