package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busMetrics struct {
	events         *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

func (m *busMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.events = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "truthstake_event_published_total",
		Help: "events published by type",
	}, []string{"type"})
	m.subscribers = promautoFactory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "truthstake_event_subscribers",
		Help: "active subscribers by event type and kind",
	}, []string{"type", "kind"})
	m.deliveryErrors = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "truthstake_event_delivery_errors_total",
		Help: "failed or dropped deliveries by event type and subscriber kind",
	}, []string{"type", "kind"})
}
