package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is shared by every service and worker in the engine.
type Metrics struct {
	created        *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
	workerRuns     *prometheus.CounterVec
	alarms         prometheus.Counter
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	promautoFactory := promauto.With(promRegistry)
	return &Metrics{
		created: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthstake_records_created_total",
			Help: "posts, supports, challenges, votes and verdicts recorded",
		}, []string{"record"}),
		rejections: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthstake_rejections_total",
			Help: "operations rejected by validation, by operation",
		}, []string{"op"}),
		settlements: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthstake_settlements_total",
			Help: "settlement attempts by outcome",
		}, []string{"outcome"}),
		reconciliation: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthstake_reconciliations_total",
			Help: "external balance reconciliations by outcome",
		}, []string{"outcome"}),
		workerRuns: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthstake_worker_runs_total",
			Help: "background worker cycles by worker",
		}, []string{"worker"}),
		alarms: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "truthstake_consistency_alarms_total",
			Help: "settlements that exhausted their retries",
		}),
	}
}

func (m *Metrics) reject(op string, err error) error {
	m.rejections.WithLabelValues(op).Inc()
	return err
}
