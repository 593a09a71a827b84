package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	commits       *prometheus.CounterVec
	entries       *prometheus.CounterVec
	insufficient  prometheus.Counter
	lockWait      prometheus.Histogram
	commitLatency prometheus.Histogram
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.commits = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "truthstake_ledger_commits_total",
		Help: "ledger updates by outcome",
	}, []string{"outcome"})
	m.entries = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "truthstake_ledger_entries_total",
		Help: "ledger entries appended by kind",
	}, []string{"kind"})
	m.insufficient = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "truthstake_ledger_insufficient_balance_total",
		Help: "debits rejected for insufficient balance",
	})
	m.lockWait = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "truthstake_ledger_lock_wait_seconds",
		Help:    "time spent waiting for per-key ledger locks",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us to ~3s
	})
	m.commitLatency = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "truthstake_ledger_commit_seconds",
		Help:    "journal commit latency",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
}
