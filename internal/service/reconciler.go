package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultReconcileInterval = 5 * time.Minute
	reconcilePageSize        = 200
)

// Reconciler samples the external ledger and folds new funding into local
// balances. External reads never happen on the stake or challenge path.
type Reconciler struct {
	ledger       *ledger.Ledger
	accountStore domain.AccountStore
	external     domain.ExternalLedger
	metrics      *Metrics
	logger       *zap.Logger
	worker       *worker
}

func NewReconciler(l *ledger.Ledger, as domain.AccountStore, ext domain.ExternalLedger, metrics *Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		ledger:       l,
		accountStore: as,
		external:     ext,
		metrics:      metrics,
		logger:       logger,
		worker:       newWorker("balance reconciler", defaultReconcileInterval, metrics, logger),
	}
}

func (r *Reconciler) SetInterval(d time.Duration) {
	r.worker.interval = d
}

// Start runs the reconciler on a periodic schedule in a background goroutine.
func (r *Reconciler) Start() {
	r.worker.start(func(ctx context.Context) { r.ReconcileAll(ctx) })
}

func (r *Reconciler) Stop() {
	r.worker.stop()
}

// ReconcileAccount reads one account's external balance and reconciles it.
// An unavailable external ledger is reported as ErrExternalLedgerUnavailable
// and leaves the account untouched.
func (r *Reconciler) ReconcileAccount(ctx context.Context, id uuid.UUID) (*ledger.ReconcileResult, error) {
	a, err := r.ledger.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ExternalAddress == "" {
		return nil, domain.ErrNoExternalAddress
	}

	observed, err := r.external.GetExternalBalance(ctx, a.ExternalAddress)
	if err != nil {
		r.metrics.reconciliation.WithLabelValues("unavailable").Inc()
		if errors.Is(err, domain.ErrExternalLedgerUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalLedgerUnavailable, err)
	}

	res, err := r.ledger.ReconcileExternal(ctx, id, observed.Amount, observed.Reference)
	if err != nil {
		r.metrics.reconciliation.WithLabelValues("failed").Inc()
		return nil, err
	}
	if res.Entry != nil {
		r.metrics.reconciliation.WithLabelValues("credited").Inc()
		r.logger.Info("external funding reconciled",
			zap.String("account_id", id.String()),
			zap.String("observed", observed.Amount.String()),
			zap.String("credited", res.Credited.String()),
			zap.String("reference", observed.Reference))
	} else {
		r.metrics.reconciliation.WithLabelValues("unchanged").Inc()
	}
	return res, nil
}

// ReconcileAll walks every active account with an external address.
func (r *Reconciler) ReconcileAll(ctx context.Context) (credited int) {
	after := uuid.Nil
	for {
		page, err := r.accountStore.ListActive(ctx, after, reconcilePageSize)
		if err != nil {
			r.logger.Error("failed to list accounts for reconciliation", zap.Error(err))
			return credited
		}
		for _, a := range page {
			if a.ExternalAddress == "" {
				continue
			}
			res, err := r.ReconcileAccount(ctx, a.ID)
			if err != nil {
				r.logger.Warn("reconciliation skipped",
					zap.String("account_id", a.ID.String()), zap.Error(err))
				continue
			}
			if res.Entry != nil {
				credited++
			}
		}
		if len(page) < reconcilePageSize {
			return credited
		}
		after = page[len(page)-1].ID
	}
}
