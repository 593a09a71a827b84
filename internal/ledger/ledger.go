// Package ledger is the only writer of balances and reputation. It keeps a
// per-account projection in memory, serializes every mutation behind
// per-key locks, and persists each unit of work through one journal commit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyApplied means the update's idempotency key was already
	// committed. Nothing was written.
	ErrAlreadyApplied = errors.New("ledger update already applied")
	// ErrKeyNotHeld means a Tx touched an account it did not lock.
	ErrKeyNotHeld = errors.New("account not locked by this update")
)

type Config struct {
	MinReputation int
	MaxReputation int
}

type Ledger struct {
	accounts domain.AccountStore
	journal  domain.Journal
	logger   *zap.Logger
	cfg      Config
	metrics  ledgerMetrics
	locks    *lockTable
	now      func() time.Time

	mu    sync.Mutex
	cache map[uuid.UUID]domain.Account
}

func New(accounts domain.AccountStore, journal domain.Journal, logger *zap.Logger, promRegistry prometheus.Registerer, cfg Config) *Ledger {
	l := &Ledger{
		accounts: accounts,
		journal:  journal,
		logger:   logger,
		cfg:      cfg,
		locks:    newLockTable(),
		now:      time.Now,
		cache:    make(map[uuid.UUID]domain.Account),
	}
	l.metrics.init(promRegistry)
	return l
}

// SetClock replaces the time source. Tests use it to move voting windows.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// load returns a private copy of an account's projection, reading through
// to the store on a miss.
func (l *Ledger) load(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	l.mu.Lock()
	a, ok := l.cache[id]
	l.mu.Unlock()
	if ok {
		return &a, nil
	}

	stored, err := l.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	l.mu.Lock()
	if cached, ok := l.cache[id]; ok {
		l.mu.Unlock()
		return &cached, nil
	}
	l.cache[id] = *stored
	l.mu.Unlock()
	out := *stored
	return &out, nil
}

func (l *Ledger) evict(ids ...uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		delete(l.cache, id)
	}
}

// Register stores a new account and seeds the projection with it.
func (l *Ledger) Register(ctx context.Context, a *domain.Account) error {
	if err := l.accounts.Create(ctx, a); err != nil {
		return err
	}
	l.mu.Lock()
	l.cache[a.ID] = *a
	l.mu.Unlock()
	return nil
}

// Account returns the current projection of an account.
func (l *Ledger) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return l.load(ctx, id)
}

// Balance is served from the projection, not folded per call.
func (l *Ledger) Balance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	a, err := l.load(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// Update locks keys (account, post and challenge ids share one key space),
// runs fn, and commits everything fn staged in a single journal commit.
// Keys are locked in a fixed global order. An error from fn aborts the
// update with nothing written.
func (l *Ledger) Update(ctx context.Context, keys []uuid.UUID, fn func(tx *Tx) error) (*domain.Commit, error) {
	waitStart := time.Now()
	release, err := l.locks.acquire(ctx, keys)
	if err != nil {
		l.metrics.commits.WithLabelValues("lock_timeout").Inc()
		return nil, fmt.Errorf("acquire ledger locks: %w", err)
	}
	defer release()
	l.metrics.lockWait.Observe(time.Since(waitStart).Seconds())

	tx := newTx(ctx, l, keys)
	if err := fn(tx); err != nil {
		l.metrics.commits.WithLabelValues("rejected").Inc()
		return nil, err
	}

	commit := tx.build()
	if commit.Empty() && commit.Key == "" {
		return commit, nil
	}

	commitStart := time.Now()
	err = l.journal.Commit(ctx, commit)
	l.metrics.commitLatency.Observe(time.Since(commitStart).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
			l.metrics.commits.WithLabelValues("duplicate").Inc()
			return nil, ErrAlreadyApplied
		case errors.Is(err, store.ErrStaleAccount):
			ids := make([]uuid.UUID, 0, len(commit.Accounts))
			for _, a := range commit.Accounts {
				ids = append(ids, a.ID)
			}
			l.evict(ids...)
			l.logger.Warn("ledger projection was stale, evicted", zap.Int("accounts", len(ids)))
		}
		l.metrics.commits.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("commit ledger update: %w", err)
	}

	l.apply(commit)
	l.metrics.commits.WithLabelValues("applied").Inc()
	for _, e := range commit.Entries {
		l.metrics.entries.WithLabelValues(string(e.Kind)).Inc()
	}
	return commit, nil
}

// apply publishes committed account state to the projection.
func (l *Ledger) apply(c *domain.Commit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range c.Accounts {
		a.Version++
		a.UpdatedAt = l.now()
		l.cache[a.ID] = a
	}
}

// Debit removes amount from an account in its own update.
func (l *Ledger) Debit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, ref domain.EntryRef) (*domain.LedgerEntry, error) {
	commit, err := l.Update(ctx, []uuid.UUID{id}, func(tx *Tx) error {
		_, err := tx.Debit(id, amount, kind, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &commit.Entries[0], nil
}

// Credit adds amount to an account in its own update.
func (l *Ledger) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, ref domain.EntryRef) (*domain.LedgerEntry, error) {
	commit, err := l.Update(ctx, []uuid.UUID{id}, func(tx *Tx) error {
		_, err := tx.Credit(id, amount, kind, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &commit.Entries[0], nil
}

// ReconcileResult describes one reconciliation. Entry is nil when the
// observation carried no new funding.
type ReconcileResult struct {
	AccountID uuid.UUID           `json:"account_id"`
	Observed  decimal.Decimal     `json:"observed"`
	Credited  decimal.Decimal     `json:"credited"`
	Balance   decimal.Decimal     `json:"balance"`
	Entry     *domain.LedgerEntry `json:"entry,omitempty"`
}

// ReconcileExternal folds an external balance sample into the account.
// Only the part of observed above the account's synced high-water mark is
// treated as new funding and credited as one ExternalSync entry. This
// replaces a max(balance, observed) rule: the local balance moves with
// stakes and rewards the external ledger never sees, so only the mark is
// comparable to observed. Settlements shift the mark with MirrorTransfer.
// Lower or zero observations are stale reads and never debit. Reconciling
// the same observation twice credits at most once.
func (l *Ledger) ReconcileExternal(ctx context.Context, id uuid.UUID, observed decimal.Decimal, externalRef string) (*ReconcileResult, error) {
	result := &ReconcileResult{AccountID: id, Observed: observed, Credited: decimal.Zero}
	commit, err := l.Update(ctx, []uuid.UUID{id}, func(tx *Tx) error {
		a, err := tx.Account(id)
		if err != nil {
			return err
		}
		result.Balance = a.Balance
		if observed.Sign() <= 0 {
			return nil
		}
		delta := observed.Sub(a.ExternalSynced)
		if delta.Sign() <= 0 {
			return nil
		}
		if _, err := tx.Credit(id, delta, domain.EntryKindExternalSync, domain.EntryRef{ExternalRef: externalRef}); err != nil {
			return err
		}
		if err := tx.setExternalSynced(id, observed); err != nil {
			return err
		}
		result.Credited = delta
		result.Balance = a.Balance.Add(delta)
		tx.Emit(domain.EventBalanceReconciled, id, map[string]any{
			"observed":     observed.String(),
			"credited":     delta.String(),
			"balance":      result.Balance.String(),
			"external_ref": externalRef,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(commit.Entries) > 0 {
		result.Entry = &commit.Entries[0]
	}
	return result, nil
}
