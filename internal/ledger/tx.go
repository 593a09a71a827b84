package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tx is the unit of work handed to Update. Every account it touches must be
// one of the keys locked for the update. Nothing is visible to other
// callers until Update commits.
type Tx struct {
	ctx      context.Context
	ledger   *Ledger
	now      time.Time
	held     map[uuid.UUID]struct{}
	accounts map[uuid.UUID]*domain.Account
	dirty    []uuid.UUID
	commit   domain.Commit
}

func newTx(ctx context.Context, l *Ledger, keys []uuid.UUID) *Tx {
	held := make(map[uuid.UUID]struct{}, len(keys))
	for _, k := range keys {
		held[k] = struct{}{}
	}
	return &Tx{
		ctx:      ctx,
		ledger:   l,
		now:      l.now(),
		held:     held,
		accounts: make(map[uuid.UUID]*domain.Account),
	}
}

// Context returns the context of the enclosing Update.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Now is the timestamp shared by every record written in this update.
func (tx *Tx) Now() time.Time {
	return tx.now
}

func (tx *Tx) account(id uuid.UUID) (*domain.Account, error) {
	if _, ok := tx.held[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotHeld, id)
	}
	if a, ok := tx.accounts[id]; ok {
		return a, nil
	}
	a, err := tx.ledger.load(tx.ctx, id)
	if err != nil {
		return nil, err
	}
	tx.accounts[id] = a
	return a, nil
}

func (tx *Tx) markDirty(id uuid.UUID) {
	for _, d := range tx.dirty {
		if d == id {
			return
		}
	}
	tx.dirty = append(tx.dirty, id)
}

// Account returns the working state of a locked account, including changes
// already made in this update.
func (tx *Tx) Account(id uuid.UUID) (domain.Account, error) {
	a, err := tx.account(id)
	if err != nil {
		return domain.Account{}, err
	}
	return *a, nil
}

func (tx *Tx) appendEntry(a *domain.Account, amount decimal.Decimal, kind domain.EntryKind, ref domain.EntryRef) *domain.LedgerEntry {
	e := domain.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   a.ID,
		Amount:      amount,
		Kind:        kind,
		PostID:      ref.PostID,
		ChallengeID: ref.ChallengeID,
		ExternalRef: ref.ExternalRef,
		CreatedAt:   tx.now,
	}
	tx.commit.Entries = append(tx.commit.Entries, e)
	tx.markDirty(a.ID)
	return &e
}

// Debit appends a negative entry. It fails with an AmountError wrapping
// domain.ErrInsufficientBalance when the balance cannot cover amount.
func (tx *Tx) Debit(id uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, ref domain.EntryRef) (*domain.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	a, err := tx.account(id)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, domain.ErrAccountInactive
	}
	if a.Balance.LessThan(amount) {
		tx.ledger.metrics.insufficient.Inc()
		return nil, &domain.AmountError{
			Err:      domain.ErrInsufficientBalance,
			Required: amount,
			Actual:   a.Balance,
		}
	}
	a.Balance = a.Balance.Sub(amount)
	if kind.Commits() {
		a.TotalStaked = a.TotalStaked.Add(amount)
	}
	return tx.appendEntry(a, amount.Neg(), kind, ref), nil
}

// Credit appends a positive entry. Crediting never fails for a loaded
// account, active or not.
func (tx *Tx) Credit(id uuid.UUID, amount decimal.Decimal, kind domain.EntryKind, ref domain.EntryRef) (*domain.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	a, err := tx.account(id)
	if err != nil {
		return nil, err
	}
	a.Balance = a.Balance.Add(amount)
	return tx.appendEntry(a, amount, kind, ref), nil
}

// AdjustReputation applies delta clamped to the configured bounds and
// returns the new reputation.
func (tx *Tx) AdjustReputation(id uuid.UUID, delta int) (int, error) {
	a, err := tx.account(id)
	if err != nil {
		return 0, err
	}
	cfg := tx.ledger.cfg
	a.Reputation = domain.ClampReputation(a.Reputation+delta, cfg.MinReputation, cfg.MaxReputation)
	tx.markDirty(id)
	return a.Reputation, nil
}

// RecordOutcome bumps the successful or failed stake counter.
func (tx *Tx) RecordOutcome(id uuid.UUID, won bool) error {
	a, err := tx.account(id)
	if err != nil {
		return err
	}
	if won {
		a.SuccessfulStakeCount++
	} else {
		a.FailedStakeCount++
	}
	tx.markDirty(id)
	return nil
}

func (tx *Tx) SetActive(id uuid.UUID, active bool) error {
	a, err := tx.account(id)
	if err != nil {
		return err
	}
	if a.Active == active {
		return nil
	}
	a.Active = active
	tx.markDirty(id)
	return nil
}

func (tx *Tx) setExternalSynced(id uuid.UUID, observed decimal.Decimal) error {
	a, err := tx.account(id)
	if err != nil {
		return err
	}
	a.ExternalSynced = observed
	tx.markDirty(id)
	return nil
}

// MirrorTransfer moves amount of synced external balance from one account
// to another, matching a transfer the external ledger will execute. The
// receiver's later reconciliation then sees no new funding for it, and the
// sender's mark drops so future deposits are credited. It reports false
// and changes nothing when either account has no external address.
func (tx *Tx) MirrorTransfer(from, to uuid.UUID, amount decimal.Decimal) (bool, error) {
	if amount.Sign() <= 0 {
		return false, nil
	}
	src, err := tx.account(from)
	if err != nil {
		return false, err
	}
	dst, err := tx.account(to)
	if err != nil {
		return false, err
	}
	if src.ExternalAddress == "" || dst.ExternalAddress == "" {
		return false, nil
	}
	src.ExternalSynced = decimal.Max(decimal.Zero, src.ExternalSynced.Sub(amount))
	dst.ExternalSynced = dst.ExternalSynced.Add(amount)
	tx.markDirty(from)
	tx.markDirty(to)
	return true, nil
}

// PutPost stages an insert or update of a post.
func (tx *Tx) PutPost(p domain.StakePost) {
	for i := range tx.commit.Posts {
		if tx.commit.Posts[i].ID == p.ID {
			tx.commit.Posts[i] = p
			return
		}
	}
	tx.commit.Posts = append(tx.commit.Posts, p)
}

func (tx *Tx) PutSupport(s domain.SupportStake) {
	tx.commit.Supports = append(tx.commit.Supports, s)
}

// PutChallenge stages an insert or update of a challenge.
func (tx *Tx) PutChallenge(c domain.Challenge) {
	for i := range tx.commit.Challenges {
		if tx.commit.Challenges[i].ID == c.ID {
			tx.commit.Challenges[i] = c
			return
		}
	}
	tx.commit.Challenges = append(tx.commit.Challenges, c)
}

func (tx *Tx) PutVote(v domain.Vote) {
	tx.commit.Votes = append(tx.commit.Votes, v)
}

func (tx *Tx) PutResolution(r domain.Resolution) {
	tx.commit.Resolution = &r
}

// SetKey makes the update idempotent under key.
func (tx *Tx) SetKey(key string) {
	tx.commit.Key = key
}

// Emit stages a domain event in the outbox of this update.
func (tx *Tx) Emit(eventType domain.EventType, aggregateID uuid.UUID, payload map[string]any) {
	tx.commit.Events = append(tx.commit.Events, domain.DomainEvent{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		CreatedAt:   tx.now,
	})
}

// Entries returns the entries staged so far.
func (tx *Tx) Entries() []domain.LedgerEntry {
	return tx.commit.Entries
}

func (tx *Tx) build() *domain.Commit {
	c := tx.commit
	for _, id := range tx.dirty {
		c.Accounts = append(c.Accounts, *tx.accounts[id])
	}
	return &c
}
