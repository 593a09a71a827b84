package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/Harshitk-cp/truthstake/internal/store/memstore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyJournal fails commits carrying a settlement key until failures
// runs out. A negative count fails forever.
type flakyJournal struct {
	domain.Journal
	mu       sync.Mutex
	failures int
	attempts int
}

var errJournalDown = errors.New("journal unavailable")

func (j *flakyJournal) Commit(ctx context.Context, c *domain.Commit) error {
	j.mu.Lock()
	if c.Key != "" {
		j.attempts++
		if j.failures != 0 {
			if j.failures > 0 {
				j.failures--
			}
			j.mu.Unlock()
			return errJournalDown
		}
	}
	j.mu.Unlock()
	return j.Journal.Commit(ctx, c)
}

type testEngine struct {
	db         *memstore.DB
	journal    *flakyJournal
	ledger     *ledger.Ledger
	clock      *fakeClock
	cfg        EngineConfig
	metrics    *Metrics
	accounts   *AccountService
	stake      *StakeService
	challenges *ChallengeService
	resolution *ResolutionService
}

func newTestEngine(t *testing.T, configure func(cfg *EngineConfig)) *testEngine {
	t.Helper()
	cfg := DefaultEngineConfig()
	cfg.SettlementBackoff = time.Millisecond
	if configure != nil {
		configure(&cfg)
	}

	db := memstore.New()
	journal := &flakyJournal{Journal: db.Journal()}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := zap.NewNop()

	l := ledger.New(db.Accounts(), journal, logger, nil, ledger.Config{
		MinReputation: cfg.ReputationMin,
		MaxReputation: cfg.ReputationMax,
	})
	l.SetClock(clock.Now)

	verdictPolicy, err := NewVerdictPolicy(cfg)
	require.NoError(t, err)
	settlementPolicy, err := NewSettlementPolicy(cfg.SettlementPolicy)
	require.NoError(t, err)

	metrics := NewMetrics(nil)
	e := &testEngine{
		db:      db,
		journal: journal,
		ledger:  l,
		clock:   clock,
		cfg:     cfg,
		metrics: metrics,
	}
	e.accounts = NewAccountService(l, db.Entries(), cfg, logger)
	e.stake = NewStakeService(l, db.Posts(), db.Challenges(), cfg, metrics, logger)
	e.challenges = NewChallengeService(l, db.Posts(), db.Challenges(), db.Votes(), db.Resolutions(), cfg, metrics, logger)
	e.resolution = NewResolutionService(l, db.Posts(), db.Challenges(), db.Votes(), db.Resolutions(),
		NewSettler(settlementPolicy, cfg), verdictPolicy, cfg, metrics, logger)
	return e
}

// fund registers an account and credits it through reconciliation.
func (e *testEngine) fund(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	a, err := e.accounts.Register(ctx, "")
	require.NoError(t, err)
	if balance != "0" {
		_, err = e.ledger.ReconcileExternal(ctx, a.ID, dec(balance), "test-funding")
		require.NoError(t, err)
	}
	return a.ID
}

func (e *testEngine) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

func (e *testEngine) account(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	a, err := e.ledger.Account(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (e *testEngine) setReputation(t *testing.T, id uuid.UUID, rep int) {
	t.Helper()
	_, err := e.ledger.Update(context.Background(), []uuid.UUID{id}, func(tx *ledger.Tx) error {
		a, err := tx.Account(id)
		if err != nil {
			return err
		}
		_, err = tx.AdjustReputation(id, rep-a.Reputation)
		return err
	})
	require.NoError(t, err)
}

// disputed stakes a post of postStake by a fresh owner and challenges it
// with challengeStake by a fresh challenger.
func (e *testEngine) disputed(t *testing.T, postStake, challengeStake string) (owner, challenger uuid.UUID, post *domain.StakePost, ch *domain.Challenge) {
	t.Helper()
	ctx := context.Background()
	owner = e.fund(t, "100")
	challenger = e.fund(t, "50")

	post, err := e.stake.CreatePost(ctx, owner, "claim", dec(postStake))
	require.NoError(t, err)
	ch, err = e.challenges.CreateChallenge(ctx, challenger, post.ID, dec(challengeStake), "disagree")
	require.NoError(t, err)
	return owner, challenger, post, ch
}
