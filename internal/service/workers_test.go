package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/event"
	"github.com/Harshitk-cp/truthstake/internal/extledger"
	"github.com/Harshitk-cp/truthstake/internal/verdict"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestReconciler(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	ext := extledger.NewSimulated()
	r := NewReconciler(e.ledger, e.db.Accounts(), ext, e.metrics, zap.NewNop())

	funded, err := e.accounts.Register(ctx, "0xaaa")
	require.NoError(t, err)
	idle, err := e.accounts.Register(ctx, "0xbbb")
	require.NoError(t, err)
	noAddress := e.fund(t, "0")

	ext.SetBalance("0xaaa", dec("100"))
	assert.Equal(t, 1, r.ReconcileAll(ctx))
	assert.True(t, e.balance(t, funded.ID).Equal(dec("100")))
	assert.True(t, e.balance(t, idle.ID).IsZero())

	// A repeated observation credits nothing.
	assert.Equal(t, 0, r.ReconcileAll(ctx))

	_, err = e.stake.CreatePost(ctx, funded.ID, "claim", dec("30"))
	require.NoError(t, err)
	ext.SetBalance("0xaaa", dec("150"))
	res, err := r.ReconcileAccount(ctx, funded.ID)
	require.NoError(t, err)
	assert.True(t, res.Credited.Equal(dec("50")))
	assert.True(t, res.Balance.Equal(dec("120")))

	_, err = r.ReconcileAccount(ctx, noAddress)
	assert.ErrorIs(t, err, domain.ErrNoExternalAddress)

	ext.SetUnavailable(true)
	ext.SetBalance("0xaaa", dec("500"))
	_, err = r.ReconcileAccount(ctx, funded.ID)
	assert.ErrorIs(t, err, domain.ErrExternalLedgerUnavailable)
	assert.Equal(t, 0, r.ReconcileAll(ctx))
	assert.True(t, e.balance(t, funded.ID).Equal(dec("120")), "an outage leaves balances alone")
	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.reconciliation.WithLabelValues("credited")))
}

func TestAdjudicator(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	provider := verdict.NewMockProvider()
	a := NewAdjudicator(e.resolution, e.db.Posts(), e.db.Challenges(), provider, e.metrics, zap.NewNop())
	_, _, _, ch := e.disputed(t, "20", "22")

	provider.SetResponse(nil, errors.New("model overloaded"))
	assert.Equal(t, 0, a.EvaluatePending(ctx))
	stored, err := e.db.Challenges().GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeStatusPending, stored.Status)

	provider.SetResponse(&domain.Evaluation{Verdict: false, Confidence: 72, Rationale: "contradicted"}, nil)
	assert.Equal(t, 1, a.EvaluatePending(ctx))
	assert.Equal(t, 0, a.EvaluatePending(ctx), "nothing left pending")
	assert.Equal(t, 2, provider.Calls())
	assert.Equal(t, "claim", provider.EvaluateCalls[1].PostContent)
	assert.Equal(t, "disagree", provider.EvaluateCalls[1].ChallengeReason)

	stored, err = e.db.Challenges().GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeStatusAwaitingVotes, stored.Status)
	require.NotNil(t, stored.AutomatedVerdict)
	assert.False(t, *stored.AutomatedVerdict)
	assert.Equal(t, 72, *stored.Confidence)
}

func TestDispatcherFeedsIntentRelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestEngine(t, nil)
	ctx := context.Background()
	ext := extledger.NewSimulated()
	bus := event.NewBus(nil, zap.NewNop())
	defer bus.Stop()

	relay := NewIntentRelay(e.ledger, ext, bus, zap.NewNop())
	relay.Start()
	defer relay.Stop()
	dispatcher := NewDispatcher(e.db.Events(), bus, e.metrics, zap.NewNop())

	owner, err := e.accounts.Register(ctx, "0xowner")
	require.NoError(t, err)
	challenger, err := e.accounts.Register(ctx, "0xchallenger")
	require.NoError(t, err)
	_, err = e.ledger.ReconcileExternal(ctx, owner.ID, dec("100"), "seed")
	require.NoError(t, err)
	_, err = e.ledger.ReconcileExternal(ctx, challenger.ID, dec("50"), "seed")
	require.NoError(t, err)

	post, err := e.stake.CreatePost(ctx, owner.ID, "claim", dec("20"))
	require.NoError(t, err)
	ch, err := e.challenges.CreateChallenge(ctx, challenger.ID, post.ID, dec("22"), "disagree")
	require.NoError(t, err)
	_, err = e.resolution.SubmitVerdict(ctx, ch.ID, true, 90)
	require.NoError(t, err)
	e.clock.Advance(e.cfg.VotingWindow)
	_, err = e.resolution.Finalize(ctx, ch.ID)
	require.NoError(t, err)

	_, all := bus.Subscribe(event.AllEvents)
	n, err := dispatcher.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "two reconciliations, post, challenge, resolution")

	var seen []domain.EventType
	for range n {
		select {
		case evt := <-all:
			seen = append(seen, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for dispatched event")
		}
	}
	assert.Equal(t, []domain.EventType{
		domain.EventBalanceReconciled, domain.EventBalanceReconciled,
		domain.EventPostStaked, domain.EventChallengeCreated, domain.EventChallengeResolved,
	}, seen)

	require.Eventually(t, func() bool { return len(ext.Intents()) == 1 }, time.Second, 5*time.Millisecond)
	intent := ext.Intents()[0]
	assert.Equal(t, SettlementKey(ch.ID), intent.IdempotencyKey)
	assert.Equal(t, "0xchallenger", intent.From)
	assert.Equal(t, "0xowner", intent.To)
	assert.True(t, intent.Amount.Equal(dec("22")))

	// Delivered events are not dispatched twice.
	n, err = dispatcher.Dispatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecutedIntentIsNotReconciledAsFunding(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	ext := extledger.NewSimulated()
	r := NewReconciler(e.ledger, e.db.Accounts(), ext, e.metrics, zap.NewNop())
	relay := NewIntentRelay(e.ledger, ext, nil, zap.NewNop())

	owner, err := e.accounts.Register(ctx, "0xa")
	require.NoError(t, err)
	challenger, err := e.accounts.Register(ctx, "0xb")
	require.NoError(t, err)
	ext.SetBalance("0xa", dec("100"))
	ext.SetBalance("0xb", dec("50"))
	assert.Equal(t, 2, r.ReconcileAll(ctx))

	post, err := e.stake.CreatePost(ctx, owner.ID, "claim", dec("20"))
	require.NoError(t, err)
	ch, err := e.challenges.CreateChallenge(ctx, challenger.ID, post.ID, dec("22"), "disagree")
	require.NoError(t, err)
	_, err = e.resolution.SubmitVerdict(ctx, ch.ID, true, 90)
	require.NoError(t, err)
	e.clock.Advance(e.cfg.VotingWindow)
	_, err = e.resolution.Finalize(ctx, ch.ID)
	require.NoError(t, err)

	events, err := e.db.Events().ListAfter(ctx, 0, 100)
	require.NoError(t, err)
	var resolved *domain.DomainEvent
	for i := range events {
		if events[i].Type == domain.EventChallengeResolved {
			resolved = &events[i]
		}
	}
	require.NotNil(t, resolved)
	ref, err := relay.Submit(ctx, *resolved)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	// The external ledger executes the intent.
	ext.SetBalance("0xa", dec("122"))
	ext.SetBalance("0xb", dec("28"))
	assert.Equal(t, 0, r.ReconcileAll(ctx))
	assert.True(t, e.balance(t, owner.ID).Equal(dec("102")), "owner = %s", e.balance(t, owner.ID))
	assert.True(t, e.balance(t, challenger.ID).Equal(dec("28")), "challenger = %s", e.balance(t, challenger.ID))

	// Real funding for the loser after the transfer is still credited.
	ext.SetBalance("0xb", dec("40"))
	res, err := r.ReconcileAccount(ctx, challenger.ID)
	require.NoError(t, err)
	assert.True(t, res.Credited.Equal(dec("12")))
	assert.True(t, e.balance(t, challenger.ID).Equal(dec("40")))
}

func TestIntentRelay_SkipsAccountsWithoutAddress(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	ext := extledger.NewSimulated()
	relay := NewIntentRelay(e.ledger, ext, nil, zap.NewNop())
	owner, challenger, _, ch := e.disputed(t, "20", "22")

	ref, err := relay.Submit(ctx, domain.DomainEvent{
		Type:        domain.EventChallengeResolved,
		AggregateID: ch.ID,
		Payload: map[string]any{
			"winner_id": owner.String(),
			"loser_id":  challenger.String(),
			"reward":    "22",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, ref)
	assert.Empty(t, ext.Intents())
}

func TestWorkersStartAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	e := newTestEngine(t, nil)
	ext := extledger.NewSimulated()
	bus := event.NewBus(nil, zap.NewNop())
	defer bus.Stop()

	reconciler := NewReconciler(e.ledger, e.db.Accounts(), ext, e.metrics, zap.NewNop())
	adjudicator := NewAdjudicator(e.resolution, e.db.Posts(), e.db.Challenges(), verdict.NewMockProvider(), e.metrics, zap.NewNop())
	finalizer := NewFinalizer(e.resolution, e.stake, e.metrics, zap.NewNop())
	dispatcher := NewDispatcher(e.db.Events(), bus, e.metrics, zap.NewNop())

	_, _, _, ch := e.disputed(t, "20", "22")

	reconciler.SetInterval(5 * time.Millisecond)
	adjudicator.SetInterval(5 * time.Millisecond)
	finalizer.SetInterval(5 * time.Millisecond)
	dispatcher.SetInterval(5 * time.Millisecond)
	reconciler.Start()
	adjudicator.Start()
	finalizer.Start()
	dispatcher.Start()

	// The adjudicator records a verdict; once the window elapses the
	// finalizer resolves the challenge.
	require.Eventually(t, func() bool {
		c, err := e.db.Challenges().GetByID(context.Background(), ch.ID)
		return err == nil && c.Status == domain.ChallengeStatusAwaitingVotes
	}, time.Second, 5*time.Millisecond)
	e.clock.Advance(e.cfg.VotingWindow)
	require.Eventually(t, func() bool {
		c, err := e.db.Challenges().GetByID(context.Background(), ch.ID)
		return err == nil && c.Status == domain.ChallengeStatusResolved
	}, time.Second, 5*time.Millisecond)

	reconciler.Stop()
	adjudicator.Stop()
	finalizer.Stop()
	dispatcher.Stop()
	// Stop is idempotent.
	finalizer.Stop()

	assert.Positive(t, testutil.ToFloat64(e.metrics.workerRuns.WithLabelValues("finalizer")))
}

func TestAccountService(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	a, err := e.accounts.Register(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 100, a.Reputation)
	assert.True(t, a.Active)

	_, err = e.accounts.Register(ctx, "0xabc")
	assert.ErrorIs(t, err, domain.ErrAddressInUse)

	_, err = e.ledger.ReconcileExternal(ctx, a.ID, dec("40"), "seed")
	require.NoError(t, err)
	_, err = e.stake.CreatePost(ctx, a.ID, "claim", dec("15"))
	require.NoError(t, err)

	state, err := e.accounts.GetState(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, state.Account.Balance.Equal(dec("25")))
	assert.Equal(t, 1, state.VoteWeight)
	require.Len(t, state.RecentEntries, 2)
	assert.Equal(t, domain.EntryKindStake, state.RecentEntries[0].Kind, "newest first")

	entries, err := e.accounts.Entries(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	deactivated, err := e.accounts.Deactivate(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	_, err = e.stake.CreatePost(ctx, a.ID, "another", dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	_, err = e.accounts.GetState(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
