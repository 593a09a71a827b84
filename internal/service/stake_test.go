package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_Rejections(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	owner := e.fund(t, "10")

	tests := []struct {
		name    string
		owner   uuid.UUID
		content string
		amount  string
		want    error
	}{
		{"empty content", owner, "   ", "5", domain.ErrContentRequired},
		{"zero amount", owner, "claim", "0", domain.ErrInvalidAmount},
		{"negative amount", owner, "claim", "-1", domain.ErrInvalidAmount},
		{"below minimum", owner, "claim", "0.001", domain.ErrBelowMinimumStake},
		{"insufficient balance", owner, "claim", "10.5", domain.ErrInsufficientBalance},
		{"unknown owner", uuid.New(), "claim", "1", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.stake.CreatePost(ctx, tt.owner, tt.content, dec(tt.amount))
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.True(t, e.balance(t, owner).Equal(dec("10")))
	entries, err := e.accounts.Entries(ctx, owner, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the funding entry")
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(e.metrics.rejections.WithLabelValues("create_post")))
}

func TestCreatePost_InsufficientBalanceReportsAmounts(t *testing.T) {
	e := newTestEngine(t, nil)
	owner := e.fund(t, "10")

	_, err := e.stake.CreatePost(context.Background(), owner, "claim", dec("10.5"))
	var amountErr *domain.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.True(t, amountErr.Required.Equal(dec("10.5")))
	assert.True(t, amountErr.Actual.Equal(dec("10")))
}

func TestCreatePost_ConcurrentStakesNeverOverdraw(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	owner := e.fund(t, "100")

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.stake.CreatePost(ctx, owner, "claim", dec("30"))
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.True(t, e.balance(t, owner).Equal(dec("10")), "balance = %s", e.balance(t, owner))
	assert.True(t, e.account(t, owner).TotalStaked.Equal(dec("90")))
}

func TestSupportStake(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	owner := e.fund(t, "100")
	supporter := e.fund(t, "10")

	post, err := e.stake.CreatePost(ctx, owner, "claim", dec("20"))
	require.NoError(t, err)

	support, err := e.stake.SupportStake(ctx, supporter, post.ID, dec("4"))
	require.NoError(t, err)
	assert.Equal(t, post.ID, support.PostID)
	assert.True(t, e.balance(t, supporter).Equal(dec("6")))

	state, err := e.stake.GetPostState(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, state.Post.SupportTotal.Equal(dec("4")))
	require.Len(t, state.Supports, 1)
	assert.True(t, state.MinimumChallenge.Equal(dec("22")), "support does not raise the challenge minimum")

	_, err = e.stake.SupportStake(ctx, owner, post.ID, dec("1"))
	assert.ErrorIs(t, err, domain.ErrSelfAction)
	_, err = e.stake.SupportStake(ctx, supporter, post.ID, dec("0.001"))
	assert.ErrorIs(t, err, domain.ErrBelowMinimumStake)
	_, err = e.stake.SupportStake(ctx, supporter, post.ID, dec("7"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, err = e.stake.SupportStake(ctx, supporter, uuid.New(), dec("1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, e.balance(t, supporter).Equal(dec("6")))
}

func TestSupportStake_RejectedOnDisputedPost(t *testing.T) {
	e := newTestEngine(t, nil)
	_, _, post, _ := e.disputed(t, "20", "22")
	supporter := e.fund(t, "10")

	_, err := e.stake.SupportStake(context.Background(), supporter, post.ID, dec("1"))
	var stateErr *domain.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.ErrorIs(t, err, domain.ErrInvalidPostState)
	assert.Equal(t, string(domain.PostStatusDisputed), stateErr.Current)
}

func TestVerifyStale(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	owner := e.fund(t, "100")
	challenger := e.fund(t, "50")

	old, err := e.stake.CreatePost(ctx, owner, "old claim", dec("10"))
	require.NoError(t, err)
	e.clock.Advance(48 * time.Hour)
	fresh, err := e.stake.CreatePost(ctx, owner, "fresh claim", dec("10"))
	require.NoError(t, err)
	e.clock.Advance(25 * time.Hour)

	n, err := e.stake.VerifyStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	state, err := e.stake.GetPostState(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusVerified, state.Post.Status)
	state, err = e.stake.GetPostState(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusPending, state.Post.Status)

	_, err = e.challenges.CreateChallenge(ctx, challenger, old.ID, dec("11"), "disagree")
	assert.ErrorIs(t, err, domain.ErrInvalidPostState)
	assert.True(t, e.balance(t, challenger).Equal(dec("50")))

	// Verified posts still take support.
	_, err = e.stake.SupportStake(ctx, challenger, old.ID, dec("1"))
	assert.NoError(t, err)
}

func TestVerifiedPostReopensWhenAllowed(t *testing.T) {
	e := newTestEngine(t, func(cfg *EngineConfig) { cfg.AllowReopenVerified = true })
	ctx := context.Background()
	owner := e.fund(t, "100")
	challenger := e.fund(t, "50")

	post, err := e.stake.CreatePost(ctx, owner, "claim", dec("10"))
	require.NoError(t, err)
	e.clock.Advance(e.cfg.VerifyAfter + time.Minute)
	n, err := e.stake.VerifyStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = e.challenges.CreateChallenge(ctx, challenger, post.ID, dec("11"), "disagree")
	require.NoError(t, err)
	state, err := e.stake.GetPostState(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostStatusDisputed, state.Post.Status)
}

func TestVerifyStale_Disabled(t *testing.T) {
	e := newTestEngine(t, func(cfg *EngineConfig) { cfg.VerifyAfter = 0 })
	ctx := context.Background()
	owner := e.fund(t, "100")
	_, err := e.stake.CreatePost(ctx, owner, "claim", dec("10"))
	require.NoError(t, err)
	e.clock.Advance(365 * 24 * time.Hour)

	n, err := e.stake.VerifyStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
