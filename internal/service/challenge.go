package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ChallengeService struct {
	ledger          *ledger.Ledger
	postStore       domain.PostStore
	challengeStore  domain.ChallengeStore
	voteStore       domain.VoteStore
	resolutionStore domain.ResolutionStore
	cfg             EngineConfig
	metrics         *Metrics
	logger          *zap.Logger
}

func NewChallengeService(l *ledger.Ledger, ps domain.PostStore, cs domain.ChallengeStore, vs domain.VoteStore, rs domain.ResolutionStore, cfg EngineConfig, metrics *Metrics, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{
		ledger:          l,
		postStore:       ps,
		challengeStore:  cs,
		voteStore:       vs,
		resolutionStore: rs,
		cfg:             cfg,
		metrics:         metrics,
		logger:          logger,
	}
}

type MinimumQuote struct {
	PostID    uuid.UUID       `json:"post_id"`
	PostStake decimal.Decimal `json:"post_stake"`
	Minimum   decimal.Decimal `json:"minimum"`
	Floor     decimal.Decimal `json:"floor"`
	Margin    decimal.Decimal `json:"margin"`
}

// ChallengeState is a challenge with its votes and, once resolved, its
// resolution.
type ChallengeState struct {
	Challenge  domain.Challenge   `json:"challenge"`
	Votes      []domain.Vote      `json:"votes"`
	Tally      domain.VoteTally   `json:"tally"`
	Resolution *domain.Resolution `json:"resolution,omitempty"`
}

func (s *ChallengeService) MinimumChallenge(postStake decimal.Decimal) decimal.Decimal {
	return s.cfg.MinimumChallenge(postStake)
}

func (s *ChallengeService) QuoteMinimum(ctx context.Context, postID uuid.UUID) (*MinimumQuote, error) {
	post, err := s.postStore.GetByID(ctx, postID)
	if err != nil {
		return nil, lookup(err, "post")
	}
	return &MinimumQuote{
		PostID:    postID,
		PostStake: post.StakeAmount,
		Minimum:   s.cfg.MinimumChallenge(post.StakeAmount),
		Floor:     s.cfg.ChallengeFloor,
		Margin:    s.cfg.ChallengeMargin,
	}, nil
}

// CreateChallenge debits the challenger, records a pending challenge and
// moves the post to disputed, all in one commit. Every rejection leaves
// state untouched.
func (s *ChallengeService) CreateChallenge(ctx context.Context, challengerID, postID uuid.UUID, amount decimal.Decimal, reason string) (*domain.Challenge, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.metrics.reject("create_challenge", domain.ErrReasonRequired)
	}
	if amount.Sign() <= 0 {
		return nil, s.metrics.reject("create_challenge", domain.ErrInvalidAmount)
	}

	ch := domain.Challenge{
		ID:           uuid.New(),
		PostID:       postID,
		ChallengerID: challengerID,
		StakeAmount:  amount,
		Reason:       reason,
		Status:       domain.ChallengeStatusPending,
	}
	_, err := s.ledger.Update(ctx, []uuid.UUID{challengerID, postID, ch.ID}, func(tx *ledger.Tx) error {
		post, err := s.postStore.GetByID(ctx, postID)
		if err != nil {
			return lookup(err, "post")
		}
		if post.OwnerID == challengerID {
			return domain.ErrSelfAction
		}
		active, err := s.challengeStore.HasActive(ctx, postID, challengerID)
		if err != nil {
			return fmt.Errorf("check active challenge: %w", err)
		}
		if active {
			return domain.ErrDuplicateChallenge
		}
		if !post.Status.CanTransition(domain.PostStatusDisputed, s.cfg.AllowReopenVerified) {
			expected := []domain.PostStatus{domain.PostStatusPending}
			if s.cfg.AllowReopenVerified {
				expected = append(expected, domain.PostStatusVerified)
			}
			return postStateError(post.Status, expected...)
		}
		minimum := s.cfg.MinimumChallenge(post.StakeAmount)
		if amount.LessThan(minimum) {
			return &domain.AmountError{Err: domain.ErrBelowMinimumStake, Required: minimum, Actual: amount}
		}

		ch.CreatedAt = tx.Now()
		if _, err := tx.Debit(challengerID, amount, domain.EntryKindChallenge, domain.EntryRef{PostID: &postID, ChallengeID: &ch.ID}); err != nil {
			return err
		}
		post.Status = domain.PostStatusDisputed
		post.UpdatedAt = tx.Now()
		tx.PutPost(*post)
		tx.PutChallenge(ch)
		tx.Emit(domain.EventChallengeCreated, ch.ID, map[string]any{
			"post_id":       postID.String(),
			"challenger_id": challengerID.String(),
			"stake_amount":  amount.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, s.metrics.reject("create_challenge", domain.ErrDuplicateChallenge)
		}
		if domain.IsRejection(err) {
			return nil, s.metrics.reject("create_challenge", err)
		}
		return nil, fmt.Errorf("create challenge: %w", err)
	}

	s.metrics.created.WithLabelValues("challenge").Inc()
	s.logger.Info("challenge created",
		zap.String("challenge_id", ch.ID.String()),
		zap.String("post_id", postID.String()),
		zap.String("challenger_id", challengerID.String()),
		zap.String("stake", amount.String()))
	return &ch, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, id uuid.UUID) (*ChallengeState, error) {
	ch, err := s.challengeStore.GetByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "challenge")
	}
	votes, err := s.voteStore.ListByChallenge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	tally, err := s.voteStore.Tally(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}
	if votes == nil {
		votes = []domain.Vote{}
	}
	state := &ChallengeState{Challenge: *ch, Votes: votes, Tally: tally}
	if ch.Status == domain.ChallengeStatusResolved {
		res, err := s.resolutionStore.GetByChallengeID(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get resolution: %w", err)
		}
		state.Resolution = res
	}
	return state, nil
}

// HistoryByPost lists every challenge raised against a post.
func (s *ChallengeService) HistoryByPost(ctx context.Context, postID uuid.UUID) ([]domain.Challenge, error) {
	if _, err := s.postStore.GetByID(ctx, postID); err != nil {
		return nil, lookup(err, "post")
	}
	out, err := s.challengeStore.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	if out == nil {
		out = []domain.Challenge{}
	}
	return out, nil
}

// HistoryByChallenger lists every challenge an account has raised.
func (s *ChallengeService) HistoryByChallenger(ctx context.Context, accountID uuid.UUID) ([]domain.Challenge, error) {
	if _, err := s.ledger.Account(ctx, accountID); err != nil {
		return nil, err
	}
	out, err := s.challengeStore.ListByChallenger(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	if out == nil {
		out = []domain.Challenge{}
	}
	return out, nil
}
