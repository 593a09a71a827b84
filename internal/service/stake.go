package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const verifyBatchSize = 100

type StakeService struct {
	ledger         *ledger.Ledger
	postStore      domain.PostStore
	challengeStore domain.ChallengeStore
	cfg            EngineConfig
	metrics        *Metrics
	logger         *zap.Logger
}

func NewStakeService(l *ledger.Ledger, ps domain.PostStore, cs domain.ChallengeStore, cfg EngineConfig, metrics *Metrics, logger *zap.Logger) *StakeService {
	return &StakeService{
		ledger:         l,
		postStore:      ps,
		challengeStore: cs,
		cfg:            cfg,
		metrics:        metrics,
		logger:         logger,
	}
}

// PostState is a post with its supporters and challenge history.
type PostState struct {
	Post             domain.StakePost      `json:"post"`
	Supports         []domain.SupportStake `json:"supports"`
	Challenges       []domain.Challenge    `json:"challenges"`
	MinimumChallenge decimal.Decimal       `json:"minimum_challenge"`
}

// CreatePost debits the owner's stake and records the post as pending, in
// one commit.
func (s *StakeService) CreatePost(ctx context.Context, ownerID uuid.UUID, content string, amount decimal.Decimal) (*domain.StakePost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, s.metrics.reject("create_post", domain.ErrContentRequired)
	}
	if amount.Sign() <= 0 {
		return nil, s.metrics.reject("create_post", domain.ErrInvalidAmount)
	}
	if amount.LessThan(s.cfg.MinStake) {
		return nil, s.metrics.reject("create_post", &domain.AmountError{
			Err: domain.ErrBelowMinimumStake, Required: s.cfg.MinStake, Actual: amount,
		})
	}

	post := domain.StakePost{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Content:      content,
		StakeAmount:  amount,
		SupportTotal: decimal.Zero,
		Status:       domain.PostStatusPending,
	}
	_, err := s.ledger.Update(ctx, []uuid.UUID{ownerID, post.ID}, func(tx *ledger.Tx) error {
		post.CreatedAt = tx.Now()
		post.UpdatedAt = tx.Now()
		if _, err := tx.Debit(ownerID, amount, domain.EntryKindStake, domain.EntryRef{PostID: &post.ID}); err != nil {
			return err
		}
		tx.PutPost(post)
		tx.Emit(domain.EventPostStaked, post.ID, map[string]any{
			"owner_id":     ownerID.String(),
			"stake_amount": amount.String(),
		})
		return nil
	})
	if err != nil {
		if domain.IsRejection(err) {
			return nil, s.metrics.reject("create_post", err)
		}
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.metrics.created.WithLabelValues("post").Inc()
	s.logger.Info("post staked",
		zap.String("post_id", post.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("stake", amount.String()))
	return &post, nil
}

// SupportStake commits additional value behind a pending or verified post.
func (s *StakeService) SupportStake(ctx context.Context, accountID, postID uuid.UUID, amount decimal.Decimal) (*domain.SupportStake, error) {
	if amount.Sign() <= 0 {
		return nil, s.metrics.reject("support", domain.ErrInvalidAmount)
	}

	support := domain.SupportStake{
		ID:        uuid.New(),
		PostID:    postID,
		AccountID: accountID,
		Amount:    amount,
	}
	_, err := s.ledger.Update(ctx, []uuid.UUID{accountID, postID}, func(tx *ledger.Tx) error {
		post, err := s.postStore.GetByID(ctx, postID)
		if err != nil {
			return lookup(err, "post")
		}
		if !post.Status.AcceptsSupport() {
			return postStateError(post.Status, domain.PostStatusPending, domain.PostStatusVerified)
		}
		if post.OwnerID == accountID {
			return domain.ErrSelfAction
		}
		if amount.LessThan(s.cfg.MinSupport) {
			return &domain.AmountError{Err: domain.ErrBelowMinimumStake, Required: s.cfg.MinSupport, Actual: amount}
		}

		support.CreatedAt = tx.Now()
		if _, err := tx.Debit(accountID, amount, domain.EntryKindStake, domain.EntryRef{PostID: &postID}); err != nil {
			return err
		}
		post.SupportTotal = post.SupportTotal.Add(amount)
		post.UpdatedAt = tx.Now()
		tx.PutPost(*post)
		tx.PutSupport(support)
		return nil
	})
	if err != nil {
		if domain.IsRejection(err) {
			return nil, s.metrics.reject("support", err)
		}
		return nil, fmt.Errorf("support stake: %w", err)
	}

	s.metrics.created.WithLabelValues("support").Inc()
	return &support, nil
}

func (s *StakeService) GetPostState(ctx context.Context, postID uuid.UUID) (*PostState, error) {
	post, err := s.postStore.GetByID(ctx, postID)
	if err != nil {
		return nil, lookup(err, "post")
	}
	supports, err := s.postStore.ListSupports(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list supports: %w", err)
	}
	challenges, err := s.challengeStore.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	if supports == nil {
		supports = []domain.SupportStake{}
	}
	if challenges == nil {
		challenges = []domain.Challenge{}
	}
	return &PostState{
		Post:             *post,
		Supports:         supports,
		Challenges:       challenges,
		MinimumChallenge: s.cfg.MinimumChallenge(post.StakeAmount),
	}, nil
}

// VerifyStale moves pending posts older than VerifyAfter to verified. A
// pending post has never been challenged.
func (s *StakeService) VerifyStale(ctx context.Context) (int, error) {
	if s.cfg.VerifyAfter <= 0 {
		return 0, nil
	}
	cutoff := s.ledger.Now().Add(-s.cfg.VerifyAfter)
	posts, err := s.postStore.ListByStatusBefore(ctx, domain.PostStatusPending, cutoff, verifyBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale posts: %w", err)
	}

	verified := 0
	for _, candidate := range posts {
		id := candidate.ID
		_, err := s.ledger.Update(ctx, []uuid.UUID{id}, func(tx *ledger.Tx) error {
			post, err := s.postStore.GetByID(ctx, id)
			if err != nil {
				return lookup(err, "post")
			}
			if !post.Status.CanTransition(domain.PostStatusVerified, s.cfg.AllowReopenVerified) {
				return postStateError(post.Status, domain.PostStatusPending)
			}
			post.Status = domain.PostStatusVerified
			post.UpdatedAt = tx.Now()
			tx.PutPost(*post)
			return nil
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidPostState) {
				continue
			}
			s.logger.Warn("failed to verify post", zap.String("post_id", id.String()), zap.Error(err))
			continue
		}
		verified++
	}
	return verified, nil
}
