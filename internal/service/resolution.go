package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const finalizeBatchSize = 100

type ResolutionService struct {
	ledger          *ledger.Ledger
	postStore       domain.PostStore
	challengeStore  domain.ChallengeStore
	voteStore       domain.VoteStore
	resolutionStore domain.ResolutionStore
	settler         *Settler
	policy          VerdictPolicy
	cfg             EngineConfig
	metrics         *Metrics
	logger          *zap.Logger
}

func NewResolutionService(l *ledger.Ledger, ps domain.PostStore, cs domain.ChallengeStore, vs domain.VoteStore, rs domain.ResolutionStore, settler *Settler, policy VerdictPolicy, cfg EngineConfig, metrics *Metrics, logger *zap.Logger) *ResolutionService {
	return &ResolutionService{
		ledger:          l,
		postStore:       ps,
		challengeStore:  cs,
		voteStore:       vs,
		resolutionStore: rs,
		settler:         settler,
		policy:          policy,
		cfg:             cfg,
		metrics:         metrics,
		logger:          logger,
	}
}

// VoteResult is the recorded vote, the tally after it, and the resolution
// when the vote reached quorum.
type VoteResult struct {
	Vote       domain.Vote        `json:"vote"`
	Tally      domain.VoteTally   `json:"tally"`
	Resolution *domain.Resolution `json:"resolution,omitempty"`
}

// SubmitVerdict records the automated verdict of a pending challenge and
// opens its voting window. A challenge takes exactly one verdict.
func (s *ResolutionService) SubmitVerdict(ctx context.Context, challengeID uuid.UUID, verdict bool, confidence int) (*domain.Challenge, error) {
	if confidence < 0 || confidence > 100 {
		return nil, s.metrics.reject("verdict", domain.ErrInvalidConfidence)
	}

	var out domain.Challenge
	_, err := s.ledger.Update(ctx, []uuid.UUID{challengeID}, func(tx *ledger.Tx) error {
		ch, err := s.challengeStore.GetByID(ctx, challengeID)
		if err != nil {
			return lookup(err, "challenge")
		}
		switch ch.Status {
		case domain.ChallengeStatusResolved:
			return domain.ErrAlreadyResolved
		case domain.ChallengeStatusAwaitingVotes:
			return domain.ErrDuplicateVerdict
		}

		now := tx.Now()
		closes := now.Add(s.cfg.VotingWindow)
		ch.AutomatedVerdict = &verdict
		ch.Confidence = &confidence
		ch.VerdictAt = &now
		ch.VotingClosesAt = &closes
		ch.Status = domain.ChallengeStatusAwaitingVotes
		tx.PutChallenge(*ch)
		out = *ch
		return nil
	})
	if err != nil {
		if domain.IsRejection(err) {
			return nil, s.metrics.reject("verdict", err)
		}
		return nil, fmt.Errorf("submit verdict: %w", err)
	}

	s.metrics.created.WithLabelValues("verdict").Inc()
	s.logger.Info("automated verdict recorded",
		zap.String("challenge_id", challengeID.String()),
		zap.Bool("verdict", verdict),
		zap.Int("confidence", confidence),
		zap.Time("voting_closes_at", *out.VotingClosesAt))
	return &out, nil
}

// CastVote records a weighted vote agreeing or disagreeing with the
// automated verdict. Weight is fixed from the voter's reputation now.
func (s *ResolutionService) CastVote(ctx context.Context, challengeID, voterID uuid.UUID, agree bool) (*VoteResult, error) {
	ch, err := s.challengeStore.GetByID(ctx, challengeID)
	if err != nil {
		return nil, s.metrics.reject("vote", lookup(err, "challenge"))
	}
	post, err := s.postStore.GetByID(ctx, ch.PostID)
	if err != nil {
		return nil, lookup(err, "post")
	}
	if voterID == post.OwnerID || voterID == ch.ChallengerID {
		return nil, s.metrics.reject("vote", domain.ErrSelfAction)
	}

	var vote domain.Vote
	_, err = s.ledger.Update(ctx, []uuid.UUID{challengeID, voterID}, func(tx *ledger.Tx) error {
		current, err := s.challengeStore.GetByID(ctx, challengeID)
		if err != nil {
			return lookup(err, "challenge")
		}
		switch current.Status {
		case domain.ChallengeStatusResolved:
			return domain.ErrAlreadyResolved
		case domain.ChallengeStatusPending:
			return challengeStateError(current.Status, domain.ChallengeStatusAwaitingVotes)
		}
		if current.VotingClosed(tx.Now()) {
			return domain.ErrVotingClosed
		}

		voter, err := tx.Account(voterID)
		if err != nil {
			return err
		}
		if !voter.Active {
			return domain.ErrAccountInactive
		}
		if _, err := s.voteStore.Get(ctx, challengeID, voterID); err == nil {
			return domain.ErrDuplicateVote
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("get vote: %w", err)
		}

		vote = domain.Vote{
			ID:          uuid.New(),
			ChallengeID: challengeID,
			VoterID:     voterID,
			Agree:       agree,
			Weight:      voter.VoteWeight(),
			CreatedAt:   tx.Now(),
		}
		tx.PutVote(vote)
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, s.metrics.reject("vote", domain.ErrDuplicateVote)
		}
		if domain.IsRejection(err) {
			return nil, s.metrics.reject("vote", err)
		}
		return nil, fmt.Errorf("cast vote: %w", err)
	}
	s.metrics.created.WithLabelValues("vote").Inc()

	tally, err := s.voteStore.Tally(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}
	result := &VoteResult{Vote: vote, Tally: tally}

	if s.quorumReached(tally) {
		res, err := s.Finalize(ctx, challengeID)
		switch {
		case err == nil:
			result.Resolution = res
		case errors.Is(err, domain.ErrAlreadyResolved):
		default:
			s.logger.Warn("quorum finalize failed, finalizer will retry",
				zap.String("challenge_id", challengeID.String()), zap.Error(err))
		}
	}
	return result, nil
}

func (s *ResolutionService) quorumReached(tally domain.VoteTally) bool {
	return s.cfg.QuorumWeight > 0 && tally.Total() >= s.cfg.QuorumWeight
}

// Finalize resolves a challenge whose voting window elapsed or whose votes
// reached quorum: it writes the resolution, moves the post to its terminal
// status and settles, all in one commit keyed by the challenge id. A
// failed commit is retried with backoff; exhausting the retries raises a
// consistency alarm and leaves the challenge for the next finalizer cycle.
func (s *ResolutionService) Finalize(ctx context.Context, challengeID uuid.UUID) (*domain.Resolution, error) {
	attempts := s.cfg.SettlementMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := s.cfg.SettlementBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := s.finalizeOnce(ctx, challengeID)
		if err == nil {
			s.metrics.settlements.WithLabelValues("applied").Inc()
			return res, nil
		}
		if errors.Is(err, ledger.ErrAlreadyApplied) || errors.Is(err, domain.ErrAlreadyResolved) {
			s.metrics.settlements.WithLabelValues("duplicate").Inc()
			return nil, domain.ErrAlreadyResolved
		}
		if domain.IsRejection(err) {
			return nil, s.metrics.reject("finalize", err)
		}

		lastErr = err
		s.metrics.settlements.WithLabelValues("failed").Inc()
		s.logger.Warn("settlement attempt failed",
			zap.String("challenge_id", challengeID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("finalize challenge %s: %w", challengeID, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	s.metrics.alarms.Inc()
	s.metrics.settlements.WithLabelValues("alarm").Inc()
	s.logger.Error("settlement retries exhausted",
		zap.Bool("consistency_alarm", true),
		zap.String("challenge_id", challengeID.String()),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
	return nil, fmt.Errorf("finalize challenge %s: %w", challengeID, lastErr)
}

func (s *ResolutionService) finalizeOnce(ctx context.Context, challengeID uuid.UUID) (*domain.Resolution, error) {
	ch, err := s.challengeStore.GetByID(ctx, challengeID)
	if err != nil {
		return nil, lookup(err, "challenge")
	}
	if ch.Status == domain.ChallengeStatusResolved {
		return nil, domain.ErrAlreadyResolved
	}
	post, err := s.postStore.GetByID(ctx, ch.PostID)
	if err != nil {
		return nil, lookup(err, "post")
	}

	var resolution domain.Resolution
	keys := []uuid.UUID{challengeID, post.ID, post.OwnerID, ch.ChallengerID}
	_, err = s.ledger.Update(ctx, keys, func(tx *ledger.Tx) error {
		tx.SetKey(SettlementKey(challengeID))

		current, err := s.challengeStore.GetByID(ctx, challengeID)
		if err != nil {
			return lookup(err, "challenge")
		}
		switch current.Status {
		case domain.ChallengeStatusResolved:
			return domain.ErrAlreadyResolved
		case domain.ChallengeStatusPending:
			return challengeStateError(current.Status, domain.ChallengeStatusAwaitingVotes)
		}

		tally, err := s.voteStore.Tally(ctx, challengeID)
		if err != nil {
			return fmt.Errorf("tally votes: %w", err)
		}
		now := tx.Now()
		if !current.VotingClosed(now) && !s.quorumReached(tally) {
			return domain.ErrVotingOpen
		}

		currentPost, err := s.postStore.GetByID(ctx, post.ID)
		if err != nil {
			return lookup(err, "post")
		}
		automated := current.AutomatedVerdict != nil && *current.AutomatedVerdict
		decision := s.policy.Decide(automated, tally)

		payout, err := s.settler.Apply(tx, currentPost, current, decision.Verdict)
		if err != nil {
			return err
		}

		confidence := 0
		if current.Confidence != nil {
			confidence = *current.Confidence
		}
		resolution = domain.Resolution{
			ChallengeID:      challengeID,
			Verdict:          decision.Verdict,
			AutomatedVerdict: automated,
			Confidence:       confidence,
			VotesFor:         tally.Agree,
			VotesAgainst:     tally.Disagree,
			Overridden:       decision.Overridden,
			Policy:           s.policy.Name() + "/" + s.settler.Policy(),
			Notes:            decision.Notes,
			CreatedAt:        now,
		}
		tx.PutResolution(resolution)

		currentPost.Status = domain.ResolvedStatus(decision.Verdict)
		currentPost.UpdatedAt = now
		tx.PutPost(*currentPost)

		current.Status = domain.ChallengeStatusResolved
		current.ResolvedAt = &now
		tx.PutChallenge(*current)

		tx.Emit(domain.EventChallengeResolved, challengeID, map[string]any{
			"post_id":       post.ID.String(),
			"verdict":       decision.Verdict,
			"overridden":    decision.Overridden,
			"winner_id":     payout.Winner.String(),
			"loser_id":      payout.Loser.String(),
			"reward":        payout.Reward.String(),
			"loser_refund":  payout.LoserRefund.String(),
			"winner_refund": payout.WinnerRefund.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge resolved",
		zap.String("challenge_id", challengeID.String()),
		zap.Bool("verdict", resolution.Verdict),
		zap.Bool("overridden", resolution.Overridden),
		zap.Int("votes_for", resolution.VotesFor),
		zap.Int("votes_against", resolution.VotesAgainst))
	return &resolution, nil
}

// SettlementKey is the idempotency key of a challenge's settlement.
func SettlementKey(challengeID uuid.UUID) string {
	return "settle:" + challengeID.String()
}

// FinalizeDue finalizes every challenge whose voting window has closed.
func (s *ResolutionService) FinalizeDue(ctx context.Context) (int, error) {
	due, err := s.challengeStore.ListDue(ctx, s.ledger.Now(), finalizeBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due challenges: %w", err)
	}
	finalized := 0
	for _, ch := range due {
		if _, err := s.Finalize(ctx, ch.ID); err != nil {
			if !errors.Is(err, domain.ErrAlreadyResolved) {
				s.logger.Warn("failed to finalize challenge",
					zap.String("challenge_id", ch.ID.String()), zap.Error(err))
			}
			continue
		}
		finalized++
	}
	return finalized, nil
}
