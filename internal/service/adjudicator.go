package service

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultAdjudicateInterval = 30 * time.Second
	adjudicateBatchSize       = 50
)

// Adjudicator asks the verdict provider about each pending challenge and
// records the answer. A provider failure leaves the challenge pending for
// the next cycle.
type Adjudicator struct {
	resolution     *ResolutionService
	postStore      domain.PostStore
	challengeStore domain.ChallengeStore
	provider       domain.VerdictProvider
	logger         *zap.Logger
	worker         *worker
}

func NewAdjudicator(rs *ResolutionService, ps domain.PostStore, cs domain.ChallengeStore, provider domain.VerdictProvider, metrics *Metrics, logger *zap.Logger) *Adjudicator {
	return &Adjudicator{
		resolution:     rs,
		postStore:      ps,
		challengeStore: cs,
		provider:       provider,
		logger:         logger,
		worker:         newWorker("adjudicator", defaultAdjudicateInterval, metrics, logger),
	}
}

func (a *Adjudicator) SetInterval(d time.Duration) {
	a.worker.interval = d
}

func (a *Adjudicator) Start() {
	a.worker.start(func(ctx context.Context) { a.EvaluatePending(ctx) })
}

func (a *Adjudicator) Stop() {
	a.worker.stop()
}

// EvaluatePending submits a verdict for each pending challenge and returns
// how many were recorded.
func (a *Adjudicator) EvaluatePending(ctx context.Context) int {
	pending, err := a.challengeStore.ListByStatus(ctx, domain.ChallengeStatusPending, adjudicateBatchSize)
	if err != nil {
		a.logger.Error("failed to list pending challenges", zap.Error(err))
		return 0
	}

	recorded := 0
	for _, ch := range pending {
		post, err := a.postStore.GetByID(ctx, ch.PostID)
		if err != nil {
			a.logger.Warn("failed to load post for adjudication",
				zap.String("challenge_id", ch.ID.String()), zap.Error(err))
			continue
		}
		eval, err := a.provider.Evaluate(ctx, domain.EvaluationRequest{
			PostContent:     post.Content,
			ChallengeReason: ch.Reason,
		})
		if err != nil {
			a.logger.Warn("verdict provider failed",
				zap.String("challenge_id", ch.ID.String()), zap.Error(err))
			continue
		}
		if _, err := a.resolution.SubmitVerdict(ctx, ch.ID, eval.Verdict, eval.Confidence); err != nil {
			if !errors.Is(err, domain.ErrDuplicateVerdict) && !errors.Is(err, domain.ErrAlreadyResolved) {
				a.logger.Warn("failed to record verdict",
					zap.String("challenge_id", ch.ID.String()), zap.Error(err))
			}
			continue
		}
		recorded++
	}
	return recorded
}
