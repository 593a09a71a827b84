package service

import (
	"context"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/event"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const intentTimeout = 10 * time.Second

// IntentRelay mirrors settled rewards to the external ledger. Submission
// is fire-and-forget: a failure is logged and never touches local state.
type IntentRelay struct {
	ledger   *ledger.Ledger
	external domain.ExternalLedger
	bus      *event.Bus
	logger   *zap.Logger
	subID    event.SubscriberID
}

func NewIntentRelay(l *ledger.Ledger, ext domain.ExternalLedger, bus *event.Bus, logger *zap.Logger) *IntentRelay {
	return &IntentRelay{
		ledger:   l,
		external: ext,
		bus:      bus,
		logger:   logger,
	}
}

func (r *IntentRelay) Start() {
	r.subID = r.bus.SubscribeFunc(domain.EventChallengeResolved, r.handle)
	r.logger.Info("intent relay started")
}

func (r *IntentRelay) Stop() {
	r.bus.Unsubscribe(domain.EventChallengeResolved, r.subID)
	r.logger.Info("intent relay stopped")
}

func payloadString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

func (r *IntentRelay) handle(evt domain.DomainEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()
	if _, err := r.Submit(ctx, evt); err != nil {
		r.logger.Warn("transfer intent not submitted",
			zap.String("challenge_id", evt.AggregateID.String()), zap.Error(err))
	}
}

// Submit sends the reward leg of a ChallengeResolved event. It returns an
// empty reference when there is nothing to mirror.
func (r *IntentRelay) Submit(ctx context.Context, evt domain.DomainEvent) (string, error) {
	reward, err := decimal.NewFromString(payloadString(evt.Payload, "reward"))
	if err != nil || reward.Sign() <= 0 {
		return "", nil
	}
	winnerID, err := uuid.Parse(payloadString(evt.Payload, "winner_id"))
	if err != nil {
		return "", nil
	}
	loserID, err := uuid.Parse(payloadString(evt.Payload, "loser_id"))
	if err != nil {
		return "", nil
	}

	winner, err := r.ledger.Account(ctx, winnerID)
	if err != nil {
		return "", err
	}
	loser, err := r.ledger.Account(ctx, loserID)
	if err != nil {
		return "", err
	}
	if winner.ExternalAddress == "" || loser.ExternalAddress == "" {
		r.logger.Debug("skipping intent, account has no external address",
			zap.String("challenge_id", evt.AggregateID.String()))
		return "", nil
	}

	ref, err := r.external.SubmitValueTransferIntent(ctx, domain.TransferIntent{
		IdempotencyKey: SettlementKey(evt.AggregateID),
		ChallengeID:    evt.AggregateID,
		From:           loser.ExternalAddress,
		To:             winner.ExternalAddress,
		Amount:         reward,
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("transfer intent submitted",
		zap.String("challenge_id", evt.AggregateID.String()),
		zap.String("reference", ref))
	return ref, nil
}
