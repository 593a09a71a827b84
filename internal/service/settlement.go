package service

import (
	"fmt"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settler moves staked value and reputation for one resolved challenge.
// It only stages writes on the caller's Tx, so a settlement commits
// together with its resolution or not at all.
type Settler struct {
	policy SettlementPolicy
	cfg    EngineConfig
}

func NewSettler(policy SettlementPolicy, cfg EngineConfig) *Settler {
	return &Settler{policy: policy, cfg: cfg}
}

func (s *Settler) Policy() string {
	return s.policy.Name()
}

// Quote computes the payout without touching any account.
func (s *Settler) Quote(post *domain.StakePost, ch *domain.Challenge, postUpheld bool) Payout {
	reward, loserRefund := s.policy.Split(post.StakeAmount, ch.StakeAmount, postUpheld)
	p := Payout{
		PostUpheld:   postUpheld,
		Reward:       reward,
		LoserRefund:  loserRefund,
		WinnerRefund: decimal.Zero,
	}
	if postUpheld {
		p.Winner, p.Loser = post.OwnerID, ch.ChallengerID
	} else {
		// A winning challenger gets their own stake back with the reward.
		p.Winner, p.Loser = ch.ChallengerID, post.OwnerID
		p.WinnerRefund = ch.StakeAmount
	}
	return p
}

// Apply stages the payout and reputation changes on tx. The winner,
// loser, post and challenge must all be locked by the enclosing update.
func (s *Settler) Apply(tx *ledger.Tx, post *domain.StakePost, ch *domain.Challenge, postUpheld bool) (*Payout, error) {
	p := s.Quote(post, ch, postUpheld)
	ref := domain.EntryRef{PostID: &post.ID, ChallengeID: &ch.ID}

	credits := []struct {
		account uuid.UUID
		amount  decimal.Decimal
		kind    domain.EntryKind
	}{
		{p.Winner, p.Reward, domain.EntryKindReward},
		{p.Winner, p.WinnerRefund, domain.EntryKindRefund},
		{p.Loser, p.LoserRefund, domain.EntryKindRefund},
	}
	for _, c := range credits {
		if c.amount.Sign() <= 0 {
			continue
		}
		if _, err := tx.Credit(c.account, c.amount, c.kind, ref); err != nil {
			return nil, fmt.Errorf("settle %s credit: %w", c.kind, err)
		}
	}

	// The intent relay sends the reward leg loser -> winner externally.
	mirrored, err := tx.MirrorTransfer(p.Loser, p.Winner, p.Reward)
	if err != nil {
		return nil, fmt.Errorf("settle mirror: %w", err)
	}
	p.Mirrored = mirrored

	if _, err := tx.AdjustReputation(p.Winner, s.cfg.WinDelta); err != nil {
		return nil, err
	}
	if _, err := tx.AdjustReputation(p.Loser, s.cfg.LoseDelta); err != nil {
		return nil, err
	}
	if err := tx.RecordOutcome(p.Winner, true); err != nil {
		return nil, err
	}
	if err := tx.RecordOutcome(p.Loser, false); err != nil {
		return nil, err
	}
	return &p, nil
}
