package service

import (
	"fmt"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PolicyAutomated         = "automated"
	PolicyCommunityOverride = "community_override"

	SettlementFull    = "full"
	SettlementMatched = "matched"
)

// Decision is the final verdict of a challenge.
type Decision struct {
	Verdict    bool
	Overridden bool
	Notes      string
}

// VerdictPolicy combines the automated verdict with the vote tally.
type VerdictPolicy interface {
	Name() string
	Decide(automated bool, tally domain.VoteTally) Decision
}

func NewVerdictPolicy(cfg EngineConfig) (VerdictPolicy, error) {
	switch cfg.VerdictPolicy {
	case PolicyAutomated, "":
		return AutomatedPolicy{}, nil
	case PolicyCommunityOverride:
		if cfg.OverrideMinShare <= 0.5 || cfg.OverrideMinShare > 1 {
			return nil, fmt.Errorf("OVERRIDE_MIN_SHARE must be in (0.5, 1], got %v", cfg.OverrideMinShare)
		}
		return CommunityOverridePolicy{MinShare: cfg.OverrideMinShare, MinWeight: cfg.OverrideMinWeight}, nil
	default:
		return nil, fmt.Errorf("unknown verdict policy: %s (valid options: automated, community_override)", cfg.VerdictPolicy)
	}
}

// AutomatedPolicy keeps the automated verdict. Votes are recorded only.
type AutomatedPolicy struct{}

func (AutomatedPolicy) Name() string { return PolicyAutomated }

func (AutomatedPolicy) Decide(automated bool, tally domain.VoteTally) Decision {
	return Decision{Verdict: automated}
}

// CommunityOverridePolicy flips the automated verdict when the weighted
// share of disagreeing votes is above MinShare and at least MinWeight
// weight was cast in total.
type CommunityOverridePolicy struct {
	MinShare  float64
	MinWeight int
}

func (CommunityOverridePolicy) Name() string { return PolicyCommunityOverride }

func (p CommunityOverridePolicy) Decide(automated bool, tally domain.VoteTally) Decision {
	total := tally.Total()
	if total == 0 || total < p.MinWeight {
		return Decision{Verdict: automated}
	}
	share := float64(tally.Disagree) / float64(total)
	if share <= p.MinShare {
		return Decision{Verdict: automated}
	}
	return Decision{
		Verdict:    !automated,
		Overridden: true,
		Notes:      fmt.Sprintf("community override: %d of %d vote weight disagreed", tally.Disagree, total),
	}
}

// Payout is how a settled challenge moves value. Reward moves from the
// loser's forfeited stake to the winner. LoserRefund returns the part of
// the loser's stake that was not matched. WinnerRefund returns a winning
// challenger's own stake. An upheld owner gets no refund because their stake
// stays committed to the post, while a challenge is closed by its
// resolution and would otherwise leave a winning challenger below where
// they started. Mirrored reports whether the reward leg was also moved
// between the two accounts' synced external balances.
type Payout struct {
	Winner       uuid.UUID       `json:"winner_id"`
	Loser        uuid.UUID       `json:"loser_id"`
	PostUpheld   bool            `json:"post_upheld"`
	Reward       decimal.Decimal `json:"reward"`
	LoserRefund  decimal.Decimal `json:"loser_refund"`
	WinnerRefund decimal.Decimal `json:"winner_refund"`
	Mirrored     bool            `json:"mirrored"`
}

// Forfeited is what the loser gave up net of refunds. It always equals
// Reward.
func (p Payout) Forfeited(loserStake decimal.Decimal) decimal.Decimal {
	return loserStake.Sub(p.LoserRefund)
}

// SettlementPolicy sizes the payout of a resolved challenge.
type SettlementPolicy interface {
	Name() string
	Split(postStake, challengeStake decimal.Decimal, postUpheld bool) (reward, loserRefund decimal.Decimal)
}

func NewSettlementPolicy(name string) (SettlementPolicy, error) {
	switch name {
	case SettlementFull, "":
		return FullSettlement{}, nil
	case SettlementMatched:
		return MatchedSettlement{}, nil
	default:
		return nil, fmt.Errorf("unknown settlement policy: %s (valid options: full, matched)", name)
	}
}

// FullSettlement pays the loser's whole stake to the winner.
type FullSettlement struct{}

func (FullSettlement) Name() string { return SettlementFull }

func (FullSettlement) Split(postStake, challengeStake decimal.Decimal, postUpheld bool) (decimal.Decimal, decimal.Decimal) {
	if postUpheld {
		return challengeStake, decimal.Zero
	}
	return postStake, decimal.Zero
}

// MatchedSettlement pays min(postStake, challengeStake) and refunds the
// loser's excess.
type MatchedSettlement struct{}

func (MatchedSettlement) Name() string { return SettlementMatched }

func (MatchedSettlement) Split(postStake, challengeStake decimal.Decimal, postUpheld bool) (decimal.Decimal, decimal.Decimal) {
	matched := decimal.Min(postStake, challengeStake)
	loserStake := postStake
	if postUpheld {
		loserStake = challengeStake
	}
	return matched, loserStake.Sub(matched)
}
