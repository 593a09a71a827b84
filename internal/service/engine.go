package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// EngineConfig carries every tunable of the staking engine. main builds it
// from the environment. Services never read configuration themselves.
type EngineConfig struct {
	MinStake        decimal.Decimal
	MinSupport      decimal.Decimal
	ChallengeFloor  decimal.Decimal
	ChallengeMargin decimal.Decimal

	ReputationInitial int
	ReputationMin     int
	ReputationMax     int
	WinDelta          int
	LoseDelta         int

	VotingWindow time.Duration
	// QuorumWeight finalizes a challenge early once the total vote weight
	// reaches it. Zero disables quorum.
	QuorumWeight int

	VerdictPolicy     string
	OverrideMinShare  float64
	OverrideMinWeight int
	SettlementPolicy  string

	SettlementMaxAttempts int
	SettlementBackoff     time.Duration

	// VerifyAfter moves unchallenged pending posts to verified once they
	// are this old. Zero disables it.
	VerifyAfter         time.Duration
	AllowReopenVerified bool
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinStake:              decimal.RequireFromString("0.01"),
		MinSupport:            decimal.RequireFromString("0.01"),
		ChallengeFloor:        decimal.NewFromInt(1),
		ChallengeMargin:       decimal.RequireFromString("0.1"),
		ReputationInitial:     100,
		ReputationMin:         0,
		ReputationMax:         1000,
		WinDelta:              10,
		LoseDelta:             -5,
		VotingWindow:          24 * time.Hour,
		QuorumWeight:          0,
		VerdictPolicy:         PolicyAutomated,
		OverrideMinShare:      0.66,
		OverrideMinWeight:     5,
		SettlementPolicy:      SettlementFull,
		SettlementMaxAttempts: 5,
		SettlementBackoff:     50 * time.Millisecond,
		VerifyAfter:           72 * time.Hour,
		AllowReopenVerified:   false,
	}
}

// MinimumChallenge is max(postStake * (1 + margin), floor).
func (c EngineConfig) MinimumChallenge(postStake decimal.Decimal) decimal.Decimal {
	scaled := postStake.Mul(decimal.NewFromInt(1).Add(c.ChallengeMargin))
	if scaled.LessThan(c.ChallengeFloor) {
		return c.ChallengeFloor
	}
	return scaled
}
