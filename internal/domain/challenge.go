package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ChallengeStatus string

const (
	// ChallengeStatusPending waits for the automated verdict.
	ChallengeStatusPending ChallengeStatus = "pending"
	// ChallengeStatusAwaitingVotes has a verdict and an open voting window.
	ChallengeStatusAwaitingVotes ChallengeStatus = "awaiting_votes"
	ChallengeStatusResolved      ChallengeStatus = "resolved"
)

func ValidChallengeStatus(s string) bool {
	switch ChallengeStatus(s) {
	case ChallengeStatusPending, ChallengeStatusAwaitingVotes, ChallengeStatusResolved:
		return true
	}
	return false
}

type Challenge struct {
	ID               uuid.UUID       `json:"id"`
	PostID           uuid.UUID       `json:"post_id"`
	ChallengerID     uuid.UUID       `json:"challenger_id"`
	StakeAmount      decimal.Decimal `json:"stake_amount"`
	Reason           string          `json:"reason"`
	Status           ChallengeStatus `json:"status"`
	AutomatedVerdict *bool           `json:"automated_verdict,omitempty"`
	Confidence       *int            `json:"confidence,omitempty"`
	VerdictAt        *time.Time      `json:"verdict_at,omitempty"`
	VotingClosesAt   *time.Time      `json:"voting_closes_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
}

// Active reports whether the challenge still blocks a second challenge by
// the same challenger on the same post.
func (c *Challenge) Active() bool {
	return c.Status != ChallengeStatusResolved
}

// VotingClosed reports whether the voting window has elapsed at now.
func (c *Challenge) VotingClosed(now time.Time) bool {
	return c.VotingClosesAt != nil && !now.Before(*c.VotingClosesAt)
}
