package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReputationPerVoteWeight is the reputation needed for each unit of vote weight.
const ReputationPerVoteWeight = 100

type Account struct {
	ID                   uuid.UUID       `json:"id"`
	ExternalAddress      string          `json:"external_address,omitempty"`
	Balance              decimal.Decimal `json:"balance"`
	Reputation           int             `json:"reputation"`
	TotalStaked          decimal.Decimal `json:"total_staked"`
	SuccessfulStakeCount int             `json:"successful_stake_count"`
	FailedStakeCount     int             `json:"failed_stake_count"`
	// ExternalSynced is the highest external balance ever credited through
	// reconciliation. Only observations above it produce new entries.
	ExternalSynced decimal.Decimal `json:"external_synced"`
	Active         bool            `json:"active"`
	Version        int64           `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// VoteWeight is max(1, floor(reputation / 100)).
func (a *Account) VoteWeight() int {
	w := a.Reputation / ReputationPerVoteWeight
	if w < 1 {
		return 1
	}
	return w
}

// ClampReputation bounds r to [min, max].
func ClampReputation(r, min, max int) int {
	if r < min {
		return min
	}
	if r > max {
		return max
	}
	return r
}
