package domain

import (
	"time"

	"github.com/google/uuid"
)

// Resolution is the immutable outcome of a challenge.
type Resolution struct {
	ChallengeID      uuid.UUID `json:"challenge_id"`
	Verdict          bool      `json:"verdict"`
	AutomatedVerdict bool      `json:"automated_verdict"`
	Confidence       int       `json:"confidence"`
	VotesFor         int       `json:"votes_for"`
	VotesAgainst     int       `json:"votes_against"`
	Overridden       bool      `json:"overridden"`
	Policy           string    `json:"policy"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Vote agrees or disagrees with the automated verdict of a challenge. Weight
// is fixed when the vote is cast.
type Vote struct {
	ID          uuid.UUID `json:"id"`
	ChallengeID uuid.UUID `json:"challenge_id"`
	VoterID     uuid.UUID `json:"voter_id"`
	Agree       bool      `json:"agree"`
	Weight      int       `json:"weight"`
	CreatedAt   time.Time `json:"created_at"`
}

// VoteTally holds reputation-weighted sums for one challenge.
type VoteTally struct {
	Agree    int `json:"agree"`
	Disagree int `json:"disagree"`
}

func (t VoteTally) Total() int {
	return t.Agree + t.Disagree
}
