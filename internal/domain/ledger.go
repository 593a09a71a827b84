package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryKindStake        EntryKind = "stake"
	EntryKindChallenge    EntryKind = "challenge"
	EntryKindReward       EntryKind = "reward"
	EntryKindPenalty      EntryKind = "penalty"
	EntryKindRefund       EntryKind = "refund"
	EntryKindExternalSync EntryKind = "external_sync"
)

func ValidEntryKind(k string) bool {
	switch EntryKind(k) {
	case EntryKindStake, EntryKindChallenge, EntryKindReward, EntryKindPenalty,
		EntryKindRefund, EntryKindExternalSync:
		return true
	}
	return false
}

// Commits reports whether a debit of this kind puts value at risk and so
// counts toward an account's total staked.
func (k EntryKind) Commits() bool {
	return k == EntryKindStake || k == EntryKindChallenge
}

// EntryRef links a ledger entry to the record that caused it.
type EntryRef struct {
	PostID      *uuid.UUID
	ChallengeID *uuid.UUID
	ExternalRef string
}

// LedgerEntry is an append-only signed movement on one account. Seq is
// assigned by the journal and orders entries globally.
type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	Seq         int64           `json:"seq"`
	AccountID   uuid.UUID       `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        EntryKind       `json:"kind"`
	PostID      *uuid.UUID      `json:"post_id,omitempty"`
	ChallengeID *uuid.UUID      `json:"challenge_id,omitempty"`
	ExternalRef string          `json:"external_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Commit is one atomic write to the system of record. The journal applies
// all of it or none of it.
type Commit struct {
	// Key makes the commit idempotent; a second commit with the same key
	// is rejected. Empty means no idempotency key.
	Key string

	Entries    []LedgerEntry
	Accounts   []Account
	Posts      []StakePost
	Supports   []SupportStake
	Challenges []Challenge
	Votes      []Vote
	Resolution *Resolution
	Events     []DomainEvent
}

func (c *Commit) Empty() bool {
	return len(c.Entries) == 0 && len(c.Accounts) == 0 && len(c.Posts) == 0 &&
		len(c.Supports) == 0 && len(c.Challenges) == 0 && len(c.Votes) == 0 &&
		c.Resolution == nil && len(c.Events) == 0
}
