package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ClientStore interface {
	Create(ctx context.Context, c *Client) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Client, error)
}

// AccountStore reads account rows. Balance and reputation are only written
// through Journal.Commit.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// ListActive pages active accounts ordered by id, starting after afterID.
	ListActive(ctx context.Context, afterID uuid.UUID, limit int) ([]Account, error)
}

type PostStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*StakePost, error)
	ListByStatusBefore(ctx context.Context, status PostStatus, before time.Time, limit int) ([]StakePost, error)
	ListSupports(ctx context.Context, postID uuid.UUID) ([]SupportStake, error)
}

type ChallengeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Challenge, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]Challenge, error)
	ListByChallenger(ctx context.Context, challengerID uuid.UUID) ([]Challenge, error)
	HasActive(ctx context.Context, postID, challengerID uuid.UUID) (bool, error)
	ListByStatus(ctx context.Context, status ChallengeStatus, limit int) ([]Challenge, error)
	// ListDue returns awaiting_votes challenges whose window closed at or before now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Challenge, error)
}

type VoteStore interface {
	Get(ctx context.Context, challengeID, voterID uuid.UUID) (*Vote, error)
	ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]Vote, error)
	Tally(ctx context.Context, challengeID uuid.UUID) (VoteTally, error)
}

type ResolutionStore interface {
	GetByChallengeID(ctx context.Context, challengeID uuid.UUID) (*Resolution, error)
}

type EntryStore interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]LedgerEntry, error)
	ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]LedgerEntry, error)
	ListByPost(ctx context.Context, postID uuid.UUID) ([]LedgerEntry, error)
}

// EventStore is the read side of the transactional outbox.
type EventStore interface {
	ListUndelivered(ctx context.Context, limit int) ([]DomainEvent, error)
	MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) error
	ListAfter(ctx context.Context, afterSeq int64, limit int) ([]DomainEvent, error)
}

// Journal is the single write path for ledger entries, projections and the
// records whose status changes with them.
type Journal interface {
	Commit(ctx context.Context, c *Commit) error
	HasKey(ctx context.Context, key string) (bool, error)
}
