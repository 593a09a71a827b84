package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PostStatus string

const (
	PostStatusPending       PostStatus = "pending"
	PostStatusVerified      PostStatus = "verified"
	PostStatusDisputed      PostStatus = "disputed"
	PostStatusResolvedTrue  PostStatus = "resolved_true"
	PostStatusResolvedFalse PostStatus = "resolved_false"
)

func ValidPostStatus(s string) bool {
	switch PostStatus(s) {
	case PostStatusPending, PostStatusVerified, PostStatusDisputed,
		PostStatusResolvedTrue, PostStatusResolvedFalse:
		return true
	}
	return false
}

// CanTransition reports whether a post may move from s to next. Verified
// only reopens to Disputed when allowReopen is set.
func (s PostStatus) CanTransition(next PostStatus, allowReopen bool) bool {
	switch s {
	case PostStatusPending:
		return next == PostStatusVerified || next == PostStatusDisputed
	case PostStatusVerified:
		return allowReopen && next == PostStatusDisputed
	case PostStatusDisputed:
		return next == PostStatusResolvedTrue || next == PostStatusResolvedFalse
	}
	return false
}

// AcceptsSupport reports whether support stakes may still be added.
func (s PostStatus) AcceptsSupport() bool {
	return s == PostStatusPending || s == PostStatusVerified
}

// ResolvedStatus maps a final verdict to the post's terminal status.
func ResolvedStatus(verdict bool) PostStatus {
	if verdict {
		return PostStatusResolvedTrue
	}
	return PostStatusResolvedFalse
}

type StakePost struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	Content      string          `json:"content"`
	StakeAmount  decimal.Decimal `json:"stake_amount"`
	SupportTotal decimal.Decimal `json:"support_total"`
	Status       PostStatus      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type SupportStake struct {
	ID        uuid.UUID       `json:"id"`
	PostID    uuid.UUID       `json:"post_id"`
	AccountID uuid.UUID       `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
