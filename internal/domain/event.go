package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPostStaked        EventType = "post.staked"
	EventChallengeCreated  EventType = "challenge.created"
	EventChallengeResolved EventType = "challenge.resolved"
	EventBalanceReconciled EventType = "balance.reconciled"
)

func ValidEventType(t string) bool {
	switch EventType(t) {
	case EventPostStaked, EventChallengeCreated, EventChallengeResolved, EventBalanceReconciled:
		return true
	}
	return false
}

// DomainEvent is written in the same commit as the state change it
// describes and delivered at least once. Consumers dedupe on ID.
type DomainEvent struct {
	ID          uuid.UUID      `json:"id"`
	Seq         int64          `json:"seq"`
	Type        EventType      `json:"type"`
	AggregateID uuid.UUID      `json:"aggregate_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
}
