package store

import (
	"context"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `seq, id, type, aggregate_id, payload, created_at, delivered_at`

// EventStore is the read side of the domain_events outbox.
type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

func collectEvents(rows pgx.Rows) ([]domain.DomainEvent, error) {
	defer rows.Close()
	var events []domain.DomainEvent
	for rows.Next() {
		var e domain.DomainEvent
		var eventType string
		if err := rows.Scan(&e.Seq, &e.ID, &eventType, &e.AggregateID, &e.Payload,
			&e.CreatedAt, &e.DeliveredAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *EventStore) ListUndelivered(ctx context.Context, limit int) ([]domain.DomainEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM domain_events
		 WHERE delivered_at IS NULL
		 ORDER BY seq
		 LIMIT NULLIF($1, 0)`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

func (s *EventStore) MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE domain_events SET delivered_at = $2
		 WHERE id = ANY($1) AND delivered_at IS NULL`,
		ids, at,
	)
	return err
}

func (s *EventStore) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domain.DomainEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM domain_events
		 WHERE seq > $1
		 ORDER BY seq
		 LIMIT NULLIF($2, 0)`,
		afterSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}
