package store

import (
	"context"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `seq, id, account_id, amount, kind, post_id, challenge_id, external_ref, created_at`

// EntryStore reads the append-only ledger. Entries are only written by the
// journal.
type EntryStore struct {
	db *pgxpool.Pool
}

func NewEntryStore(db *pgxpool.Pool) *EntryStore {
	return &EntryStore{db: db}
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind string
		if err := rows.Scan(&e.Seq, &e.ID, &e.AccountID, &e.Amount, &kind,
			&e.PostID, &e.ChallengeID, &e.ExternalRef, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListByAccount returns newest entries first. A zero limit returns all.
func (s *EntryStore) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE account_id = $1
		 ORDER BY seq DESC
		 LIMIT NULLIF($2, 0)`,
		accountID, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *EntryStore) ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE challenge_id = $1 ORDER BY seq`,
		challengeID,
	)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *EntryStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE post_id = $1 ORDER BY seq`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}
