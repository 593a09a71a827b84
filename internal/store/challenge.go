package store

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const challengeColumns = `id, post_id, challenger_id, stake_amount, reason, status,
	automated_verdict, confidence, verdict_at, voting_closes_at, created_at, resolved_at`

type ChallengeStore struct {
	db *pgxpool.Pool
}

func NewChallengeStore(db *pgxpool.Pool) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(row pgx.Row) (*domain.Challenge, error) {
	c := &domain.Challenge{}
	var status string
	err := row.Scan(&c.ID, &c.PostID, &c.ChallengerID, &c.StakeAmount, &c.Reason, &status,
		&c.AutomatedVerdict, &c.Confidence, &c.VerdictAt, &c.VotingClosesAt, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ChallengeStatus(status)
	return c, nil
}

func (s *ChallengeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	c, err := scanChallenge(s.db.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ChallengeStore) list(ctx context.Context, where string, args ...any) ([]domain.Challenge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (s *ChallengeStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.Challenge, error) {
	return s.list(ctx, `post_id = $1 ORDER BY created_at`, postID)
}

func (s *ChallengeStore) ListByChallenger(ctx context.Context, challengerID uuid.UUID) ([]domain.Challenge, error) {
	return s.list(ctx, `challenger_id = $1 ORDER BY created_at`, challengerID)
}

func (s *ChallengeStore) HasActive(ctx context.Context, postID, challengerID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM challenges
		     WHERE post_id = $1 AND challenger_id = $2 AND status <> 'resolved'
		 )`,
		postID, challengerID,
	).Scan(&exists)
	return exists, err
}

func (s *ChallengeStore) ListByStatus(ctx context.Context, status domain.ChallengeStatus, limit int) ([]domain.Challenge, error) {
	return s.list(ctx, `status = $1 ORDER BY created_at LIMIT NULLIF($2, 0)`, string(status), limit)
}

func (s *ChallengeStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Challenge, error) {
	return s.list(ctx,
		`status = 'awaiting_votes' AND voting_closes_at <= $1
		 ORDER BY voting_closes_at LIMIT NULLIF($2, 0)`,
		now, limit)
}
