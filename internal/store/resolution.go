package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResolutionStore struct {
	db *pgxpool.Pool
}

func NewResolutionStore(db *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{db: db}
}

func (s *ResolutionStore) GetByChallengeID(ctx context.Context, challengeID uuid.UUID) (*domain.Resolution, error) {
	r := &domain.Resolution{}
	err := s.db.QueryRow(ctx,
		`SELECT challenge_id, verdict, automated_verdict, confidence, votes_for, votes_against,
		        overridden, policy, notes, created_at
		 FROM resolutions WHERE challenge_id = $1`,
		challengeID,
	).Scan(&r.ChallengeID, &r.Verdict, &r.AutomatedVerdict, &r.Confidence, &r.VotesFor, &r.VotesAgainst,
		&r.Overridden, &r.Policy, &r.Notes, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}
