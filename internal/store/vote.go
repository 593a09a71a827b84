package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VoteStore struct {
	db *pgxpool.Pool
}

func NewVoteStore(db *pgxpool.Pool) *VoteStore {
	return &VoteStore{db: db}
}

func (s *VoteStore) Get(ctx context.Context, challengeID, voterID uuid.UUID) (*domain.Vote, error) {
	v := &domain.Vote{}
	err := s.db.QueryRow(ctx,
		`SELECT id, challenge_id, voter_id, agree, weight, created_at
		 FROM votes WHERE challenge_id = $1 AND voter_id = $2`,
		challengeID, voterID,
	).Scan(&v.ID, &v.ChallengeID, &v.VoterID, &v.Agree, &v.Weight, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *VoteStore) ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.Vote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, challenge_id, voter_id, agree, weight, created_at
		 FROM votes WHERE challenge_id = $1
		 ORDER BY created_at`,
		challengeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.ID, &v.ChallengeID, &v.VoterID, &v.Agree, &v.Weight, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func (s *VoteStore) Tally(ctx context.Context, challengeID uuid.UUID) (domain.VoteTally, error) {
	var t domain.VoteTally
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(weight) FILTER (WHERE agree), 0),
		        COALESCE(SUM(weight) FILTER (WHERE NOT agree), 0)
		 FROM votes WHERE challenge_id = $1`,
		challengeID,
	).Scan(&t.Agree, &t.Disagree)
	return t, err
}
