package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientStore struct {
	db *pgxpool.Pool
}

func NewClientStore(db *pgxpool.Pool) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) Create(ctx context.Context, c *domain.Client) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO clients (name, api_key_hash) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		c.Name, c.APIKeyHash,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *ClientStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Client, error) {
	c := &domain.Client{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, updated_at
		 FROM clients WHERE api_key_hash = $1`,
		apiKeyHash,
	).Scan(&c.ID, &c.Name, &c.APIKeyHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
