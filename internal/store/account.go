package store

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, external_address, balance, reputation, total_staked,
	successful_stake_count, failed_stake_count, external_synced, active, version,
	created_at, updated_at`

type AccountStore struct {
	db *pgxpool.Pool
}

func NewAccountStore(db *pgxpool.Pool) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	var address *string
	err := row.Scan(&a.ID, &address, &a.Balance, &a.Reputation, &a.TotalStaked,
		&a.SuccessfulStakeCount, &a.FailedStakeCount, &a.ExternalSynced, &a.Active, &a.Version,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ExternalAddress = derefString(address)
	return a, nil
}

// Create inserts a new account at version 1. A taken external address is
// ErrConflict.
func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO accounts (id, external_address, balance, reputation, total_staked,
		     successful_stake_count, failed_stake_count, external_synced, active, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		 RETURNING version, created_at, updated_at`,
		a.ID, nullString(a.ExternalAddress), a.Balance, a.Reputation, a.TotalStaked,
		a.SuccessfulStakeCount, a.FailedStakeCount, a.ExternalSynced, a.Active,
	).Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AccountStore) ListActive(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Account, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE active AND id > $1
		 ORDER BY id
		 LIMIT NULLIF($2, 0)`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
