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

const postColumns = `id, owner_id, content, stake_amount, support_total, status, created_at, updated_at`

type PostStore struct {
	db *pgxpool.Pool
}

func NewPostStore(db *pgxpool.Pool) *PostStore {
	return &PostStore{db: db}
}

func scanPost(row pgx.Row) (*domain.StakePost, error) {
	p := &domain.StakePost{}
	var status string
	err := row.Scan(&p.ID, &p.OwnerID, &p.Content, &p.StakeAmount, &p.SupportTotal,
		&status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PostStatus(status)
	return p, nil
}

func (s *PostStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.StakePost, error) {
	p, err := scanPost(s.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PostStore) ListByStatusBefore(ctx context.Context, status domain.PostStatus, before time.Time, limit int) ([]domain.StakePost, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at
		 LIMIT NULLIF($3, 0)`,
		string(status), before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.StakePost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (s *PostStore) ListSupports(ctx context.Context, postID uuid.UUID) ([]domain.SupportStake, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, post_id, account_id, amount, created_at
		 FROM support_stakes WHERE post_id = $1
		 ORDER BY created_at`,
		postID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var supports []domain.SupportStake
	for rows.Next() {
		var st domain.SupportStake
		if err := rows.Scan(&st.ID, &st.PostID, &st.AccountID, &st.Amount, &st.CreatedAt); err != nil {
			return nil, err
		}
		supports = append(supports, st)
	}
	return supports, rows.Err()
}
