package store

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal writes a domain.Commit in one Postgres transaction. Account rows
// carry an optimistic version: an UPDATE that matches no row means another
// writer got there first and the whole commit rolls back.
type Journal struct {
	db *pgxpool.Pool
}

func NewJournal(db *pgxpool.Pool) *Journal {
	return &Journal{db: db}
}

func (j *Journal) HasKey(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := j.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM commit_keys WHERE key = $1)`, key,
	).Scan(&exists)
	return exists, err
}

func (j *Journal) Commit(ctx context.Context, c *domain.Commit) error {
	return pgx.BeginFunc(ctx, j.db, func(tx pgx.Tx) error {
		if c.Key != "" {
			if _, err := tx.Exec(ctx, `INSERT INTO commit_keys (key) VALUES ($1)`, c.Key); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateKey
				}
				return fmt.Errorf("insert commit key: %w", err)
			}
		}
		if err := writeAccounts(ctx, tx, c.Accounts); err != nil {
			return err
		}
		if err := writePosts(ctx, tx, c.Posts); err != nil {
			return err
		}
		for _, st := range c.Supports {
			if _, err := tx.Exec(ctx,
				`INSERT INTO support_stakes (id, post_id, account_id, amount, created_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				st.ID, st.PostID, st.AccountID, st.Amount, st.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert support stake: %w", err)
			}
		}
		if err := writeChallenges(ctx, tx, c.Challenges); err != nil {
			return err
		}
		for _, v := range c.Votes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO votes (id, challenge_id, voter_id, agree, weight, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				v.ID, v.ChallengeID, v.VoterID, v.Agree, v.Weight, v.CreatedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return fmt.Errorf("insert vote: %w", err)
			}
		}
		if r := c.Resolution; r != nil {
			if _, err := tx.Exec(ctx,
				`INSERT INTO resolutions (challenge_id, verdict, automated_verdict, confidence,
				     votes_for, votes_against, overridden, policy, notes, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				r.ChallengeID, r.Verdict, r.AutomatedVerdict, r.Confidence,
				r.VotesFor, r.VotesAgainst, r.Overridden, r.Policy, r.Notes, r.CreatedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return fmt.Errorf("insert resolution: %w", err)
			}
		}
		for i := range c.Entries {
			e := &c.Entries[i]
			if err := tx.QueryRow(ctx,
				`INSERT INTO ledger_entries (id, account_id, amount, kind, post_id, challenge_id, external_ref, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 RETURNING seq`,
				e.ID, e.AccountID, e.Amount, string(e.Kind), e.PostID, e.ChallengeID, e.ExternalRef, e.CreatedAt,
			).Scan(&e.Seq); err != nil {
				return fmt.Errorf("insert ledger entry: %w", err)
			}
		}
		for i := range c.Events {
			evt := &c.Events[i]
			payload := evt.Payload
			if payload == nil {
				payload = map[string]any{}
			}
			if err := tx.QueryRow(ctx,
				`INSERT INTO domain_events (id, type, aggregate_id, payload, created_at)
				 VALUES ($1, $2, $3, $4, $5)
				 RETURNING seq`,
				evt.ID, string(evt.Type), evt.AggregateID, payload, evt.CreatedAt,
			).Scan(&evt.Seq); err != nil {
				return fmt.Errorf("insert domain event: %w", err)
			}
		}
		return nil
	})
}

func writeAccounts(ctx context.Context, tx pgx.Tx, accounts []domain.Account) error {
	for _, a := range accounts {
		tag, err := tx.Exec(ctx,
			`UPDATE accounts SET balance = $3, reputation = $4, total_staked = $5,
			     successful_stake_count = $6, failed_stake_count = $7, external_synced = $8,
			     active = $9, version = version + 1, updated_at = now()
			 WHERE id = $1 AND version = $2`,
			a.ID, a.Version, a.Balance, a.Reputation, a.TotalStaked,
			a.SuccessfulStakeCount, a.FailedStakeCount, a.ExternalSynced, a.Active,
		)
		if err != nil {
			return fmt.Errorf("update account %s: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check account %s: %w", a.ID, err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStaleAccount
		}
	}
	return nil
}

func writePosts(ctx context.Context, tx pgx.Tx, posts []domain.StakePost) error {
	for _, p := range posts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO posts (id, owner_id, content, stake_amount, support_total, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE
			 SET support_total = EXCLUDED.support_total,
			     status = EXCLUDED.status,
			     updated_at = EXCLUDED.updated_at`,
			p.ID, p.OwnerID, p.Content, p.StakeAmount, p.SupportTotal, string(p.Status), p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("write post %s: %w", p.ID, err)
		}
	}
	return nil
}

func writeChallenges(ctx context.Context, tx pgx.Tx, challenges []domain.Challenge) error {
	for _, ch := range challenges {
		_, err := tx.Exec(ctx,
			`INSERT INTO challenges (id, post_id, challenger_id, stake_amount, reason, status,
			     automated_verdict, confidence, verdict_at, voting_closes_at, created_at, resolved_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (id) DO UPDATE
			 SET status = EXCLUDED.status,
			     automated_verdict = EXCLUDED.automated_verdict,
			     confidence = EXCLUDED.confidence,
			     verdict_at = EXCLUDED.verdict_at,
			     voting_closes_at = EXCLUDED.voting_closes_at,
			     resolved_at = EXCLUDED.resolved_at`,
			ch.ID, ch.PostID, ch.ChallengerID, ch.StakeAmount, ch.Reason, string(ch.Status),
			ch.AutomatedVerdict, ch.Confidence, ch.VerdictAt, ch.VotingClosesAt, ch.CreatedAt, ch.ResolvedAt,
		)
		if err != nil {
			if isUniqueViolation(err) && constraintOf(err) == "challenges_active_idx" {
				return ErrConflict
			}
			return fmt.Errorf("write challenge %s: %w", ch.ID, err)
		}
	}
	return nil
}

var _ domain.Journal = (*Journal)(nil)
