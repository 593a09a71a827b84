package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/ledger"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultEntryLimit = 20
	MaxEntryLimit     = 500
)

type AccountService struct {
	ledger     *ledger.Ledger
	entryStore domain.EntryStore
	cfg        EngineConfig
	logger     *zap.Logger
}

func NewAccountService(l *ledger.Ledger, es domain.EntryStore, cfg EngineConfig, logger *zap.Logger) *AccountService {
	return &AccountService{
		ledger:     l,
		entryStore: es,
		cfg:        cfg,
		logger:     logger,
	}
}

// AccountState is the projection plus the most recent entries, newest first.
type AccountState struct {
	Account       domain.Account       `json:"account"`
	VoteWeight    int                  `json:"vote_weight"`
	RecentEntries []domain.LedgerEntry `json:"recent_entries"`
}

// Register creates an account with the initial reputation and no balance.
// Funding arrives through reconciliation.
func (s *AccountService) Register(ctx context.Context, externalAddress string) (*domain.Account, error) {
	a := &domain.Account{
		ExternalAddress: strings.TrimSpace(externalAddress),
		Balance:         decimal.Zero,
		TotalStaked:     decimal.Zero,
		ExternalSynced:  decimal.Zero,
		Reputation: domain.ClampReputation(s.cfg.ReputationInitial,
			s.cfg.ReputationMin, s.cfg.ReputationMax),
		Active: true,
	}
	if err := s.ledger.Register(ctx, a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.ErrAddressInUse
		}
		return nil, fmt.Errorf("register account: %w", err)
	}
	s.logger.Info("account registered", zap.String("account_id", a.ID.String()))
	return a, nil
}

func (s *AccountService) GetState(ctx context.Context, id uuid.UUID) (*AccountState, error) {
	a, err := s.ledger.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.entryStore.ListByAccount(ctx, id, DefaultEntryLimit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return &AccountState{Account: *a, VoteWeight: a.VoteWeight(), RecentEntries: entries}, nil
}

// Entries returns up to limit entries for an account, newest first.
func (s *AccountService) Entries(ctx context.Context, id uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	if _, err := s.ledger.Account(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	if limit > MaxEntryLimit {
		limit = MaxEntryLimit
	}
	entries, err := s.entryStore.ListByAccount(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return entries, nil
}

// Deactivate stops an account from staking, challenging and voting. It
// still receives settlement credits.
func (s *AccountService) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var out domain.Account
	_, err := s.ledger.Update(ctx, []uuid.UUID{id}, func(tx *ledger.Tx) error {
		if err := tx.SetActive(id, false); err != nil {
			return err
		}
		a, err := tx.Account(id)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account deactivated", zap.String("account_id", id.String()))
	return &out, nil
}
