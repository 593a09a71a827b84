package extledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/shopspring/decimal"
)

// Simulated is an in-memory external ledger. Balances are whatever
// SetBalance last stored and unknown addresses read as zero. Intent
// references are fabricated ("sim-<n>"). Selected by configuration only.
type Simulated struct {
	mu          sync.Mutex
	balances    map[string]decimal.Decimal
	intents     []domain.TransferIntent
	refs        map[string]string
	seq         int
	unavailable bool
}

func NewSimulated() *Simulated {
	return &Simulated{
		balances: make(map[string]decimal.Decimal),
		refs:     make(map[string]string),
	}
}

func (s *Simulated) SetBalance(address string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[address] = amount
}

// SetUnavailable makes every call fail with ErrExternalLedgerUnavailable.
func (s *Simulated) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

// Intents returns the intents submitted so far, in order.
func (s *Simulated) Intents() []domain.TransferIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TransferIntent, len(s.intents))
	copy(out, s.intents)
	return out
}

func (s *Simulated) GetExternalBalance(_ context.Context, address string) (*domain.ExternalBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return nil, domain.ErrExternalLedgerUnavailable
	}
	s.seq++
	return &domain.ExternalBalance{
		Amount:     s.balances[address],
		Reference:  fmt.Sprintf("sim-read-%d", s.seq),
		ObservedAt: time.Now(),
	}, nil
}

// SubmitValueTransferIntent records the intent. Resubmitting the same
// idempotency key returns the original reference.
func (s *Simulated) SubmitValueTransferIntent(_ context.Context, intent domain.TransferIntent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return "", domain.ErrExternalLedgerUnavailable
	}
	if ref, ok := s.refs[intent.IdempotencyKey]; ok {
		return ref, nil
	}
	s.seq++
	ref := fmt.Sprintf("sim-%d", s.seq)
	s.refs[intent.IdempotencyKey] = ref
	s.intents = append(s.intents, intent)
	return ref, nil
}
