package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalBalance is one best-effort sample of an address on the external
// ledger. A zero amount means unknown or unfunded, never "money vanished".
type ExternalBalance struct {
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

// TransferIntent records that value moved inside the engine so the external
// ledger can mirror it. Submission is fire-and-forget.
type TransferIntent struct {
	IdempotencyKey string          `json:"idempotency_key"`
	ChallengeID    uuid.UUID       `json:"challenge_id"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	Amount         decimal.Decimal `json:"amount"`
}

type ExternalLedger interface {
	GetExternalBalance(ctx context.Context, address string) (*ExternalBalance, error)
	SubmitValueTransferIntent(ctx context.Context, intent TransferIntent) (string, error)
}

type EvaluationRequest struct {
	PostContent     string
	ChallengeReason string
}

// Evaluation is an automated verdict: true upholds the post.
type Evaluation struct {
	Verdict    bool   `json:"verdict"`
	Confidence int    `json:"confidence"`
	Rationale  string `json:"rationale,omitempty"`
}

type VerdictProvider interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*Evaluation, error)
}
