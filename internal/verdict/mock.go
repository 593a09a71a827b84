package verdict

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/truthstake/internal/domain"
)

// MockProvider is a configurable verdict provider for testing.
// Set the response fields to control what Evaluate returns.
type MockProvider struct {
	mu            sync.Mutex
	EvaluateResp  *domain.Evaluation
	EvaluateError error

	// Call tracking for assertions
	EvaluateCalls []domain.EvaluationRequest
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		EvaluateResp: &domain.Evaluation{Verdict: true, Confidence: 90, Rationale: "mock"},
	}
}

func (m *MockProvider) Evaluate(_ context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EvaluateCalls = append(m.EvaluateCalls, req)
	if m.EvaluateError != nil {
		return nil, m.EvaluateError
	}
	out := *m.EvaluateResp
	return &out, nil
}

// Calls returns how many times Evaluate ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EvaluateCalls)
}

// SetResponse swaps the canned evaluation.
func (m *MockProvider) SetResponse(e *domain.Evaluation, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EvaluateResp = e
	m.EvaluateError = err
}
