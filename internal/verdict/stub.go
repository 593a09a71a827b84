package verdict

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
)

// StubProvider is a deterministic stand-in for a real model. It does not
// judge truth. The post is upheld unless the challenge reason is longer
// than the claim itself, and the confidence is a hash of both texts in
// the range 50-90. Use it for local runs and demos only.
type StubProvider struct{}

func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (p *StubProvider) Evaluate(_ context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	claim := strings.TrimSpace(req.PostContent)
	reason := strings.TrimSpace(req.ChallengeReason)

	h := fnv.New32a()
	_, _ = h.Write([]byte(claim))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(reason))

	return &domain.Evaluation{
		Verdict:    len(reason) <= len(claim),
		Confidence: 50 + int(h.Sum32()%41),
		Rationale:  "stub heuristic, not a real evaluation",
	}, nil
}
