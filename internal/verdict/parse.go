package verdict

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
)

// parseEvaluation reads a model reply. Markdown fences are stripped and the
// confidence is clamped to 0-100.
func parseEvaluation(raw string) (*domain.Evaluation, error) {
	result := strings.TrimSpace(raw)
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	var parsed struct {
		Verdict    *bool   `json:"verdict"`
		Confidence float64 `json:"confidence"`
		Rationale  string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		return nil, fmt.Errorf("parse evaluation result: %w (raw: %s)", err, result)
	}
	if parsed.Verdict == nil {
		return nil, fmt.Errorf("evaluation result has no verdict (raw: %s)", result)
	}

	confidence := int(parsed.Confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return &domain.Evaluation{
		Verdict:    *parsed.Verdict,
		Confidence: confidence,
		Rationale:  parsed.Rationale,
	}, nil
}
