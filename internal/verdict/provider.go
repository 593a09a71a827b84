// Package verdict holds the automated verdict providers. Each provider
// judges one challenge: does the post's claim survive the challenger's
// reason?
package verdict

import (
	"fmt"

	"github.com/Harshitk-cp/truthstake/internal/domain"
)

// Provider constants
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderCerebras  = "cerebras"
	ProviderGemini    = "gemini"
	ProviderStub      = "stub"
	ProviderMock      = "mock"
)

// NewProvider creates a verdict provider by name.
// Returns an error if the provider is unknown or the API key is empty (except for stub and mock).
func NewProvider(provider, apiKey string) (domain.VerdictProvider, error) {
	switch provider {
	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicProvider(apiKey), nil

	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIProvider(apiKey), nil

	case ProviderCerebras:
		if apiKey == "" {
			return nil, fmt.Errorf("CEREBRAS_API_KEY is required for Cerebras provider")
		}
		return NewCerebrasProvider(apiKey), nil

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiProvider(apiKey), nil

	case ProviderStub:
		return NewStubProvider(), nil

	case ProviderMock:
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unknown verdict provider: %s (valid options: anthropic, openai, cerebras, gemini, stub, mock)", provider)
	}
}
