package verdict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
)

const (
	openAIChatURL   = "https://api.openai.com/v1/chat/completions"
	openAIModel     = "gpt-4o-mini"
	cerebrasChatURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel   = "llama-3.3-70b"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	name       string
	apiKey     string
	url        string
	model      string
	httpClient *http.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		name:       "openai",
		apiKey:     apiKey,
		url:        openAIChatURL,
		model:      openAIModel,
		httpClient: &http.Client{},
	}
}

// Cerebras uses the OpenAI request/response format.
func NewCerebrasProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		name:       "cerebras",
		apiKey:     apiKey,
		url:        cerebrasChatURL,
		model:      cerebrasModel,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []chatMessage, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s response: %w", p.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s API returned status %d: %s", p.name, resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal %s response: %w", p.name, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s API error: %s", p.name, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s API returned no choices", p.name)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.Evaluation, error) {
	messages := []chatMessage{
		{Role: "user", Content: fmt.Sprintf(evaluatePrompt, req.PostContent, req.ChallengeReason)},
	}
	result, err := p.complete(ctx, messages, 0.1)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return parseEvaluation(result)
}
