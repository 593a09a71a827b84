package verdict

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		key      string
		wantErr  bool
	}{
		{ProviderAnthropic, "k", false},
		{ProviderAnthropic, "", true},
		{ProviderOpenAI, "k", false},
		{ProviderOpenAI, "", true},
		{ProviderCerebras, "k", false},
		{ProviderCerebras, "", true},
		{ProviderGemini, "k", false},
		{ProviderGemini, "", true},
		{ProviderStub, "", false},
		{ProviderMock, "", false},
		{"oracle", "k", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.key, func(t *testing.T) {
			p, err := NewProvider(tt.provider, tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestParseEvaluation(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		verdict    bool
		confidence int
		wantErr    bool
	}{
		{"plain", `{"verdict": true, "confidence": 82, "rationale": "ok"}`, true, 82, false},
		{"fenced", "```json\n{\"verdict\": false, \"confidence\": 64}\n```", false, 64, false},
		{"clamped high", `{"verdict": true, "confidence": 140}`, true, 100, false},
		{"clamped low", `{"verdict": false, "confidence": -3}`, false, 0, false},
		{"missing verdict", `{"confidence": 50}`, false, 0, true},
		{"garbage", `the claim is true`, false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEvaluation(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, got.Verdict)
			assert.Equal(t, tt.confidence, got.Confidence)
		})
	}
}

func TestStubProvider_Deterministic(t *testing.T) {
	p := NewStubProvider()
	req := domain.EvaluationRequest{PostContent: "Water boils at 100C at sea level", ChallengeReason: "wrong"}

	a, err := p.Evaluate(context.Background(), req)
	require.NoError(t, err)
	b, err := p.Evaluate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, a.Verdict)
	assert.GreaterOrEqual(t, a.Confidence, 50)
	assert.LessOrEqual(t, a.Confidence, 90)

	long, err := p.Evaluate(context.Background(), domain.EvaluationRequest{
		PostContent:     "short",
		ChallengeReason: "a much longer and more detailed rebuttal",
	})
	require.NoError(t, err)
	assert.False(t, long.Verdict)
}

func TestOpenAIProvider_Evaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "the sky is green")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"verdict": false, "confidence": 97}`}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key")
	p.url = srv.URL
	got, err := p.Evaluate(context.Background(), domain.EvaluationRequest{
		PostContent:     "the sky is green",
		ChallengeReason: "it is blue",
	})
	require.NoError(t, err)
	assert.False(t, got.Verdict)
	assert.Equal(t, 97, got.Confidence)
}

func TestAnthropicProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key")
	p.url = srv.URL
	_, err := p.Evaluate(context.Background(), domain.EvaluationRequest{PostContent: "x", ChallengeReason: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiProvider_Evaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Contains(t, req.Contents[0].Parts[0].Text, "it is blue")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "```json\n{\"verdict\": true, \"confidence\": 61}\n```"},
				}}},
			},
		})
	}))
	defer srv.Close()

	p := NewGeminiProvider("test-key")
	p.url = srv.URL
	got, err := p.Evaluate(context.Background(), domain.EvaluationRequest{
		PostContent:     "the sky is blue",
		ChallengeReason: "it is blue only by day",
	})
	require.NoError(t, err)
	assert.True(t, got.Verdict)
	assert.Equal(t, 61, got.Confidence)
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider()
	got, err := m.Evaluate(context.Background(), domain.EvaluationRequest{PostContent: "c"})
	require.NoError(t, err)
	assert.True(t, got.Verdict)
	assert.Equal(t, 1, m.Calls())

	m.SetResponse(nil, assert.AnError)
	_, err = m.Evaluate(context.Background(), domain.EvaluationRequest{})
	assert.ErrorIs(t, err, assert.AnError)
}
