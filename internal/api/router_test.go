package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/extledger"
	"github.com/Harshitk-cp/truthstake/internal/service"
	"github.com/Harshitk-cp/truthstake/internal/store/memstore"
	"github.com/Harshitk-cp/truthstake/internal/verdict"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	app    *App
	srv    *httptest.Server
	ext    *extledger.Simulated
	apiKey string
}

func newTestServer(t *testing.T, configure func(cfg *service.EngineConfig)) *testServer {
	t.Helper()
	cfg := service.DefaultEngineConfig()
	if configure != nil {
		configure(&cfg)
	}
	ext := extledger.NewSimulated()
	app, err := NewApp(MemoryStores(memstore.New()), Options{
		Engine:         cfg,
		External:       ext,
		Verdicts:       verdict.NewStubProvider(),
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, zap.NewNop())
	require.NoError(t, err)

	ts := &testServer{t: t, app: app, srv: httptest.NewServer(app.Router), ext: ext}
	t.Cleanup(func() {
		ts.srv.Close()
		app.Stop()
	})

	var client struct {
		APIKey string `json:"api_key"`
	}
	status := ts.do(http.MethodPost, "/v1/clients", uuid.Nil, map[string]string{"name": "web"}, &client)
	require.Equal(t, http.StatusCreated, status)
	require.True(t, strings.HasPrefix(client.APIKey, "ts_"))
	ts.apiKey = client.APIKey
	return ts
}

// do sends a JSON request acting as account (uuid.Nil for none) and
// decodes the response into out when out is non-nil.
func (ts *testServer) do(method, path string, account uuid.UUID, body, out any) int {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")
	if ts.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+ts.apiKey)
	}
	if account != uuid.Nil {
		req.Header.Set("X-Account-ID", account.String())
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// fund registers an account at address and reconciles amount into it.
func (ts *testServer) fund(address, amount string) uuid.UUID {
	ts.t.Helper()
	var acct domain.Account
	require.Equal(ts.t, http.StatusCreated,
		ts.do(http.MethodPost, "/v1/accounts", uuid.Nil, map[string]string{"external_address": address}, &acct))

	ts.ext.SetBalance(address, decimal.RequireFromString(amount))
	var result struct {
		Credited decimal.Decimal `json:"credited"`
	}
	require.Equal(ts.t, http.StatusOK,
		ts.do(http.MethodPost, "/v1/accounts/"+acct.ID.String()+"/reconcile", uuid.Nil, nil, &result))
	require.True(ts.t, result.Credited.Equal(decimal.RequireFromString(amount)))
	return acct.ID
}

func (ts *testServer) account(id uuid.UUID) domain.Account {
	ts.t.Helper()
	var state struct {
		Account domain.Account `json:"account"`
	}
	require.Equal(ts.t, http.StatusOK, ts.do(http.MethodGet, "/v1/accounts/"+id.String(), uuid.Nil, nil, &state))
	return state.Account
}

type apiError struct {
	Error     string   `json:"error"`
	Kind      string   `json:"kind"`
	Required  string   `json:"required"`
	Available string   `json:"available"`
	Status    string   `json:"status"`
	Expected  []string `json:"expected"`
}

func TestUpheldPostOverHTTP(t *testing.T) {
	ts := newTestServer(t, func(cfg *service.EngineConfig) {
		cfg.VotingWindow = 5 * time.Millisecond
	})
	owner := ts.fund("0xowner", "100")
	challenger := ts.fund("0xchallenger", "50")

	var post domain.StakePost
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/posts", owner,
		map[string]any{"content": "water boils at 100C at sea level", "stake_amount": "20"}, &post))
	assert.Equal(t, domain.PostStatusPending, post.Status)

	var quote service.MinimumQuote
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/posts/"+post.ID.String()+"/minimum-challenge", uuid.Nil, nil, &quote))
	assert.True(t, quote.Minimum.Equal(decimal.NewFromInt(22)), "minimum %s", quote.Minimum)

	var rejected apiError
	status := ts.do(http.MethodPost, "/v1/challenges", challenger,
		map[string]any{"post_id": post.ID, "amount": "21", "reason": "wrong"}, &rejected)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "below_minimum_stake", rejected.Kind)
	assert.Equal(t, "22", rejected.Required)

	var ch domain.Challenge
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/challenges", challenger,
		map[string]any{"post_id": post.ID, "amount": "22", "reason": "wrong"}, &ch))
	assert.Equal(t, domain.ChallengeStatusPending, ch.Status)

	var voting apiError
	status = ts.do(http.MethodPost, "/v1/challenges/"+ch.ID.String()+"/votes", ts.fund("0xvoter", "1"),
		map[string]bool{"agree": true}, &voting)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_challenge_state", voting.Kind)
	assert.Equal(t, "pending", voting.Status)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/challenges/"+ch.ID.String()+"/verdict", uuid.Nil,
		map[string]any{"verdict": true, "confidence": 80}, &ch))
	assert.Equal(t, domain.ChallengeStatusAwaitingVotes, ch.Status)

	time.Sleep(20 * time.Millisecond)

	var res domain.Resolution
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/challenges/"+ch.ID.String()+"/finalize", uuid.Nil, nil, &res))

	var again apiError
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/v1/challenges/"+ch.ID.String()+"/finalize", uuid.Nil, nil, &again))
	assert.Equal(t, "already_resolved", again.Kind)

	a := ts.account(owner)
	b := ts.account(challenger)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(102)), "owner balance %s", a.Balance)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(28)), "challenger balance %s", b.Balance)
	assert.Equal(t, 110, a.Reputation)
	assert.Equal(t, 95, b.Reputation)

	var state struct {
		Post domain.StakePost `json:"post"`
	}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/posts/"+post.ID.String(), uuid.Nil, nil, &state))
	assert.Equal(t, domain.PostStatusResolvedTrue, state.Post.Status)

	var history struct {
		Challenges []domain.Challenge `json:"challenges"`
	}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/accounts/"+challenger.String()+"/challenges", uuid.Nil, nil, &history))
	require.Len(t, history.Challenges, 1)
	assert.Equal(t, domain.ChallengeStatusResolved, history.Challenges[0].Status)

	// The outbox feeds the intent relay once dispatched.
	ts.app.IntentRelay.Start()
	n, err := ts.app.Dispatcher.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	require.Eventually(t, func() bool { return len(ts.ext.Intents()) == 1 }, time.Second, 5*time.Millisecond)
	intent := ts.ext.Intents()[0]
	assert.Equal(t, "0xchallenger", intent.From)
	assert.Equal(t, "0xowner", intent.To)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(22)))

	var page struct {
		Events []domain.DomainEvent `json:"events"`
		Next   int64                `json:"next"`
	}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/events?after=0&limit=100", uuid.Nil, nil, &page))
	require.NotEmpty(t, page.Events)
	assert.Equal(t, domain.EventChallengeResolved, page.Events[len(page.Events)-1].Type)
	assert.Equal(t, page.Events[len(page.Events)-1].Seq, page.Next)
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	owner := ts.fund("0xowner", "10")

	tests := []struct {
		name    string
		method  string
		path    string
		account uuid.UUID
		body    any
		status  int
		kind    string
	}{
		{"post without acting account", http.MethodPost, "/v1/posts", uuid.Nil, map[string]any{"content": "c", "stake_amount": "1"}, http.StatusBadRequest, ""},
		{"post without content", http.MethodPost, "/v1/posts", owner, map[string]any{"content": " ", "stake_amount": "1"}, http.StatusBadRequest, "content_required"},
		{"post over balance", http.MethodPost, "/v1/posts", owner, map[string]any{"content": "c", "stake_amount": "11"}, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"malformed body", http.MethodPost, "/v1/posts", owner, "not an object", http.StatusBadRequest, ""},
		{"unknown post", http.MethodGet, "/v1/posts/" + uuid.NewString(), uuid.Nil, nil, http.StatusNotFound, "not_found"},
		{"bad post id", http.MethodGet, "/v1/posts/nope", uuid.Nil, nil, http.StatusBadRequest, ""},
		{"unknown account", http.MethodGet, "/v1/accounts/" + uuid.NewString(), uuid.Nil, nil, http.StatusNotFound, "not_found"},
		{"challenge without post", http.MethodPost, "/v1/challenges", owner, map[string]any{"amount": "5", "reason": "r"}, http.StatusBadRequest, ""},
		{"vote without agree", http.MethodPost, "/v1/challenges/" + uuid.NewString() + "/votes", owner, map[string]any{}, http.StatusBadRequest, ""},
		{"verdict out of range", http.MethodPost, "/v1/challenges/" + uuid.NewString() + "/verdict", uuid.Nil, map[string]any{"verdict": true, "confidence": 101}, http.StatusBadRequest, "invalid_confidence"},
		{"bad event cursor", http.MethodGet, "/v1/events?after=-1", uuid.Nil, nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body apiError
			status := ts.do(tt.method, tt.path, tt.account, tt.body, &body)
			assert.Equal(t, tt.status, status, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}

	var insufficient apiError
	ts.do(http.MethodPost, "/v1/posts", owner, map[string]any{"content": "c", "stake_amount": "11"}, &insufficient)
	assert.Equal(t, "11", insufficient.Required)
	assert.Equal(t, "10", insufficient.Available)
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.fund("0xabc", "5")

	var dup apiError
	assert.Equal(t, http.StatusConflict,
		ts.do(http.MethodPost, "/v1/accounts", uuid.Nil, map[string]string{"external_address": "0xabc"}, &dup))
	assert.Equal(t, "address_in_use", dup.Kind)

	var entries struct {
		Entries []domain.LedgerEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/v1/accounts/"+id.String()+"/entries?limit=5", uuid.Nil, nil, &entries))
	require.Len(t, entries.Entries, 1)
	assert.Equal(t, domain.EntryKindExternalSync, entries.Entries[0].Kind)

	ts.ext.SetUnavailable(true)
	var down apiError
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPost, "/v1/accounts/"+id.String()+"/reconcile", uuid.Nil, nil, &down))
	assert.Equal(t, "external_ledger_unavailable", down.Kind)
	ts.ext.SetUnavailable(false)

	var noAddr domain.Account
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/v1/accounts", uuid.Nil, map[string]string{}, &noAddr))
	var missing apiError
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(http.MethodPost, "/v1/accounts/"+noAddr.ID.String()+"/reconcile", uuid.Nil, nil, &missing))
	assert.Equal(t, "no_external_address", missing.Kind)

	var deactivated domain.Account
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/accounts/"+id.String()+"/deactivate", uuid.Nil, nil, &deactivated))
	assert.False(t, deactivated.Active)

	var inactive apiError
	assert.Equal(t, http.StatusConflict, ts.do(http.MethodPost, "/v1/posts", id,
		map[string]any{"content": "c", "stake_amount": "1"}, &inactive))
	assert.Equal(t, "account_inactive", inactive.Kind)
}

func TestOperationalEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	var health map[string]string
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", uuid.Nil, nil, &health))
	assert.Equal(t, "ok", health["status"])

	var version map[string]string
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/version", uuid.Nil, nil, &version))
	assert.Contains(t, version, "version")
	assert.Contains(t, version, "commit")

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "truthstake_http_requests_total")

	ts.apiKey = "ts_wrong"
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/v1/events", uuid.Nil, nil, nil))
}

func TestNewAppRejectsUnknownPolicies(t *testing.T) {
	cfg := service.DefaultEngineConfig()
	cfg.SettlementPolicy = "winner-takes-nothing"
	_, err := NewApp(MemoryStores(memstore.New()), Options{
		Engine:   cfg,
		External: extledger.NewSimulated(),
		Verdicts: verdict.NewStubProvider(),
	}, zap.NewNop())
	assert.Error(t, err)
}
