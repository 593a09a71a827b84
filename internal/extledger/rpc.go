package extledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/shopspring/decimal"
)

// RPCClient reads balances from an Ethereum-style JSON-RPC node and posts
// transfer intents to a relay over HTTP.
type RPCClient struct {
	rpcURL     string
	intentURL  string
	decimals   int32
	httpClient *http.Client
	nextID     atomic.Int64
}

func NewRPCClient(cfg Config) *RPCClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RPCClient{
		rpcURL:     cfg.RPCURL,
		intentURL:  cfg.IntentURL,
		decimals:   cfg.Decimals,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrExternalLedgerUnavailable, method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", domain.ErrExternalLedgerUnavailable, method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d: %s", domain.ErrExternalLedgerUnavailable, method, resp.StatusCode, string(respBody))
	}

	var result rpcResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("%w: unmarshal %s response: %v", domain.ErrExternalLedgerUnavailable, method, err)
	}
	if result.Error != nil {
		return fmt.Errorf("%w: %s error %d: %s", domain.ErrExternalLedgerUnavailable, method, result.Error.Code, result.Error.Message)
	}
	return json.Unmarshal(result.Result, out)
}

func parseHexQuantity(s string) (*big.Int, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if digits == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

// GetExternalBalance pins the read to the current block so the reference
// names exactly what was observed.
func (c *RPCClient) GetExternalBalance(ctx context.Context, address string) (*domain.ExternalBalance, error) {
	var block string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &block); err != nil {
		return nil, err
	}
	var raw string
	if err := c.call(ctx, "eth_getBalance", []any{address, block}, &raw); err != nil {
		return nil, err
	}
	units, err := parseHexQuantity(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalLedgerUnavailable, err)
	}
	height, err := parseHexQuantity(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalLedgerUnavailable, err)
	}
	return &domain.ExternalBalance{
		Amount:     decimal.NewFromBigInt(units, -c.decimals),
		Reference:  "block:" + height.String(),
		ObservedAt: time.Now(),
	}, nil
}

type intentResponse struct {
	Reference string `json:"reference"`
}

func (c *RPCClient) SubmitValueTransferIntent(ctx context.Context, intent domain.TransferIntent) (string, error) {
	if c.intentURL == "" {
		return "", fmt.Errorf("%w: no intent relay configured", domain.ErrExternalLedgerUnavailable)
	}
	body, err := json.Marshal(intent)
	if err != nil {
		return "", fmt.Errorf("marshal intent: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.intentURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", intent.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submit intent: %v", domain.ErrExternalLedgerUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read intent response: %v", domain.ErrExternalLedgerUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: intent relay returned status %d: %s", domain.ErrExternalLedgerUnavailable, resp.StatusCode, string(respBody))
	}

	var out intentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal intent response: %w", err)
	}
	return out.Reference, nil
}
