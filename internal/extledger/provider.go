// Package extledger implements the external ledger collaborator. The
// external ledger is a best-effort balance oracle and a sink for transfer
// intents. It is never the system of record.
package extledger

import (
	"fmt"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
)

const (
	ProviderSimulated = "simulated"
	ProviderRPC       = "rpc"
)

type Config struct {
	RPCURL    string
	IntentURL string
	// Decimals is the scale of the chain's base unit (18 for wei).
	Decimals int32
	Timeout  time.Duration
}

// NewClient creates an external ledger client by name.
func NewClient(provider string, cfg Config) (domain.ExternalLedger, error) {
	switch provider {
	case ProviderSimulated:
		return NewSimulated(), nil

	case ProviderRPC:
		if cfg.RPCURL == "" {
			return nil, fmt.Errorf("EXTERNAL_RPC_URL is required for rpc external ledger")
		}
		return NewRPCClient(cfg), nil

	default:
		return nil, fmt.Errorf("unknown external ledger: %s (valid options: simulated, rpc)", provider)
	}
}
