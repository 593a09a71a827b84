package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads the .env file specified by TRUTHSTAKE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("TRUTHSTAKE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getPositiveInt(key string, def int) int {
	v := getInt(key, def)
	if v <= 0 {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return def
	}
	return d
}

func getDecimal(key string, def string) decimal.Decimal {
	d, err := decimal.NewFromString(os.Getenv(key))
	if err != nil || d.IsNegative() {
		return decimal.RequireFromString(def)
	}
	return d
}

func getBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func getString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func ServerPort() int {
	return getInt("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StorageDriver returns "postgres" (default) or "memory".
func StorageDriver() string {
	return getString("STORAGE_DRIVER", "postgres")
}

func MigrationsPath() string {
	return getString("MIGRATIONS_PATH", "migrations")
}

func RunMigrations() bool {
	return getBool("RUN_MIGRATIONS", false)
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	return getPositiveInt("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	return getString("LOG_LEVEL", "info")
}

// Staking thresholds.

func MinStake() decimal.Decimal        { return getDecimal("MIN_STAKE", "0.01") }
func MinSupport() decimal.Decimal      { return getDecimal("MIN_SUPPORT", "0.01") }
func ChallengeFloor() decimal.Decimal  { return getDecimal("CHALLENGE_FLOOR", "1") }
func ChallengeMargin() decimal.Decimal { return getDecimal("CHALLENGE_MARGIN", "0.1") }

// Reputation.

func ReputationInitial() int  { return getInt("REPUTATION_INITIAL", 100) }
func ReputationMin() int      { return getInt("REPUTATION_MIN", 0) }
func ReputationMax() int      { return getInt("REPUTATION_MAX", 1000) }
func ReputationWinDelta() int { return getInt("REPUTATION_WIN_DELTA", 10) }
func ReputationLoseDelta() int {
	return getInt("REPUTATION_LOSE_DELTA", -5)
}

// Resolution.

func VotingWindow() time.Duration { return getDuration("VOTING_WINDOW", 24*time.Hour) }

// VoteQuorumWeight finalizes a challenge early once reached. Zero disables it.
func VoteQuorumWeight() int {
	w := getInt("VOTE_QUORUM_WEIGHT", 0)
	if w < 0 {
		return 0
	}
	return w
}

// VerdictPolicy returns the configured verdict policy.
// Valid values: automated, community_override
func VerdictPolicy() string {
	return getString("VERDICT_POLICY", "automated")
}

func OverrideMinShare() float64 {
	v, err := strconv.ParseFloat(os.Getenv("OVERRIDE_MIN_SHARE"), 64)
	if err != nil {
		return 0.66
	}
	return v
}

func OverrideMinWeight() int { return getPositiveInt("OVERRIDE_MIN_WEIGHT", 5) }

// SettlementPolicy returns the configured settlement policy.
// Valid values: full, matched
func SettlementPolicy() string {
	return getString("SETTLEMENT_POLICY", "full")
}

func SettlementMaxAttempts() int { return getPositiveInt("SETTLEMENT_MAX_ATTEMPTS", 5) }

// VerifyAfter moves unchallenged pending posts to verified. Zero disables it.
func VerifyAfter() time.Duration { return getDuration("VERIFY_AFTER", 72*time.Hour) }

func AllowReopenVerified() bool { return getBool("ALLOW_REOPEN_VERIFIED", false) }

// External ledger.

// ExternalLedger returns the configured external ledger provider.
// Valid values: simulated, rpc
func ExternalLedger() string {
	return getString("EXTERNAL_LEDGER", "simulated")
}

func ExternalRPCURL() string    { return os.Getenv("EXTERNAL_RPC_URL") }
func ExternalIntentURL() string { return os.Getenv("EXTERNAL_INTENT_URL") }

func ExternalDecimals() int32 {
	d := getInt("EXTERNAL_DECIMALS", 18)
	if d < 0 {
		return 18
	}
	return int32(d)
}

// Verdict provider.

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// VerdictProvider returns the configured verdict provider.
// Defaults to "stub" if not set.
// Valid values: stub, anthropic, openai, cerebras, gemini, mock
func VerdictProvider() string {
	return getString("VERDICT_PROVIDER", "stub")
}

// VerdictAPIKey returns the API key for the configured verdict provider.
func VerdictAPIKey() string {
	switch VerdictProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "openai":
		return OpenAIAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "gemini":
		return GeminiAPIKey()
	default:
		return ""
	}
}

// Worker intervals.

func ReconcileInterval() time.Duration  { return getDuration("RECONCILE_INTERVAL", 5*time.Minute) }
func FinalizeInterval() time.Duration   { return getDuration("FINALIZE_INTERVAL", 30*time.Second) }
func AdjudicateInterval() time.Duration { return getDuration("ADJUDICATE_INTERVAL", 30*time.Second) }
func DispatchInterval() time.Duration   { return getDuration("DISPATCH_INTERVAL", 2*time.Second) }
