package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/google/uuid"
)

type contextKey string

const (
	clientContextKey  contextKey = "client"
	accountContextKey contextKey = "account_id"

	// AccountIDHeader carries the acting account, asserted by the upstream
	// identity provider.
	AccountIDHeader = "X-Account-ID"
)

func ClientFromContext(ctx context.Context) *domain.Client {
	c, _ := ctx.Value(clientContextKey).(*domain.Client)
	return c
}

// AccountIDFromContext returns the acting account set by AccountIdentity.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountContextKey).(uuid.UUID)
	return id, ok
}

// WithAccountID is used by tests that call handlers directly.
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, accountContextKey, id)
}

func APIKeyAuth(clientStore domain.ClientStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			client, err := clientStore.GetByAPIKeyHash(r.Context(), hashAPIKey(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			if tags := tagsFromContext(r.Context()); tags != nil {
				tags.clientID = client.ID.String()
			}
			ctx := context.WithValue(r.Context(), clientContextKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIdentity reads X-Account-ID into the request context. The header
// is optional here; handlers that act on behalf of an account require it.
func AccountIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(AccountIDHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+AccountIDHeader+" header")
			return
		}
		if tags := tagsFromContext(r.Context()); tags != nil {
			tags.accountID = id.String()
		}
		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), id)))
	})
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// HashAPIKey is exported for use when creating clients.
func HashAPIKey(key string) string {
	return hashAPIKey(key)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
