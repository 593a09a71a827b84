package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = contextKey("request_id")
	requestTagsKey  = contextKey("request_tags")

	maxRequestIDLength = 128
)

// RequestIDFromContext returns the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestID reuses an inbound X-Request-ID of sane length or generates a
// new one, echoes it on the response and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestTags collects ids resolved by inner middleware so outer middleware
// can report them after the request is served.
type requestTags struct {
	clientID  string
	accountID string
}

func withRequestTags(ctx context.Context, tags *requestTags) context.Context {
	return context.WithValue(ctx, requestTagsKey, tags)
}

func tagsFromContext(ctx context.Context) *requestTags {
	tags, _ := ctx.Value(requestTagsKey).(*requestTags)
	return tags
}
