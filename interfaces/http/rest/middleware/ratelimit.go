package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"millionx-backend/pkg/auth"
	"millionx-backend/pkg/common"
	appErrors "millionx-backend/pkg/errors"
)

// RateLimit rejects requests over the per-caller budget with a 429.
// Authenticated requests are keyed by user ID so one user cannot
// starve the AI providers for everyone; unauthenticated requests fall
// back to the client address.
func RateLimit(limiter auth.RateLimiter, limit int, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := common.GetUserID(r.Context())
			if err != nil {
				key = r.RemoteAddr
			}
			if !limiter.Allow(key) {
				appErrors.WriteHTTP(w, logger, appErrors.NewRateLimitError(limit, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
