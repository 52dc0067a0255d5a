package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"millionx-backend/application/services"
	"millionx-backend/pkg/common"
	appErrors "millionx-backend/pkg/errors"
)

// SessionCookieName is the cookie carrying the login session token.
const SessionCookieName = "mx_session"

// Auth resolves the session token from the request and loads the user into
// the request context. Requests without a valid session get a 401.
func Auth(auth *services.AuthService, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				appErrors.WriteHTTP(w, logger, appErrors.NewUnauthorizedError("authentication required"))
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				appErrors.WriteHTTP(w, logger, err)
				return
			}

			ctx := common.WithUserID(r.Context(), user.ID())
			ctx = common.WithUserEmail(ctx, user.Email())
			ctx = common.WithAuthSessionID(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken prefers the cookie, falling back to a bearer token for
// non-browser clients such as the terminal UI.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
