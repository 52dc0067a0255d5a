package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"millionx-backend/application/services"
	"millionx-backend/interfaces/http/rest/middleware"
	"millionx-backend/pkg/common"
	appErrors "millionx-backend/pkg/errors"
)

// AuthHandler handles magic-link login and session lifecycle
type AuthHandler struct {
	auth          *services.AuthService
	logger        *zap.Logger
	secureCookies bool
	sessionTTL    time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *zap.Logger, secureCookies bool, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:          auth,
		logger:        logger,
		secureCookies: secureCookies,
		sessionTTL:    sessionTTL,
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

// RequestMagicLink handles POST /auth/magic-link.
// The response is identical whether or not the address is known, so the
// endpoint cannot be used to probe for registered emails.
func (h *AuthHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := common.ParseJSONBody(r, &req, 4096); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	if err := h.auth.RequestMagicLink(r.Context(), req.Email); err != nil {
		// Rate limiting and malformed addresses surface; delivery
		// problems do not.
		if appErrors.IsValidation(err) || appErrors.IsType(err, appErrors.ErrorTypeRateLimit) {
			appErrors.WriteHTTP(w, h.logger, err)
			return
		}
		h.logger.Warn("magic link request failed", zap.Error(err))
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "If the address is valid, a login link is on its way.",
	})
}

// VerifyMagicLink handles GET /auth/verify. On success it sets the session
// cookie and redirects to the app root.
func (h *AuthHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		appErrors.WriteHTTP(w, h.logger, appErrors.NewValidationError("token is required"))
		return
	}

	sessionToken, user, err := h.auth.VerifyMagicLink(r.Context(), token)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	h.setSessionCookie(w, sessionToken, h.sessionTTL)
	h.logger.Info("user logged in", zap.String("userID", user.ID()))

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := common.GetAuthSessionID(r.Context())
	if token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout failed", zap.Error(err))
		}
	}

	h.setSessionCookie(w, "", -time.Hour)
	common.RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
