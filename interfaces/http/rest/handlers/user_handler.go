package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/pkg/common"
	appErrors "millionx-backend/pkg/errors"
)

// UserHandler handles account endpoints
type UserHandler struct {
	users  ports.UserRepository
	ai     ports.AIGateway
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users ports.UserRepository, ai ports.AIGateway, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, ai: ai, logger: logger}
}

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	HasAPIKey     bool      `json:"hasApiKey"`
	CreatedAt     time.Time `json:"createdAt"`
}

// GetMe handles GET /users/me. The stored key is never echoed back,
// only whether one exists.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, userResponse{
		ID:            user.ID(),
		Email:         user.Email(),
		Name:          user.Name(),
		EmailVerified: user.EmailVerified(),
		HasAPIKey:     user.HasAPIKey(),
		CreatedAt:     user.CreatedAt(),
	})
}

type setAPIKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// SetAPIKey handles PUT /users/me/api-key. The key is checked against the
// provider before it is stored; a rejected key is never persisted.
func (h *UserHandler) SetAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	var req setAPIKeyRequest
	if err := common.ParseJSONBody(r, &req, 4096); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	valid, err := h.ai.ValidateAPIKey(r.Context(), req.APIKey)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}
	if !valid {
		appErrors.WriteHTTP(w, h.logger, appErrors.NewValidationError("API key was rejected by the provider"))
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	user.SetGroqAPIKey(req.APIKey)
	if err := h.users.Save(r.Context(), user); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]bool{"valid": true})
}
