package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/pkg/common"
	appErrors "millionx-backend/pkg/errors"
)

// AIHandler handles AI provider endpoints
type AIHandler struct {
	ai     ports.AIGateway
	logger *zap.Logger
}

// NewAIHandler creates a new AI handler
func NewAIHandler(ai ports.AIGateway, logger *zap.Logger) *AIHandler {
	return &AIHandler{ai: ai, logger: logger}
}

type validateKeyRequest struct {
	APIKey string `json:"apiKey"`
}

// ValidateKey handles POST /ai/validate-key. Any provider outcome other
// than an explicit acceptance reports the key as invalid.
func (h *AIHandler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	var req validateKeyRequest
	if err := common.ParseJSONBody(r, &req, 4096); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	valid, err := h.ai.ValidateAPIKey(r.Context(), req.APIKey)
	if err != nil {
		h.logger.Warn("key validation errored", zap.Error(err))
		valid = false
	}

	common.RespondJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
