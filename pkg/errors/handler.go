package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// errorBody is the wire shape for failed requests
type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Type    string                 `json:"type"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
}

// WriteHTTP writes an error as a JSON response, mapping AppError types
// to their HTTP status codes. Unknown errors become 500s with a generic
// message so internal details never leak to clients.
func WriteHTTP(w http.ResponseWriter, logger *zap.Logger, err error) {
	appErr := GetAppError(err)
	if appErr == nil {
		appErr = NewInternalError("an unexpected error occurred").WithCause(err)
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("type", string(appErr.Type)),
			zap.String("message", appErr.Message),
			zap.Error(appErr.Cause),
		)
	}

	var body errorBody
	body.Error.Type = string(appErr.Type)
	body.Error.Message = appErr.Message
	body.Error.Details = appErr.Details

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(body)
}
