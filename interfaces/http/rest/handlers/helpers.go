package handlers

import (
	"millionx-backend/domain/core/valueobjects"
	appErrors "millionx-backend/pkg/errors"
)

func valueSessionID(raw string) (valueobjects.SessionID, error) {
	id, err := valueobjects.NewSessionIDFromString(raw)
	if err != nil {
		return valueobjects.SessionID{}, appErrors.NewValidationError("invalid session id")
	}
	return id, nil
}
