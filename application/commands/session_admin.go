package commands

import (
	"context"
	"fmt"

	"millionx-backend/application/commands/bus"
	"millionx-backend/application/services"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/pkg/errors"
	"millionx-backend/pkg/utils"
)

// DeleteSessionCommand removes a session the user owns
type DeleteSessionCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// Validate implements bus.Command
func (c *DeleteSessionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteSessionHandler handles DeleteSessionCommand
type DeleteSessionHandler struct {
	controller *services.ExplorationController
}

// NewDeleteSessionHandler creates a new handler instance
func NewDeleteSessionHandler(controller *services.ExplorationController) *DeleteSessionHandler {
	return &DeleteSessionHandler{controller: controller}
}

// Handle executes the command
func (h *DeleteSessionHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*DeleteSessionCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	sessionID, err := valueobjects.NewSessionIDFromString(c.SessionID)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}

	return h.controller.DeleteSession(ctx, c.UserID, sessionID)
}

// SyncCursorsCommand aligns the chat and graph cursors of a session
type SyncCursorsCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=chat graph"`
}

// Validate implements bus.Command
func (c *SyncCursorsCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SyncCursorsHandler handles SyncCursorsCommand
type SyncCursorsHandler struct {
	controller *services.ExplorationController
}

// NewSyncCursorsHandler creates a new handler instance
func NewSyncCursorsHandler(controller *services.ExplorationController) *SyncCursorsHandler {
	return &SyncCursorsHandler{controller: controller}
}

// Handle executes the command
func (h *SyncCursorsHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*SyncCursorsCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	sessionID, err := valueobjects.NewSessionIDFromString(c.SessionID)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}

	return h.controller.SyncCursors(sessionID, c.Direction)
}
