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

// MoveNodeCommand records a node's new canvas position after a drag
type MoveNodeCommand struct {
	UserID    string  `json:"user_id" validate:"required"`
	SessionID string  `json:"session_id" validate:"required"`
	NodeID    string  `json:"node_id" validate:"required"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Validate implements bus.Command
func (c *MoveNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// MoveNodeHandler handles MoveNodeCommand
type MoveNodeHandler struct {
	controller *services.ExplorationController
}

// NewMoveNodeHandler creates a new handler instance
func NewMoveNodeHandler(controller *services.ExplorationController) *MoveNodeHandler {
	return &MoveNodeHandler{controller: controller}
}

// Handle executes the command
func (h *MoveNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*MoveNodeCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	sessionID, err := valueobjects.NewSessionIDFromString(c.SessionID)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}
	nodeID, err := valueobjects.NewNodeIDFromString(c.NodeID)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}

	return h.controller.MoveNode(ctx, c.UserID, sessionID, nodeID, c.X, c.Y)
}
