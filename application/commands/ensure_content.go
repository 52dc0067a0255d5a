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

// EnsureNodeContentCommand fetches a node's explanation, generating
// it if the node is empty or holds a failure marker. Result carries
// the markdown back to the caller.
type EnsureNodeContentCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	NodeID    string `json:"node_id" validate:"required"`

	Result string `json:"-"`
}

// Validate implements bus.Command
func (c *EnsureNodeContentCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// EnsureNodeContentHandler handles EnsureNodeContentCommand
type EnsureNodeContentHandler struct {
	controller *services.ExplorationController
}

// NewEnsureNodeContentHandler creates a new handler instance
func NewEnsureNodeContentHandler(controller *services.ExplorationController) *EnsureNodeContentHandler {
	return &EnsureNodeContentHandler{controller: controller}
}

// Handle executes the command
func (h *EnsureNodeContentHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*EnsureNodeContentCommand)
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

	content, err := h.controller.EnsureNodeContent(ctx, c.UserID, sessionID, nodeID)
	if err != nil {
		return err
	}
	c.Result = content
	return nil
}
