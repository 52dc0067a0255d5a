package commands

import (
	"context"
	"fmt"

	"millionx-backend/application/commands/bus"
	"millionx-backend/application/ports"
	"millionx-backend/application/services"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/pkg/errors"
	"millionx-backend/pkg/utils"
)

// ExpandNodeCommand generates child topics for a node and attaches
// them to the session tree. Result carries the newly created nodes;
// expanding an already-explored node succeeds with its existing
// children instead.
type ExpandNodeCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	NodeID    string `json:"node_id" validate:"required"`
	Mode      string `json:"mode" validate:"required,oneof=rabbitHole subjectMastery"`

	Result []*entities.Node `json:"-"`
}

// Validate implements bus.Command
func (c *ExpandNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ExpandNodeHandler handles ExpandNodeCommand
type ExpandNodeHandler struct {
	controller *services.ExplorationController
}

// NewExpandNodeHandler creates a new handler instance
func NewExpandNodeHandler(controller *services.ExplorationController) *ExpandNodeHandler {
	return &ExpandNodeHandler{controller: controller}
}

// Handle executes the command
func (h *ExpandNodeHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*ExpandNodeCommand)
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

	created, err := h.controller.ExpandNode(ctx, c.UserID, sessionID, nodeID, ports.ExpandMode(c.Mode))
	if err != nil {
		return err
	}
	c.Result = created
	return nil
}
