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

// RecordChatTurnCommand asks a follow-up question about a node's
// explanation. Result carries the assistant's answer. A provider
// failure leaves the chat thread exactly as it was before the
// question.
type RecordChatTurnCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	NodeID    string `json:"node_id" validate:"required"`
	Question  string `json:"question" validate:"required,min=1,max=4000"`

	Result string `json:"-"`
}

// Validate implements bus.Command
func (c *RecordChatTurnCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RecordChatTurnHandler handles RecordChatTurnCommand
type RecordChatTurnHandler struct {
	controller *services.ExplorationController
}

// NewRecordChatTurnHandler creates a new handler instance
func NewRecordChatTurnHandler(controller *services.ExplorationController) *RecordChatTurnHandler {
	return &RecordChatTurnHandler{controller: controller}
}

// Handle executes the command
func (h *RecordChatTurnHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*RecordChatTurnCommand)
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

	answer, err := h.controller.Chat(ctx, c.UserID, sessionID, nodeID, c.Question)
	if err != nil {
		return err
	}
	c.Result = answer
	return nil
}

// ClearChatCommand discards a node's conversation
type ClearChatCommand struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	NodeID    string `json:"node_id" validate:"required"`
}

// Validate implements bus.Command
func (c *ClearChatCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ClearChatHandler handles ClearChatCommand
type ClearChatHandler struct {
	controller *services.ExplorationController
}

// NewClearChatHandler creates a new handler instance
func NewClearChatHandler(controller *services.ExplorationController) *ClearChatHandler {
	return &ClearChatHandler{controller: controller}
}

// Handle executes the command
func (h *ClearChatHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*ClearChatCommand)
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

	return h.controller.ClearChat(ctx, c.UserID, sessionID, nodeID)
}
