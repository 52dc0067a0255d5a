package commands

import (
	"context"
	"fmt"

	"millionx-backend/application/commands/bus"
	"millionx-backend/application/services"
	"millionx-backend/domain/core/aggregates"
	"millionx-backend/pkg/utils"
)

// StartTopicCommand begins a new exploration session on a topic.
// Result carries the created session back to the caller.
type StartTopicCommand struct {
	UserID string `json:"user_id" validate:"required"`
	Topic  string `json:"topic" validate:"required,min=1,max=200"`

	Result *aggregates.Exploration `json:"-"`
}

// Validate implements bus.Command
func (c *StartTopicCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// StartTopicHandler handles StartTopicCommand
type StartTopicHandler struct {
	controller *services.ExplorationController
}

// NewStartTopicHandler creates a new handler instance
func NewStartTopicHandler(controller *services.ExplorationController) *StartTopicHandler {
	return &StartTopicHandler{controller: controller}
}

// Handle executes the command
func (h *StartTopicHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(*StartTopicCommand)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}

	session, err := h.controller.StartTopic(ctx, c.UserID, c.Topic)
	if err != nil {
		return err
	}
	c.Result = session
	return nil
}
