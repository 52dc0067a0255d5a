package queries

import (
	"context"
	"fmt"

	"millionx-backend/application/ports"
	"millionx-backend/application/queries/bus"
	"millionx-backend/pkg/utils"
)

// ListSessionsQuery returns the user's saved sessions, newest
// activity first
type ListSessionsQuery struct {
	UserID string `validate:"required"`
	Offset int    `validate:"min=0"`
	Limit  int    `validate:"min=1,max=100"`
}

// Validate implements bus.Query
func (q ListSessionsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListSessionsResult is the listing payload
type ListSessionsResult struct {
	Sessions []ports.SessionSummary `json:"sessions"`
	Total    int                    `json:"total"`
}

// ListSessionsHandler handles ListSessionsQuery
type ListSessionsHandler struct {
	sessions ports.SessionRepository
}

// NewListSessionsHandler creates a new handler instance
func NewListSessionsHandler(sessions ports.SessionRepository) *ListSessionsHandler {
	return &ListSessionsHandler{sessions: sessions}
}

// Handle executes the query
func (h *ListSessionsHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(ListSessionsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	summaries, total, err := h.sessions.List(ctx, q.UserID, q.Offset, q.Limit)
	if err != nil {
		return nil, err
	}
	return &ListSessionsResult{Sessions: summaries, Total: total}, nil
}
