package queries

import (
	"context"
	"fmt"

	"millionx-backend/application/ports"
	"millionx-backend/application/queries/bus"
	"millionx-backend/domain/config"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/pkg/errors"
	"millionx-backend/pkg/utils"
)

// EdgeLineDTO is a renderable edge: it leaves the source card at its
// right-center and enters the target card at its left-center
type EdgeLineDTO struct {
	ID string  `json:"id"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// GraphViewResult is the windowed render payload for the canvas
type GraphViewResult struct {
	ActiveNodeID string        `json:"activeNodeId"`
	Nodes        []NodeDTO     `json:"nodes"`
	Edges        []EdgeLineDTO `json:"edges"`
}

// GetGraphViewQuery returns the visible window of a session's canvas
// around an active node. When ActiveNodeID is empty the root is used.
type GetGraphViewQuery struct {
	UserID       string `validate:"required"`
	SessionID    string `validate:"required"`
	ActiveNodeID string
}

// Validate implements bus.Query
func (q GetGraphViewQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetGraphViewHandler handles GetGraphViewQuery
type GetGraphViewHandler struct {
	sessions ports.SessionRepository
	cfg      *config.DomainConfig
}

// NewGetGraphViewHandler creates a new handler instance
func NewGetGraphViewHandler(sessions ports.SessionRepository, cfg *config.DomainConfig) *GetGraphViewHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GetGraphViewHandler{sessions: sessions, cfg: cfg}
}

// Handle executes the query
func (h *GetGraphViewHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(GetGraphViewQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", query)
	}

	sessionID, err := valueobjects.NewSessionIDFromString(q.SessionID)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	session, err := h.sessions.FindByID(ctx, q.UserID, sessionID)
	if err != nil {
		return nil, err
	}

	activeID := session.Root().ID()
	if q.ActiveNodeID != "" {
		activeID, err = valueobjects.NewNodeIDFromString(q.ActiveNodeID)
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
	}

	window, err := session.VisibleWindow(activeID)
	if err != nil {
		return nil, err
	}

	result := &GraphViewResult{ActiveNodeID: activeID.String()}
	visible := make(map[string]NodeDTO, len(window))
	for _, n := range window {
		dto := NewNodeDTO(n)
		visible[dto.ID] = dto
		result.Nodes = append(result.Nodes, dto)
	}

	layout := h.cfg.Layout
	for _, c := range session.Connections() {
		source, okS := visible[c.Source().String()]
		target, okT := visible[c.Target().String()]
		if !okS || !okT {
			continue
		}
		result.Edges = append(result.Edges, EdgeLineDTO{
			ID: c.ID().String(),
			X1: source.X + layout.NodeWidth,
			Y1: source.Y + layout.NodeHeight/2,
			X2: target.X,
			Y2: target.Y + layout.NodeHeight/2,
		})
	}
	return result, nil
}
