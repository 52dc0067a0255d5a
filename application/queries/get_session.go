package queries

import (
	"context"
	"fmt"
	"time"

	"millionx-backend/application/ports"
	"millionx-backend/application/queries/bus"
	"millionx-backend/domain/core/aggregates"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/pkg/errors"
	"millionx-backend/pkg/utils"
)

// ChatTurnDTO is the wire shape of one chat message
type ChatTurnDTO struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NodeDTO is the wire shape of a node
type NodeDTO struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Content     string        `json:"content,omitempty"`
	X           float64       `json:"x"`
	Y           float64       `json:"y"`
	Depth       int           `json:"depth"`
	HasExplored bool          `json:"hasExplored"`
	ChatHistory []ChatTurnDTO `json:"chatHistory,omitempty"`
}

// ConnectionDTO is the wire shape of an edge
type ConnectionDTO struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// SessionDTO is the full wire shape of a session
type SessionDTO struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	InitialQuery string          `json:"initialQuery"`
	Nodes        []NodeDTO       `json:"nodes"`
	Connections  []ConnectionDTO `json:"connections"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewNodeDTO maps an entity to its wire shape
func NewNodeDTO(n *entities.Node) NodeDTO {
	dto := NodeDTO{
		ID:          n.ID().String(),
		Title:       n.Title(),
		Description: n.Description(),
		Content:     n.Content().Text(),
		X:           n.Position().X(),
		Y:           n.Position().Y(),
		Depth:       n.Depth(),
		HasExplored: n.HasExplored(),
	}
	for _, turn := range n.ChatHistory() {
		dto.ChatHistory = append(dto.ChatHistory, ChatTurnDTO{
			Role:      string(turn.Role),
			Content:   turn.Content,
			Timestamp: turn.Timestamp,
		})
	}
	return dto
}

// NewSessionDTO maps an aggregate to its wire shape
func NewSessionDTO(session *aggregates.Exploration) *SessionDTO {
	dto := &SessionDTO{
		ID:           session.ID().String(),
		Title:        session.Title(),
		InitialQuery: session.InitialQuery(),
		CreatedAt:    session.CreatedAt(),
		UpdatedAt:    session.UpdatedAt(),
	}
	for _, n := range session.Nodes() {
		dto.Nodes = append(dto.Nodes, NewNodeDTO(n))
	}
	for _, c := range session.Connections() {
		dto.Connections = append(dto.Connections, ConnectionDTO{
			ID:     c.ID().String(),
			Source: c.Source().String(),
			Target: c.Target().String(),
		})
	}
	return dto
}

// GetSessionQuery returns a full session the user owns
type GetSessionQuery struct {
	UserID    string `validate:"required"`
	SessionID string `validate:"required"`
}

// Validate implements bus.Query
func (q GetSessionQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetSessionHandler handles GetSessionQuery
type GetSessionHandler struct {
	sessions ports.SessionRepository
}

// NewGetSessionHandler creates a new handler instance
func NewGetSessionHandler(sessions ports.SessionRepository) *GetSessionHandler {
	return &GetSessionHandler{sessions: sessions}
}

// Handle executes the query
func (h *GetSessionHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(GetSessionQuery)
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
	return NewSessionDTO(session), nil
}
