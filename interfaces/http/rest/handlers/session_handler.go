package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"millionx-backend/application/commands"
	commandBus "millionx-backend/application/commands/bus"
	"millionx-backend/application/queries"
	queryBus "millionx-backend/application/queries/bus"
	"millionx-backend/application/services"
	"millionx-backend/pkg/common"
	appErrors "millionx-backend/pkg/errors"
)

// SessionHandler handles exploration session endpoints
type SessionHandler struct {
	commandBus *commandBus.CommandBus
	queryBus   *queryBus.QueryBus
	controller *services.ExplorationController
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(cb *commandBus.CommandBus, qb *queryBus.QueryBus, controller *services.ExplorationController, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		commandBus: cb,
		queryBus:   qb,
		controller: controller,
		logger:     logger,
	}
}

type startTopicRequest struct {
	Topic string `json:"topic"`
}

// StartTopic handles POST /sessions
func (h *SessionHandler) StartTopic(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	var req startTopicRequest
	if err := common.ParseJSONBody(r, &req, 8192); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.StartTopicCommand{UserID: userID, Topic: req.Topic}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusCreated, queries.NewSessionDTO(cmd.Result))
}

// ListSessions handles GET /sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	page := common.ParsePageRequest(r)
	result, err := h.queryBus.Ask(r.Context(), queries.ListSessionsQuery{
		UserID: userID,
		Offset: page.Offset(),
		Limit:  page.Limit(),
	})
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	list := result.(*queries.ListSessionsResult)
	common.RespondWithMeta(w, http.StatusOK, list.Sessions, &common.MetaInfo{
		Pagination: common.NewPaginationInfo(page, list.Total),
	})
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetSessionQuery{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	})
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// DeleteSession handles DELETE /sessions/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.DeleteSessionCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetGraphView handles GET /sessions/{sessionID}/graph
func (h *SessionHandler) GetGraphView(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetGraphViewQuery{
		UserID:       userID,
		SessionID:    chi.URLParam(r, "sessionID"),
		ActiveNodeID: r.URL.Query().Get("active"),
	})
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// EnsureContent handles POST /sessions/{sessionID}/nodes/{nodeID}/content.
// Nodes whose content already exists return it unchanged, so clients can
// call this on every node open.
func (h *SessionHandler) EnsureContent(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.EnsureNodeContentCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"content": cmd.Result})
}

type expandRequest struct {
	Mode string `json:"mode"`
}

// ExpandNode handles POST /sessions/{sessionID}/nodes/{nodeID}/expand
func (h *SessionHandler) ExpandNode(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	var req expandRequest
	if err := common.ParseJSONBody(r, &req, 4096); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.ExpandNodeCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
		Mode:      req.Mode,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	children := make([]queries.NodeDTO, 0, len(cmd.Result))
	for _, n := range cmd.Result {
		children = append(children, queries.NewNodeDTO(n))
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"children": children})
}

type chatRequest struct {
	Question string `json:"question"`
}

// Chat handles POST /sessions/{sessionID}/nodes/{nodeID}/chat
func (h *SessionHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	var req chatRequest
	if err := common.ParseJSONBody(r, &req, 65536); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.RecordChatTurnCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
		Question:  req.Question,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{"answer": cmd.Result})
}

// ClearChat handles DELETE /sessions/{sessionID}/nodes/{nodeID}/chat
func (h *SessionHandler) ClearChat(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.ClearChatCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MoveNode handles PUT /sessions/{sessionID}/nodes/{nodeID}/position
func (h *SessionHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	var req moveRequest
	if err := common.ParseJSONBody(r, &req, 4096); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.MoveNodeCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
		X:         req.X,
		Y:         req.Y,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type syncCursorsRequest struct {
	Direction string `json:"direction"`
}

// SyncCursors handles POST /sessions/{sessionID}/cursors/sync
func (h *SessionHandler) SyncCursors(w http.ResponseWriter, r *http.Request) {
	userID, err := common.GetUserID(r.Context())
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	var req syncCursorsRequest
	if err := common.ParseJSONBody(r, &req, 4096); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cmd := &commands.SyncCursorsCommand{
		UserID:    userID,
		SessionID: chi.URLParam(r, "sessionID"),
		Direction: req.Direction,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	h.respondCursors(w, r)
}

// GetCursors handles GET /sessions/{sessionID}/cursors
func (h *SessionHandler) GetCursors(w http.ResponseWriter, r *http.Request) {
	h.respondCursors(w, r)
}

func (h *SessionHandler) respondCursors(w http.ResponseWriter, r *http.Request) {
	sessionID, err := valueSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		appErrors.WriteHTTP(w, h.logger, err)
		return
	}

	cursors := h.controller.GetCursors(sessionID)
	common.RespondJSON(w, http.StatusOK, map[string]string{
		"chatNodeId":  cursors.ChatNodeID.String(),
		"graphNodeId": cursors.GraphNodeID.String(),
	})
}
