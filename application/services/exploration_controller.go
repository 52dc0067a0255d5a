package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/domain/config"
	"millionx-backend/domain/core/aggregates"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/validators"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/pkg/errors"
	"millionx-backend/pkg/observability"
)

// Cursors tracks the two independent positions a user holds in a
// session: the node whose chat thread is open and the node the graph
// is centered on. They move independently and are only aligned by an
// explicit sync.
type Cursors struct {
	ChatNodeID  valueobjects.NodeID
	GraphNodeID valueobjects.NodeID
}

// inflight deduplicates concurrent generation calls for one node
type inflight struct {
	done   chan struct{}
	result string
	err    error
}

// sessionState holds the in-memory authority for one session. The
// aggregate is loaded from storage on first touch and every mutation
// afterwards hits this copy; saves mirror it back out. The lock
// serializes mutations with each other and with in-flight saves, so
// a save never commits a blob older than one already written.
type sessionState struct {
	mu     sync.Mutex
	agg    *aggregates.Exploration
	dirty  bool
	saving bool
}

// ExplorationController coordinates session mutations, AI calls, and
// persistence. Each session's aggregate lives in memory as the single
// authority, with storage a write-behind mirror. Content generation is
// single-flight per node, and every AI response is checked against a
// per-session generation counter before it is applied so responses
// that outlive the state they were requested for are discarded.
type ExplorationController struct {
	sessions  ports.SessionRepository
	users     ports.UserRepository
	ai        ports.AIGateway
	publisher ports.EventPublisher
	cfg       *config.DomainConfig
	topics    *validators.TopicValidator
	logger    *zap.Logger
	metrics   *observability.Metrics

	mu          sync.Mutex
	states      map[string]*sessionState
	generation  map[string]uint64
	contentCall map[string]*inflight
	expandBusy  map[string]bool
	cursors     map[string]*Cursors

	saveWG sync.WaitGroup
}

// NewExplorationController creates the controller
func NewExplorationController(
	sessions ports.SessionRepository,
	users ports.UserRepository,
	ai ports.AIGateway,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *ExplorationController {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &ExplorationController{
		sessions:    sessions,
		users:       users,
		ai:          ai,
		publisher:   publisher,
		cfg:         cfg,
		topics:      validators.NewTopicValidator(cfg.Exploration.MaxTopicLength),
		logger:      logger,
		metrics:     metrics,
		states:      make(map[string]*sessionState),
		generation:  make(map[string]uint64),
		contentCall: make(map[string]*inflight),
		expandBusy:  make(map[string]bool),
		cursors:     make(map[string]*Cursors),
	}
}

// StartTopic creates a session rooted at the topic. The title is
// generated best-effort; on failure the topic itself becomes the
// title.
func (c *ExplorationController) StartTopic(ctx context.Context, userID, topic string) (*aggregates.Exploration, error) {
	if err := c.topics.Validate(topic); err != nil {
		return nil, err
	}
	topic = c.topics.Normalize(topic)

	session, err := aggregates.NewExploration(userID, topic, c.cfg)
	if err != nil {
		return nil, err
	}

	if title, err := c.ai.GenerateTitle(ctx, topic); err == nil && strings.TrimSpace(title) != "" {
		if err := session.SetTitle(strings.TrimSpace(title)); err != nil {
			c.logger.Debug("generated title rejected", zap.Error(err))
		}
	} else if err != nil {
		c.logger.Warn("title generation failed, using topic", zap.Error(err))
	}

	if err := c.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	c.publishEvents(ctx, session)

	st := c.stateFor(session.ID())
	st.mu.Lock()
	st.agg = session
	st.mu.Unlock()

	c.mu.Lock()
	c.cursors[session.ID().String()] = &Cursors{
		ChatNodeID:  session.Root().ID(),
		GraphNodeID: session.Root().ID(),
	}
	c.mu.Unlock()

	return session, nil
}

// EnsureNodeContent returns the node's explanation, generating it
// first when the node is empty or carries a failure marker. The call
// is idempotent for loaded content and single-flight per node, so a
// double-click produces one upstream request.
func (c *ExplorationController) EnsureNodeContent(ctx context.Context, userID string, sessionID valueobjects.SessionID, nodeID valueobjects.NodeID) (string, error) {
	var (
		loaded string
		needs  bool
		title  string
		path   []string
	)
	err := c.withSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		node, err := s.NodeByID(nodeID)
		if err != nil {
			return err
		}
		if !node.Content().NeedsGeneration() {
			loaded = node.Content().Text()
			return nil
		}
		needs = true
		title = node.Title()
		path, err = s.Path(nodeID)
		return err
	})
	if err != nil {
		return "", err
	}
	if !needs {
		return loaded, nil
	}

	key := sessionID.String() + "/" + nodeID.String()

	c.mu.Lock()
	if call, ok := c.contentCall[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.result, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &inflight{done: make(chan struct{})}
	c.contentCall[key] = call
	gen := c.generation[sessionID.String()]
	c.mu.Unlock()

	call.result, call.err = c.generateContent(ctx, userID, sessionID, nodeID, title, path, gen)

	c.mu.Lock()
	delete(c.contentCall, key)
	c.mu.Unlock()
	close(call.done)

	return call.result, call.err
}

// generateContent runs the AI call and applies the result if the
// session generation has not moved since the call started
func (c *ExplorationController) generateContent(ctx context.Context, userID string, sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, title string, path []string, gen uint64) (string, error) {
	apiKey, err := c.optionalAPIKey(ctx, userID)
	if err != nil {
		return "", err
	}

	text, aiErr := c.ai.Explain(ctx, ports.ExplainRequest{
		Topic:  title,
		Path:   path,
		APIKey: apiKey,
	})

	c.mu.Lock()
	stale := c.generation[sessionID.String()] != gen
	c.mu.Unlock()
	if stale {
		c.logger.Debug("discarding stale explanation",
			zap.String("session", sessionID.String()),
			zap.String("node", nodeID.String()))
		if aiErr != nil {
			return "", aiErr
		}
		return text, nil
	}

	var content valueobjects.NodeContent
	if aiErr != nil {
		c.logger.Warn("explanation generation failed",
			zap.String("node", title), zap.Error(aiErr))
		content = valueobjects.FailedContent("")
	} else {
		content, err = valueobjects.NewNodeContent(text)
		if err != nil {
			content = valueobjects.FailedContent(err.Error())
		}
	}

	if err := c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		return s.SetNodeContent(nodeID, content)
	}); err != nil {
		return "", err
	}

	if aiErr != nil {
		return content.Text(), errors.NewExternalError("ai provider", aiErr)
	}
	return content.Text(), nil
}

// ExpandNode generates child topics for a node and attaches them. An
// already-explored node is a no-op returning its existing children,
// and a node with an expansion in flight returns a conflict instead
// of a second upstream call.
func (c *ExplorationController) ExpandNode(ctx context.Context, userID string, sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, mode ports.ExpandMode) ([]*entities.Node, error) {
	if mode != ports.ModeRabbitHole && mode != ports.ModeSubjectMastery {
		return nil, errors.NewValidationError("unknown expand mode")
	}

	var (
		explored bool
		existing []*entities.Node
		title    string
		titles   []string
	)
	err := c.withSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		node, err := s.NodeByID(nodeID)
		if err != nil {
			return err
		}
		if node.HasExplored() {
			explored = true
			existing = s.Children(nodeID)
			return nil
		}
		title = node.Title()
		for _, n := range s.Nodes() {
			titles = append(titles, n.Title())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if explored {
		return existing, nil
	}

	key := sessionID.String() + "/" + nodeID.String()
	c.mu.Lock()
	if c.expandBusy[key] {
		c.mu.Unlock()
		return nil, errors.NewConflictError("node expansion already in progress")
	}
	c.expandBusy[key] = true
	gen := c.generation[sessionID.String()]
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.expandBusy, key)
		c.mu.Unlock()
	}()

	apiKey, err := c.userAPIKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	prereqs, err := c.ai.ExtractPrerequisites(ctx, ports.PrerequisitesRequest{
		Topic:          title,
		Mode:           mode,
		ExistingTitles: titles,
		APIKey:         apiKey,
	})
	if err != nil {
		return nil, errors.NewExternalError("ai provider", err)
	}

	c.mu.Lock()
	stale := c.generation[sessionID.String()] != gen
	c.mu.Unlock()
	if stale {
		return nil, errors.NewConflictError("session changed while expanding")
	}

	topics := make([]aggregates.ChildTopic, 0, len(prereqs))
	for _, p := range prereqs {
		topics = append(topics, aggregates.ChildTopic{Title: p.Title, Description: p.Description})
	}

	var created []*entities.Node
	err = c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		var attachErr error
		created, attachErr = s.AttachChildren(nodeID, topics)
		return attachErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Chat records a follow-up question, asks the provider, and records
// the answer. When the provider fails the optimistic user turn is
// rolled back so the thread never shows an unanswered question.
func (c *ExplorationController) Chat(ctx context.Context, userID string, sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, question string) (string, error) {
	var (
		title       string
		contentText string
		history     []ports.ChatMessage
	)
	err := c.withSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		node, err := s.NodeByID(nodeID)
		if err != nil {
			return err
		}
		if !node.CanChat() {
			return errors.NewConflictError("node content must be loaded before chatting")
		}
		title = node.Title()
		contentText = node.Content().Text()
		for _, turn := range node.ChatHistory() {
			history = append(history, ports.ChatMessage{Role: string(turn.Role), Content: turn.Content})
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	err = c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		return s.RecordChatTurn(nodeID, entities.ChatTurn{
			Role:      entities.ChatRoleUser,
			Content:   question,
			Timestamp: time.Now(),
		})
	})
	if err != nil {
		return "", err
	}

	apiKey, err := c.optionalAPIKey(ctx, userID)
	if err != nil {
		return "", err
	}

	answer, aiErr := c.ai.Chat(ctx, ports.ChatRequest{
		Topic:    title,
		Content:  contentText,
		History:  history,
		Question: question,
		APIKey:   apiKey,
	})
	if aiErr != nil {
		if rbErr := c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
			return s.RollbackChatTurn(nodeID)
		}); rbErr != nil {
			c.logger.Error("failed to roll back chat turn", zap.Error(rbErr))
		}
		return "", errors.NewExternalError("ai provider", aiErr)
	}

	err = c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		return s.RecordChatTurn(nodeID, entities.ChatTurn{
			Role:      entities.ChatRoleAssistant,
			Content:   answer,
			Timestamp: time.Now(),
		})
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// ClearChat discards a node's conversation
func (c *ExplorationController) ClearChat(ctx context.Context, userID string, sessionID valueobjects.SessionID, nodeID valueobjects.NodeID) error {
	return c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		return s.ClearChat(nodeID)
	})
}

// MoveNode updates a node's canvas position
func (c *ExplorationController) MoveNode(ctx context.Context, userID string, sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, x, y float64) error {
	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}
	return c.applyToSession(ctx, userID, sessionID, func(s *aggregates.Exploration) error {
		return s.MoveNode(nodeID, pos)
	})
}

// DeleteSession removes a session and invalidates any AI responses
// still in flight for it
func (c *ExplorationController) DeleteSession(ctx context.Context, userID string, sessionID valueobjects.SessionID) error {
	st := c.stateFor(sessionID)
	st.mu.Lock()
	if st.agg != nil && st.agg.UserID() != userID {
		st.mu.Unlock()
		return errors.NewNotFoundError("session")
	}
	err := c.sessions.Delete(ctx, userID, sessionID)
	if err == nil {
		st.agg = nil
		st.dirty = false
	}
	st.mu.Unlock()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.generation[sessionID.String()]++
	delete(c.cursors, sessionID.String())
	delete(c.states, sessionID.String())
	c.mu.Unlock()
	return nil
}

// SetChatCursor moves the chat cursor to a node
func (c *ExplorationController) SetChatCursor(sessionID valueobjects.SessionID, nodeID valueobjects.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureCursorsLocked(sessionID)
	cur.ChatNodeID = nodeID
}

// SetGraphCursor moves the graph cursor to a node
func (c *ExplorationController) SetGraphCursor(sessionID valueobjects.SessionID, nodeID valueobjects.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureCursorsLocked(sessionID)
	cur.GraphNodeID = nodeID
}

// SyncCursors aligns one cursor to the other. Direction "chat" copies
// the graph cursor onto the chat cursor, "graph" the reverse.
func (c *ExplorationController) SyncCursors(sessionID valueobjects.SessionID, direction string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureCursorsLocked(sessionID)
	switch direction {
	case "chat":
		cur.ChatNodeID = cur.GraphNodeID
	case "graph":
		cur.GraphNodeID = cur.ChatNodeID
	default:
		return errors.NewValidationError("sync direction must be chat or graph")
	}
	return nil
}

// GetCursors returns the current cursor pair for a session
func (c *ExplorationController) GetCursors(sessionID valueobjects.SessionID) Cursors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.ensureCursorsLocked(sessionID)
}

// Close waits for pending write-behind saves to finish
func (c *ExplorationController) Close() {
	c.saveWG.Wait()
}

// withSession runs fn against the session's in-memory authority under
// its lock, loading the aggregate from storage on first touch
func (c *ExplorationController) withSession(ctx context.Context, userID string, sessionID valueobjects.SessionID, fn func(*aggregates.Exploration) error) error {
	st := c.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.sessionLocked(ctx, st, userID, sessionID)
	if err != nil {
		return err
	}
	return fn(session)
}

// applyToSession mutates the session's in-memory authority and
// schedules a write-behind save. Storage is a mirror: a mutation never
// rereads it, so an in-flight save cannot hand back stale state.
func (c *ExplorationController) applyToSession(ctx context.Context, userID string, sessionID valueobjects.SessionID, mutate func(*aggregates.Exploration) error) error {
	st := c.stateFor(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := c.sessionLocked(ctx, st, userID, sessionID)
	if err != nil {
		return err
	}
	if err := mutate(session); err != nil {
		return err
	}
	c.publishEvents(ctx, session)
	c.scheduleSaveLocked(st)
	return nil
}

// sessionLocked returns the cached aggregate, loading it from the
// repository when the session has not been touched since startup.
// Callers hold st.mu.
func (c *ExplorationController) sessionLocked(ctx context.Context, st *sessionState, userID string, sessionID valueobjects.SessionID) (*aggregates.Exploration, error) {
	if st.agg == nil {
		session, err := c.sessions.FindByID(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		st.agg = session
	}
	if st.agg.UserID() != userID {
		return nil, errors.NewNotFoundError("session")
	}
	return st.agg, nil
}

// scheduleSaveLocked marks the session dirty and starts a flusher if
// none is running. One flusher drains all saves for a session, so
// commits can never reorder. Callers hold st.mu.
func (c *ExplorationController) scheduleSaveLocked(st *sessionState) {
	st.dirty = true
	if st.saving {
		return
	}
	st.saving = true
	c.saveWG.Add(1)
	go c.flush(st)
}

// flush persists the session until no dirty mark remains. The lock is
// held across each Save so the encoder never races a mutation and a
// delete cannot interleave with a commit. Failures are logged and
// counted, not retried; the next mutation rewrites the full blob.
func (c *ExplorationController) flush(st *sessionState) {
	defer c.saveWG.Done()
	for {
		st.mu.Lock()
		if !st.dirty || st.agg == nil {
			st.saving = false
			st.mu.Unlock()
			return
		}
		st.dirty = false
		session := st.agg

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.sessions.Save(ctx, session)
		cancel()

		if err != nil {
			c.logger.Error("write-behind save failed",
				zap.String("session", session.ID().String()), zap.Error(err))
			if c.metrics != nil {
				c.metrics.PersistenceFailures.Inc()
			}
		} else if c.metrics != nil {
			c.metrics.SessionsPersisted.Inc()
		}
		st.mu.Unlock()
	}
}

// publishEvents drains the aggregate's pending events
func (c *ExplorationController) publishEvents(ctx context.Context, session *aggregates.Exploration) {
	batch := session.GetUncommittedEvents()
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.Publish(ctx, batch); err != nil {
		c.logger.Warn("event publish failed", zap.Error(err))
	}
	session.MarkEventsAsCommitted()
}

// userAPIKey resolves the provider key for operations that require the
// user's own key
func (c *ExplorationController) userAPIKey(ctx context.Context, userID string) (string, error) {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.HasAPIKey() {
		return "", errors.NewValidationError("no API key configured; add your Groq key in settings")
	}
	return user.GroqAPIKey(), nil
}

// optionalAPIKey returns the user's stored key, or empty so the
// gateway falls back to the server-keyed provider
func (c *ExplorationController) optionalAPIKey(ctx context.Context, userID string) (string, error) {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.GroqAPIKey(), nil
}

func (c *ExplorationController) stateFor(sessionID valueobjects.SessionID) *sessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[sessionID.String()]
	if !ok {
		st = &sessionState{}
		c.states[sessionID.String()] = st
	}
	return st
}

func (c *ExplorationController) ensureCursorsLocked(sessionID valueobjects.SessionID) *Cursors {
	cur, ok := c.cursors[sessionID.String()]
	if !ok {
		cur = &Cursors{}
		c.cursors[sessionID.String()] = cur
	}
	return cur
}
