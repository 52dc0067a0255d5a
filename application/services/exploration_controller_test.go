package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/domain/config"
	"millionx-backend/domain/core/aggregates"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/domain/events"
	"millionx-backend/domain/versioning"
	"millionx-backend/pkg/errors"
)

// fakeSessionRepo keeps aggregates in a map scoped by owner
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*aggregates.Exploration
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*aggregates.Exploration)}
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *aggregates.Exploration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID().String()] = session
	return nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, userID string, id valueobjects.SessionID) (*aggregates.Exploration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id.String()]
	if !ok || session.UserID() != userID {
		return nil, errors.NewNotFoundError("session")
	}
	return session, nil
}

func (r *fakeSessionRepo) List(ctx context.Context, userID string, offset, limit int) ([]ports.SessionSummary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ports.SessionSummary
	for _, s := range r.sessions {
		if s.UserID() != userID {
			continue
		}
		out = append(out, ports.SessionSummary{ID: s.ID(), Title: s.Title(), NodeCount: s.NodeCount()})
	}
	return out, len(out), nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, userID string, id valueobjects.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id.String()]
	if !ok || session.UserID() != userID {
		return errors.NewNotFoundError("session")
	}
	delete(r.sessions, id.String())
	return nil
}

func (r *fakeSessionRepo) has(id valueobjects.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id.String()]
	return ok
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entities.User)}
}

func (r *fakeUserRepo) Save(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID()] = user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user")
	}
	return user, nil
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email() == email {
			return user, nil
		}
	}
	return nil, errors.NewNotFoundError("user")
}

// fakeAI scripts each gateway operation and counts calls
type fakeAI struct {
	mu           sync.Mutex
	explainCalls int
	prereqCalls  int
	chatCalls    int

	explainFn func(req ports.ExplainRequest) (string, error)
	prereqFn  func(req ports.PrerequisitesRequest) ([]ports.Prerequisite, error)
	chatFn    func(req ports.ChatRequest) (string, error)
	titleFn   func(topic string) (string, error)
}

func (a *fakeAI) Explain(ctx context.Context, req ports.ExplainRequest) (string, error) {
	a.mu.Lock()
	a.explainCalls++
	a.mu.Unlock()
	if a.explainFn != nil {
		return a.explainFn(req)
	}
	return "an explanation of " + req.Topic, nil
}

func (a *fakeAI) ExtractPrerequisites(ctx context.Context, req ports.PrerequisitesRequest) ([]ports.Prerequisite, error) {
	a.mu.Lock()
	a.prereqCalls++
	a.mu.Unlock()
	if a.prereqFn != nil {
		return a.prereqFn(req)
	}
	return []ports.Prerequisite{
		{Title: "Child One", Description: "first"},
		{Title: "Child Two", Description: "second"},
	}, nil
}

func (a *fakeAI) Chat(ctx context.Context, req ports.ChatRequest) (string, error) {
	a.mu.Lock()
	a.chatCalls++
	a.mu.Unlock()
	if a.chatFn != nil {
		return a.chatFn(req)
	}
	return "an answer", nil
}

func (a *fakeAI) GenerateTitle(ctx context.Context, topic string) (string, error) {
	if a.titleFn != nil {
		return a.titleFn(topic)
	}
	return "Title: " + topic, nil
}

func (a *fakeAI) ValidateAPIKey(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (a *fakeAI) explainCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.explainCalls
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, batch []events.DomainEvent) error { return nil }

type controllerFixture struct {
	controller *ExplorationController
	sessions   *fakeSessionRepo
	users      *fakeUserRepo
	ai         *fakeAI
	userID     string
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	sessions := newFakeSessionRepo()
	users := newFakeUserRepo()
	ai := &fakeAI{}

	user, err := entities.NewUser("alice@example.com")
	require.NoError(t, err)
	user.SetGroqAPIKey("gsk_test_key")
	require.NoError(t, users.Save(context.Background(), user))

	controller := NewExplorationController(
		sessions, users, ai, nopPublisher{},
		config.DefaultDomainConfig(), zap.NewNop(), nil,
	)
	t.Cleanup(controller.Close)

	return &controllerFixture{
		controller: controller,
		sessions:   sessions,
		users:      users,
		ai:         ai,
		userID:     user.ID(),
	}
}

func TestStartTopic(t *testing.T) {
	fx := newControllerFixture(t)

	session, err := fx.controller.StartTopic(context.Background(), fx.userID, "Fourier Transforms")
	require.NoError(t, err)

	assert.Equal(t, "Title: Fourier Transforms", session.Title())
	assert.Equal(t, 1, session.NodeCount())
	assert.True(t, fx.sessions.has(session.ID()))

	cur := fx.controller.GetCursors(session.ID())
	assert.True(t, cur.ChatNodeID.Equals(session.Root().ID()))
	assert.True(t, cur.GraphNodeID.Equals(session.Root().ID()))
}

func TestStartTopicTitleFallsBackToTopic(t *testing.T) {
	fx := newControllerFixture(t)
	fx.ai.titleFn = func(topic string) (string, error) {
		return "", fmt.Errorf("provider down")
	}

	session, err := fx.controller.StartTopic(context.Background(), fx.userID, "Fourier Transforms")
	require.NoError(t, err)
	assert.Equal(t, "Fourier Transforms", session.Title())
}

func TestStartTopicRejectsEmptyTopic(t *testing.T) {
	fx := newControllerFixture(t)

	_, err := fx.controller.StartTopic(context.Background(), fx.userID, "   ")
	assert.True(t, errors.IsValidation(err))
}

func TestEnsureNodeContentIsIdempotent(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Sorting")
	require.NoError(t, err)
	rootID := session.Root().ID()

	first, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)
	assert.Equal(t, "an explanation of Sorting", first)

	second, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fx.ai.explainCount())
}

func TestEnsureNodeContentSingleFlight(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Sorting")
	require.NoError(t, err)
	rootID := session.Root().ID()

	started := make(chan struct{})
	release := make(chan struct{})
	fx.ai.explainFn = func(req ports.ExplainRequest) (string, error) {
		close(started)
		<-release
		return "shared explanation", nil
	}

	results := make(chan string, 2)
	go func() {
		text, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
		assert.NoError(t, err)
		results <- text
	}()
	<-started
	go func() {
		text, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
		assert.NoError(t, err)
		results <- text
	}()

	// Give the second caller time to join the in-flight call before
	// the provider responds.
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "shared explanation", <-results)
	assert.Equal(t, "shared explanation", <-results)
	assert.Equal(t, 1, fx.ai.explainCount())
}

func TestEnsureNodeContentRetriesAfterProviderFailure(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Sorting")
	require.NoError(t, err)
	rootID := session.Root().ID()

	fx.ai.explainFn = func(req ports.ExplainRequest) (string, error) {
		return "", fmt.Errorf("rate limited")
	}
	_, err = fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.Error(t, err)

	node, err := session.NodeByID(rootID)
	require.NoError(t, err)
	assert.True(t, node.Content().IsError())
	assert.True(t, node.Content().NeedsGeneration())

	fx.ai.explainFn = nil
	text, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)
	assert.Equal(t, "an explanation of Sorting", text)
	assert.Equal(t, 2, fx.ai.explainCount())
}

func TestExpandNodeRequiresAPIKey(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Sorting")
	require.NoError(t, err)

	user, err := fx.users.FindByID(ctx, fx.userID)
	require.NoError(t, err)
	user.SetGroqAPIKey("")

	_, err = fx.controller.ExpandNode(ctx, fx.userID, session.ID(), session.Root().ID(), ports.ModeRabbitHole)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 0, fx.ai.prereqCalls)
}

func TestExplainAndChatWorkWithoutUserKey(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Sorting")
	require.NoError(t, err)
	rootID := session.Root().ID()

	user, err := fx.users.FindByID(ctx, fx.userID)
	require.NoError(t, err)
	user.SetGroqAPIKey("")

	// Without a stored key the gateway receives an empty key and runs
	// on the server-side provider.
	fx.ai.explainFn = func(req ports.ExplainRequest) (string, error) {
		assert.Empty(t, req.APIKey)
		return "fallback explanation", nil
	}
	fx.ai.chatFn = func(req ports.ChatRequest) (string, error) {
		assert.Empty(t, req.APIKey)
		return "fallback answer", nil
	}

	text, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)
	assert.Equal(t, "fallback explanation", text)

	answer, err := fx.controller.Chat(ctx, fx.userID, session.ID(), rootID, "why?")
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", answer)
}

func TestEnsureNodeContentDiscardsResultAfterDelete(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Sorting")
	require.NoError(t, err)
	rootID := session.Root().ID()

	fx.ai.explainFn = func(req ports.ExplainRequest) (string, error) {
		// The session disappears while the provider call is in flight.
		require.NoError(t, fx.controller.DeleteSession(ctx, fx.userID, session.ID()))
		return "late explanation", nil
	}

	text, err := fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)
	assert.Equal(t, "late explanation", text)

	// The stale result was never written back.
	assert.False(t, fx.sessions.has(session.ID()))
	node, err := session.NodeByID(rootID)
	require.NoError(t, err)
	assert.True(t, node.Content().NeedsGeneration())
}

func TestExpandNodeAttachesChildren(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Calculus")
	require.NoError(t, err)
	rootID := session.Root().ID()

	created, err := fx.controller.ExpandNode(ctx, fx.userID, session.ID(), rootID, ports.ModeRabbitHole)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "Child One", created[0].Title())

	fx.controller.Close()
	assert.Equal(t, 3, session.NodeCount())
}

func TestExpandNodeIsNoOpWhenExplored(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Calculus")
	require.NoError(t, err)
	rootID := session.Root().ID()

	_, err = fx.controller.ExpandNode(ctx, fx.userID, session.ID(), rootID, ports.ModeRabbitHole)
	require.NoError(t, err)

	again, err := fx.controller.ExpandNode(ctx, fx.userID, session.ID(), rootID, ports.ModeSubjectMastery)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, 1, fx.ai.prereqCalls)
}

func TestExpandNodeRejectsUnknownMode(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Calculus")
	require.NoError(t, err)

	_, err = fx.controller.ExpandNode(ctx, fx.userID, session.ID(), session.Root().ID(), "sideways")
	assert.True(t, errors.IsValidation(err))
}

func TestExpandNodeConflictsWhileInFlight(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Calculus")
	require.NoError(t, err)
	rootID := session.Root().ID()

	started := make(chan struct{})
	release := make(chan struct{})
	fx.ai.prereqFn = func(req ports.PrerequisitesRequest) ([]ports.Prerequisite, error) {
		close(started)
		<-release
		return []ports.Prerequisite{{Title: "Limits"}}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := fx.controller.ExpandNode(ctx, fx.userID, session.ID(), rootID, ports.ModeRabbitHole)
		done <- err
	}()
	<-started

	_, err = fx.controller.ExpandNode(ctx, fx.userID, session.ID(), rootID, ports.ModeRabbitHole)
	assert.True(t, errors.IsConflict(err))

	close(release)
	require.NoError(t, <-done)
}

func TestChatRecordsBothTurns(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Gravity")
	require.NoError(t, err)
	rootID := session.Root().ID()
	_, err = fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)

	answer, err := fx.controller.Chat(ctx, fx.userID, session.ID(), rootID, "why does it pull?")
	require.NoError(t, err)
	assert.Equal(t, "an answer", answer)

	fx.controller.Close()
	node, err := session.NodeByID(rootID)
	require.NoError(t, err)
	history := node.ChatHistory()
	require.Len(t, history, 2)
	assert.Equal(t, entities.ChatRoleUser, history[0].Role)
	assert.Equal(t, "why does it pull?", history[0].Content)
	assert.Equal(t, entities.ChatRoleAssistant, history[1].Role)
}

func TestChatRollsBackQuestionOnProviderFailure(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Gravity")
	require.NoError(t, err)
	rootID := session.Root().ID()
	_, err = fx.controller.EnsureNodeContent(ctx, fx.userID, session.ID(), rootID)
	require.NoError(t, err)

	fx.ai.chatFn = func(req ports.ChatRequest) (string, error) {
		return "", fmt.Errorf("provider down")
	}
	_, err = fx.controller.Chat(ctx, fx.userID, session.ID(), rootID, "why?")
	require.Error(t, err)

	fx.controller.Close()
	node, err := session.NodeByID(rootID)
	require.NoError(t, err)
	assert.Empty(t, node.ChatHistory())
}

func TestChatRequiresLoadedContent(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Gravity")
	require.NoError(t, err)

	_, err = fx.controller.Chat(ctx, fx.userID, session.ID(), session.Root().ID(), "why?")
	assert.True(t, errors.IsConflict(err))
	assert.Equal(t, 0, fx.ai.chatCalls)
}

func TestCursorSync(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Graphs")
	require.NoError(t, err)
	children, err := fx.controller.ExpandNode(ctx, fx.userID, session.ID(), session.Root().ID(), ports.ModeRabbitHole)
	require.NoError(t, err)
	require.NotEmpty(t, children)

	fx.controller.SetGraphCursor(session.ID(), children[0].ID())
	require.NoError(t, fx.controller.SyncCursors(session.ID(), "chat"))
	cur := fx.controller.GetCursors(session.ID())
	assert.True(t, cur.ChatNodeID.Equals(children[0].ID()))

	fx.controller.SetChatCursor(session.ID(), session.Root().ID())
	require.NoError(t, fx.controller.SyncCursors(session.ID(), "graph"))
	cur = fx.controller.GetCursors(session.ID())
	assert.True(t, cur.GraphNodeID.Equals(session.Root().ID()))

	err = fx.controller.SyncCursors(session.ID(), "diagonal")
	assert.True(t, errors.IsValidation(err))
}

// snapshotRow is one committed copy of a session in the serializing
// repo
type snapshotRow struct {
	userID       string
	title        string
	initialQuery string
	nodesBlob    string
	connsBlob    string
	createdAt    time.Time
	updatedAt    time.Time
}

// serializingSessionRepo round-trips every Save through the snapshot
// codec with a commit latency, the way the SQLite repository does.
// FindByID decodes the last committed blob instead of handing back a
// live pointer, so reads observe only what has actually been written.
type serializingSessionRepo struct {
	mu      sync.Mutex
	codec   *versioning.SnapshotCodec
	latency time.Duration
	rows    map[string]snapshotRow
	saves   int
}

func newSerializingSessionRepo(latency time.Duration) *serializingSessionRepo {
	return &serializingSessionRepo{
		codec:   versioning.NewSnapshotCodec(),
		latency: latency,
		rows:    make(map[string]snapshotRow),
	}
}

func (r *serializingSessionRepo) Save(ctx context.Context, session *aggregates.Exploration) error {
	nodesBlob, err := r.codec.EncodeNodes(session.Nodes())
	if err != nil {
		return err
	}
	connsBlob, err := r.codec.EncodeConnections(session.Connections())
	if err != nil {
		return err
	}
	time.Sleep(r.latency)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.rows[session.ID().String()] = snapshotRow{
		userID:       session.UserID(),
		title:        session.Title(),
		initialQuery: session.InitialQuery(),
		nodesBlob:    nodesBlob,
		connsBlob:    connsBlob,
		createdAt:    session.CreatedAt(),
		updatedAt:    session.UpdatedAt(),
	}
	return nil
}

func (r *serializingSessionRepo) FindByID(ctx context.Context, userID string, id valueobjects.SessionID) (*aggregates.Exploration, error) {
	r.mu.Lock()
	row, ok := r.rows[id.String()]
	r.mu.Unlock()
	if !ok || row.userID != userID {
		return nil, errors.NewNotFoundError("session")
	}
	nodes, err := r.codec.DecodeNodes(versioning.CurrentSchemaVersion, row.nodesBlob)
	if err != nil {
		return nil, err
	}
	conns, err := r.codec.DecodeConnections(versioning.CurrentSchemaVersion, row.connsBlob)
	if err != nil {
		return nil, err
	}
	return aggregates.ReconstructExploration(
		id, row.userID, row.title, row.initialQuery,
		nodes, conns, row.createdAt, row.updatedAt,
		config.DefaultDomainConfig(),
	)
}

func (r *serializingSessionRepo) List(ctx context.Context, userID string, offset, limit int) ([]ports.SessionSummary, int, error) {
	return nil, 0, nil
}

func (r *serializingSessionRepo) Delete(ctx context.Context, userID string, id valueobjects.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id.String()]
	if !ok || row.userID != userID {
		return errors.NewNotFoundError("session")
	}
	delete(r.rows, id.String())
	return nil
}

func TestBackToBackMutationsSurviveSlowCommits(t *testing.T) {
	sessions := newSerializingSessionRepo(40 * time.Millisecond)
	users := newFakeUserRepo()
	ai := &fakeAI{}

	user, err := entities.NewUser("bob@example.com")
	require.NoError(t, err)
	user.SetGroqAPIKey("gsk_test_key")
	require.NoError(t, users.Save(context.Background(), user))

	controller := NewExplorationController(
		sessions, users, ai, nopPublisher{},
		config.DefaultDomainConfig(), zap.NewNop(), nil,
	)

	ctx := context.Background()
	session, err := controller.StartTopic(ctx, user.ID(), "Entropy")
	require.NoError(t, err)
	rootID := session.Root().ID()

	// Each step mutates before the previous save has committed. No
	// write may be lost to a read of the older committed blob.
	_, err = controller.EnsureNodeContent(ctx, user.ID(), session.ID(), rootID)
	require.NoError(t, err)
	answer, err := controller.Chat(ctx, user.ID(), session.ID(), rootID, "why does it grow?")
	require.NoError(t, err)
	assert.Equal(t, "an answer", answer)

	controller.Close()

	reloaded, err := sessions.FindByID(ctx, user.ID(), session.ID())
	require.NoError(t, err)
	node, err := reloaded.NodeByID(rootID)
	require.NoError(t, err)
	assert.Equal(t, "an explanation of Entropy", node.Content().Text())
	history := node.ChatHistory()
	require.Len(t, history, 2)
	assert.Equal(t, entities.ChatRoleUser, history[0].Role)
	assert.Equal(t, "why does it grow?", history[0].Content)
	assert.Equal(t, entities.ChatRoleAssistant, history[1].Role)
	assert.Equal(t, "an answer", history[1].Content)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	fx := newControllerFixture(t)
	ctx := context.Background()

	session, err := fx.controller.StartTopic(ctx, fx.userID, "Graphs")
	require.NoError(t, err)

	_, err = fx.controller.EnsureNodeContent(ctx, "someone-else", session.ID(), session.Root().ID())
	assert.True(t, errors.IsNotFound(err))
}
