package integration

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"millionx-backend/application/commands"
	commandbus "millionx-backend/application/commands/bus"
	"millionx-backend/application/ports"
	"millionx-backend/application/queries"
	querybus "millionx-backend/application/queries/bus"
	"millionx-backend/application/services"
	"millionx-backend/domain/config"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/events"
	"millionx-backend/domain/versioning"
	"millionx-backend/infrastructure/persistence/sqlite"
	"millionx-backend/pkg/auth"
	apperrors "millionx-backend/pkg/errors"
)

// stubAI returns canned responses so the full stack runs without a
// provider
type stubAI struct{}

func (stubAI) Explain(ctx context.Context, req ports.ExplainRequest) (string, error) {
	return "explanation of " + req.Topic, nil
}

func (stubAI) ExtractPrerequisites(ctx context.Context, req ports.PrerequisitesRequest) ([]ports.Prerequisite, error) {
	return []ports.Prerequisite{
		{Title: "Limits", Description: "what happens near a point"},
		{Title: "Functions", Description: "mappings between sets"},
	}, nil
}

func (stubAI) Chat(ctx context.Context, req ports.ChatRequest) (string, error) {
	return "because " + req.Question, nil
}

func (stubAI) GenerateTitle(ctx context.Context, topic string) (string, error) {
	return topic, nil
}

func (stubAI) ValidateAPIKey(ctx context.Context, key string) (bool, error) {
	return true, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, batch []events.DomainEvent) error { return nil }

// captureMailer records the last magic link instead of sending it
type captureMailer struct {
	lastLink string
}

func (m *captureMailer) SendMagicLink(ctx context.Context, email, link string) error {
	m.lastLink = link
	return nil
}

func (m *captureMailer) lastToken(t *testing.T) string {
	t.Helper()
	parsed, err := url.Parse(m.lastLink)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

type stack struct {
	controller *services.ExplorationController
	commandBus *commandbus.CommandBus
	queryBus   *querybus.QueryBus
	userID     string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultDomainConfig()
	sessions := sqlite.NewSessionRepository(db, versioning.NewSnapshotCodec(), cfg)
	users := sqlite.NewUserRepository(db)

	user, err := entities.NewUser("alice@example.com")
	require.NoError(t, err)
	user.SetGroqAPIKey("gsk_integration_key")
	require.NoError(t, users.Save(ctx, user))

	controller := services.NewExplorationController(
		sessions, users, stubAI{}, nopPublisher{}, cfg, zap.NewNop(), nil,
	)
	t.Cleanup(controller.Close)

	cb := commandbus.NewCommandBus()
	require.NoError(t, cb.Register(&commands.StartTopicCommand{}, commands.NewStartTopicHandler(controller)))
	require.NoError(t, cb.Register(&commands.EnsureNodeContentCommand{}, commands.NewEnsureNodeContentHandler(controller)))
	require.NoError(t, cb.Register(&commands.ExpandNodeCommand{}, commands.NewExpandNodeHandler(controller)))
	require.NoError(t, cb.Register(&commands.RecordChatTurnCommand{}, commands.NewRecordChatTurnHandler(controller)))
	require.NoError(t, cb.Register(&commands.DeleteSessionCommand{}, commands.NewDeleteSessionHandler(controller)))

	qb := querybus.NewQueryBus()
	require.NoError(t, qb.Register(queries.ListSessionsQuery{}, queries.NewListSessionsHandler(sessions)))
	require.NoError(t, qb.Register(queries.GetSessionQuery{}, queries.NewGetSessionHandler(sessions)))
	require.NoError(t, qb.Register(queries.GetGraphViewQuery{}, queries.NewGetGraphViewHandler(sessions, cfg)))

	return &stack{
		controller: controller,
		commandBus: cb,
		queryBus:   qb,
		userID:     user.ID(),
	}
}

// flush waits for write-behind saves so the next read sees them
func (s *stack) flush() {
	s.controller.Close()
}

func TestExplorationFlow(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	start := &commands.StartTopicCommand{UserID: st.userID, Topic: "Calculus"}
	require.NoError(t, st.commandBus.Send(ctx, start))
	require.NotNil(t, start.Result)
	sessionID := start.Result.ID().String()
	rootID := start.Result.Root().ID().String()

	listed, err := st.queryBus.Ask(ctx, queries.ListSessionsQuery{UserID: st.userID, Offset: 0, Limit: 20})
	require.NoError(t, err)
	listing, ok := listed.(*queries.ListSessionsResult)
	require.True(t, ok)
	require.Equal(t, 1, listing.Total)
	assert.Equal(t, "Calculus", listing.Sessions[0].Title)

	ensure := &commands.EnsureNodeContentCommand{UserID: st.userID, SessionID: sessionID, NodeID: rootID}
	require.NoError(t, st.commandBus.Send(ctx, ensure))
	assert.Equal(t, "explanation of Calculus", ensure.Result)
	st.flush()

	expand := &commands.ExpandNodeCommand{UserID: st.userID, SessionID: sessionID, NodeID: rootID, Mode: "rabbitHole"}
	require.NoError(t, st.commandBus.Send(ctx, expand))
	require.Len(t, expand.Result, 2)
	st.flush()

	chat := &commands.RecordChatTurnCommand{UserID: st.userID, SessionID: sessionID, NodeID: rootID, Question: "why limits?"}
	require.NoError(t, st.commandBus.Send(ctx, chat))
	assert.Equal(t, "because why limits?", chat.Result)
	st.flush()

	fetched, err := st.queryBus.Ask(ctx, queries.GetSessionQuery{UserID: st.userID, SessionID: sessionID})
	require.NoError(t, err)
	dto, ok := fetched.(*queries.SessionDTO)
	require.True(t, ok)
	assert.Len(t, dto.Nodes, 3)
	assert.Len(t, dto.Connections, 2)
	for _, n := range dto.Nodes {
		if n.ID == rootID {
			assert.Equal(t, "explanation of Calculus", n.Content)
			assert.True(t, n.HasExplored)
			require.Len(t, n.ChatHistory, 2)
			assert.Equal(t, "why limits?", n.ChatHistory[0].Content)
		}
	}

	viewed, err := st.queryBus.Ask(ctx, queries.GetGraphViewQuery{UserID: st.userID, SessionID: sessionID})
	require.NoError(t, err)
	view, ok := viewed.(*queries.GraphViewResult)
	require.True(t, ok)
	assert.Equal(t, rootID, view.ActiveNodeID)
	assert.Len(t, view.Nodes, 3)
	assert.Len(t, view.Edges, 2)

	del := &commands.DeleteSessionCommand{UserID: st.userID, SessionID: sessionID}
	require.NoError(t, st.commandBus.Send(ctx, del))

	_, err = st.queryBus.Ask(ctx, queries.GetSessionQuery{UserID: st.userID, SessionID: sessionID})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestExplorationSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfg := config.DefaultDomainConfig()

	db, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	sessions := sqlite.NewSessionRepository(db, versioning.NewSnapshotCodec(), cfg)
	users := sqlite.NewUserRepository(db)

	user, err := entities.NewUser("alice@example.com")
	require.NoError(t, err)
	user.SetGroqAPIKey("gsk_integration_key")
	require.NoError(t, users.Save(ctx, user))

	controller := services.NewExplorationController(
		sessions, users, stubAI{}, nopPublisher{}, cfg, zap.NewNop(), nil,
	)
	session, err := controller.StartTopic(ctx, user.ID(), "Topology")
	require.NoError(t, err)
	_, err = controller.ExpandNode(ctx, user.ID(), session.ID(), session.Root().ID(), ports.ModeSubjectMastery)
	require.NoError(t, err)
	controller.Close()
	require.NoError(t, db.Close())

	db2, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	defer db2.Close()
	sessions2 := sqlite.NewSessionRepository(db2, versioning.NewSnapshotCodec(), cfg)

	reloaded, err := sessions2.FindByID(ctx, user.ID(), session.ID())
	require.NoError(t, err)
	assert.Equal(t, "Topology", reloaded.Title())
	assert.Equal(t, "Topology", reloaded.InitialQuery())
	assert.Equal(t, 3, reloaded.NodeCount())
	assert.True(t, reloaded.Root().HasExplored())
	require.NoError(t, reloaded.Validate())
}

func TestMagicLinkAuthFlow(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	defer db.Close()

	users := sqlite.NewUserRepository(db)
	authRepo := sqlite.NewAuthRepository(db)
	mailer := &captureMailer{}
	tokens, err := auth.NewTokenIssuer("integration-secret", "millionx")
	require.NoError(t, err)
	limiter := auth.NewTokenBucketLimiter(1, 5)
	defer limiter.Stop()

	svc := services.NewAuthService(
		users, authRepo, mailer, tokens, limiter, zap.NewNop(),
		"http://localhost:8080", 15*time.Minute, 24*time.Hour,
	)

	require.NoError(t, svc.RequestMagicLink(ctx, "Bob@Example.com"))
	linkToken := mailer.lastToken(t)

	// First sign-in creates the account.
	sessionToken, user, err := svc.VerifyMagicLink(ctx, linkToken)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Email())
	assert.True(t, user.EmailVerified())
	require.NotEmpty(t, sessionToken)

	// The verification timestamp is on the stored row, not just the
	// returned entity.
	stored, err := users.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified())

	authed, err := svc.Authenticate(ctx, sessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID(), authed.ID())

	// The link is single-use.
	_, _, err = svc.VerifyMagicLink(ctx, linkToken)
	assert.True(t, apperrors.IsUnauthorized(err))

	// A second link signs in to the same account.
	require.NoError(t, svc.RequestMagicLink(ctx, "bob@example.com"))
	_, again, err := svc.VerifyMagicLink(ctx, mailer.lastToken(t))
	require.NoError(t, err)
	assert.Equal(t, user.ID(), again.ID())

	require.NoError(t, svc.Logout(ctx, sessionToken))
	_, err = svc.Authenticate(ctx, sessionToken)
	assert.Error(t, err)
}
