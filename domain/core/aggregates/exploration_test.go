package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"millionx-backend/domain/config"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/pkg/errors"
)

func newTestExploration(t *testing.T) *Exploration {
	t.Helper()
	session, err := NewExploration("user-1", "Linear Algebra", config.DefaultDomainConfig())
	require.NoError(t, err)
	return session
}

func TestNewExploration(t *testing.T) {
	session := newTestExploration(t)

	assert.Equal(t, "user-1", session.UserID())
	assert.Equal(t, "Linear Algebra", session.Title())
	require.Equal(t, 1, session.NodeCount())

	root := session.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Linear Algebra", root.Title())
	assert.Equal(t, 0, root.Depth())
	assert.Equal(t, 0.0, root.Position().X())
	assert.Equal(t, 0.0, root.Position().Y())
	assert.False(t, root.HasExplored())

	assert.NoError(t, session.Validate())
}

func TestInitialQueryKeepsStartingTopic(t *testing.T) {
	session := newTestExploration(t)
	require.NoError(t, session.SetTitle("A Friendly Introduction"))

	// Retitling never touches the query the session was started with.
	assert.Equal(t, "A Friendly Introduction", session.Title())
	assert.Equal(t, "Linear Algebra", session.InitialQuery())
}

func TestNewExplorationRejectsEmptyTopic(t *testing.T) {
	_, err := NewExploration("user-1", "   ", config.DefaultDomainConfig())
	assert.Error(t, err)
}

func TestAttachChildren(t *testing.T) {
	session := newTestExploration(t)
	root := session.Root()

	children, err := session.AttachChildren(root.ID(), []ChildTopic{
		{Title: "Vectors", Description: "Arrows with direction and magnitude"},
		{Title: "Matrices", Description: "Rectangular arrays of numbers"},
	})
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.True(t, root.HasExplored())
	assert.Equal(t, 3, session.NodeCount())
	assert.Len(t, session.Connections(), 2)

	for _, child := range children {
		assert.Equal(t, 1, child.Depth())
		parent, ok := session.Parent(child.ID())
		require.True(t, ok)
		assert.Equal(t, root.ID(), parent.ID())
	}

	assert.NoError(t, session.Validate())
}

func TestAttachChildrenLayout(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	session := newTestExploration(t)
	root := session.Root()

	children, err := session.AttachChildren(root.ID(), []ChildTopic{
		{Title: "Vectors"},
		{Title: "Matrices"},
	})
	require.NoError(t, err)
	require.Len(t, children, 2)

	// Children sit one column to the right of the parent, vertically
	// centered on it.
	wantX := cfg.Layout.NodeWidth + cfg.Layout.ParentChildSpacing
	totalH := 2*cfg.Layout.NodeHeight + cfg.Layout.SiblingSpacing
	wantY0 := cfg.Layout.NodeHeight/2 - totalH/2

	assert.Equal(t, wantX, children[0].Position().X())
	assert.Equal(t, wantY0, children[0].Position().Y())
	assert.Equal(t, wantX, children[1].Position().X())
	assert.Equal(t, wantY0+cfg.Layout.NodeHeight+cfg.Layout.SiblingSpacing, children[1].Position().Y())
}

func TestAttachChildrenSkipsDuplicateTitles(t *testing.T) {
	session := newTestExploration(t)
	root := session.Root()

	first, err := session.AttachChildren(root.ID(), []ChildTopic{
		{Title: "Vectors"},
		{Title: "Matrices"},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Matching is case-insensitive, and in-batch repeats collapse too.
	second, err := session.AttachChildren(first[0].ID(), []ChildTopic{
		{Title: "vectors"},
		{Title: "  MATRICES  "},
		{Title: "Determinants"},
		{Title: "determinants"},
	})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "Determinants", second[0].Title())
}

func TestAttachChildrenAllDuplicatesStillMarksExplored(t *testing.T) {
	session := newTestExploration(t)
	root := session.Root()

	children, err := session.AttachChildren(root.ID(), []ChildTopic{
		{Title: "Linear Algebra"},
	})
	require.NoError(t, err)
	assert.Empty(t, children)
	assert.True(t, root.HasExplored())
}

func TestAttachChildrenTwiceConflicts(t *testing.T) {
	session := newTestExploration(t)
	root := session.Root()

	_, err := session.AttachChildren(root.ID(), []ChildTopic{{Title: "Vectors"}})
	require.NoError(t, err)

	_, err = session.AttachChildren(root.ID(), []ChildTopic{{Title: "Spans"}})
	assert.True(t, errors.IsConflict(err))
}

func TestAttachChildrenDepthLimit(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.Exploration.MaxDepth = 2

	session, err := NewExploration("user-1", "Root", cfg)
	require.NoError(t, err)

	level1, err := session.AttachChildren(session.Root().ID(), []ChildTopic{{Title: "L1"}})
	require.NoError(t, err)
	level2, err := session.AttachChildren(level1[0].ID(), []ChildTopic{{Title: "L2"}})
	require.NoError(t, err)

	_, err = session.AttachChildren(level2[0].ID(), []ChildTopic{{Title: "L3"}})
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	session := newTestExploration(t)

	level1, err := session.AttachChildren(session.Root().ID(), []ChildTopic{{Title: "Vectors"}})
	require.NoError(t, err)
	level2, err := session.AttachChildren(level1[0].ID(), []ChildTopic{{Title: "Dot Product"}})
	require.NoError(t, err)

	path, err := session.Path(level2[0].ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"Linear Algebra", "Vectors", "Dot Product"}, path)
}

func TestVisibleWindow(t *testing.T) {
	session := newTestExploration(t)
	root := session.Root()

	level1, err := session.AttachChildren(root.ID(), []ChildTopic{{Title: "A"}, {Title: "B"}})
	require.NoError(t, err)
	level2, err := session.AttachChildren(level1[0].ID(), []ChildTopic{{Title: "C"}})
	require.NoError(t, err)
	level3, err := session.AttachChildren(level2[0].ID(), []ChildTopic{{Title: "D"}})
	require.NoError(t, err)

	window, err := session.VisibleWindow(level3[0].ID())
	require.NoError(t, err)

	titles := make(map[string]bool, len(window))
	for _, n := range window {
		titles[n.Title()] = true
	}

	// Active node, its parent chain, and the siblings hanging off the
	// grandparent and great-grandparent are all in view.
	for _, want := range []string{"D", "C", "A", "B", "Linear Algebra"} {
		assert.True(t, titles[want], "expected %q in window", want)
	}
}

func TestRecordChatTurnRequiresContent(t *testing.T) {
	session := newTestExploration(t)
	rootID := session.Root().ID()

	err := session.RecordChatTurn(rootID, entities.ChatTurn{
		Role:      entities.ChatRoleUser,
		Content:   "why?",
		Timestamp: time.Now(),
	})
	assert.Error(t, err)

	content, err := valueobjects.NewNodeContent("Linear algebra is the study of linear maps.")
	require.NoError(t, err)
	require.NoError(t, session.SetNodeContent(rootID, content))

	err = session.RecordChatTurn(rootID, entities.ChatTurn{
		Role:      entities.ChatRoleUser,
		Content:   "why?",
		Timestamp: time.Now(),
	})
	assert.NoError(t, err)
}

func TestRollbackChatTurn(t *testing.T) {
	session := newTestExploration(t)
	rootID := session.Root().ID()

	content, err := valueobjects.NewNodeContent("explanation")
	require.NoError(t, err)
	require.NoError(t, session.SetNodeContent(rootID, content))

	require.NoError(t, session.RecordChatTurn(rootID, entities.ChatTurn{
		Role: entities.ChatRoleUser, Content: "q", Timestamp: time.Now(),
	}))
	require.NoError(t, session.RollbackChatTurn(rootID))

	node, err := session.NodeByID(rootID)
	require.NoError(t, err)
	assert.Empty(t, node.ChatHistory())
}

func TestClearChat(t *testing.T) {
	session := newTestExploration(t)
	rootID := session.Root().ID()

	content, err := valueobjects.NewNodeContent("explanation")
	require.NoError(t, err)
	require.NoError(t, session.SetNodeContent(rootID, content))

	for _, msg := range []string{"q1", "a1", "q2"} {
		require.NoError(t, session.RecordChatTurn(rootID, entities.ChatTurn{
			Role: entities.ChatRoleUser, Content: msg, Timestamp: time.Now(),
		}))
	}
	require.NoError(t, session.ClearChat(rootID))

	node, err := session.NodeByID(rootID)
	require.NoError(t, err)
	assert.Empty(t, node.ChatHistory())

	require.NoError(t, session.ClearChat(rootID))
	assert.Empty(t, node.ChatHistory())
}

func TestMoveNode(t *testing.T) {
	session := newTestExploration(t)
	rootID := session.Root().ID()

	pos, err := valueobjects.NewPosition(42, -17)
	require.NoError(t, err)
	require.NoError(t, session.MoveNode(rootID, pos))

	assert.Equal(t, 42.0, session.Root().Position().X())
	assert.Equal(t, -17.0, session.Root().Position().Y())
}

func TestUncommittedEvents(t *testing.T) {
	session := newTestExploration(t)

	events := session.GetUncommittedEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, "exploration.started", events[0].GetEventType())

	session.MarkEventsAsCommitted()
	assert.Empty(t, session.GetUncommittedEvents())
}
