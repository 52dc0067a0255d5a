package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"millionx-backend/application/queries"
	"millionx-backend/domain/config"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
)

type viewMode int

const (
	modeChat viewMode = iota
	modeTree
	modeGraph
)

// Model is the top-level Bubble Tea model. It keeps one session loaded
// and switches between the chat, tree, and graph renditions of it.
type Model struct {
	client *Client
	cfg    *config.DomainConfig

	sessionID string
	session   *queries.SessionDTO
	activeID  string

	mode  viewMode
	chat  chatView
	tree  treeView
	graph graphView

	spin   spinner.Model
	busy   bool
	status string
	err    error

	width  int
	height int
}

// Messages emitted by API commands
type (
	sessionLoadedMsg struct{ session *queries.SessionDTO }
	contentMsg       struct {
		nodeID  string
		content string
	}
	expandedMsg struct {
		nodeID   string
		children []queries.NodeDTO
	}
	answerMsg struct {
		nodeID string
		answer string
	}
	apiErrMsg struct{ err error }
)

// NewModel creates a model for an existing session
func NewModel(client *Client, cfg *config.DomainConfig, sessionID string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return Model{
		client:    client,
		cfg:       cfg,
		sessionID: sessionID,
		mode:      modeChat,
		chat:      newChatView(),
		tree:      newTreeView(),
		graph:     newGraphView(cfg),
		spin:      s,
		status:    "loading session...",
		busy:      true,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadSessionCmd())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chat.resize(msg.Width, msg.Height)
		m.graph.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.mode == modeChat && m.chat.input.Focused() && msg.String() == "q" {
				break // typing
			}
			return m, tea.Quit
		case "tab":
			return m.cycleMode()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case sessionLoadedMsg:
		m.session = msg.session
		m.busy = false
		m.status = ""
		if m.activeID == "" {
			m.activeID = rootNodeID(msg.session)
		}
		m.tree.rebuild(m.session, m.activeID)
		m.graph.center(m.session, m.activeID)
		cmd := m.ensureContentCmd(m.activeID)
		return m, cmd

	case contentMsg:
		m.busy = false
		m.status = ""
		setNodeContent(m.session, msg.nodeID, msg.content)
		return m, nil

	case expandedMsg:
		m.busy = false
		m.status = fmt.Sprintf("%d new topics", len(msg.children))
		// Reload to pick up positions and connections
		return m, m.loadSessionCmd()

	case answerMsg:
		m.busy = false
		m.status = ""
		appendChatTurns(m.session, msg.nodeID, m.chat.pendingQuestion, msg.answer)
		m.chat.pendingQuestion = ""
		return m, nil

	case apiErrMsg:
		m.busy = false
		m.err = msg.err
		m.status = ""
		return m, nil
	}

	if m.session == nil {
		return m, nil
	}

	switch m.mode {
	case modeChat:
		return m.updateChat(msg)
	case modeTree:
		return m.updateTree(msg)
	case modeGraph:
		return m.updateGraph(msg)
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	header := "millionx"
	if m.session != nil {
		header = m.session.Title
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("  " + statusStyle.Render(m.modeLabel()))
	b.WriteString("\n")

	if findNode(m.session, m.activeID) != nil {
		b.WriteString(breadcrumbStyle.Render(breadcrumb(m.session, m.activeID)))
		b.WriteString("\n\n")
	}

	switch m.mode {
	case modeChat:
		b.WriteString(m.chat.view(m.session, m.activeID))
	case modeTree:
		b.WriteString(m.tree.view(m.session))
	case modeGraph:
		b.WriteString(m.graph.view(m.session, m.activeID))
	}

	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spin.View() + " thinking...")
	} else if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n" + statusStyle.Render(m.helpLine()))

	return b.String()
}

func (m Model) modeLabel() string {
	switch m.mode {
	case modeChat:
		return "[chat]"
	case modeTree:
		return "[tree]"
	default:
		return "[graph]"
	}
}

func (m Model) helpLine() string {
	switch m.mode {
	case modeChat:
		return "tab: switch view · enter: ask · ctrl+c: quit"
	case modeTree:
		return "tab: switch view · ↑/↓: select · enter: open · e: expand · backspace: up · q: quit"
	default:
		return "tab: switch view · arrows: pan · +/-: zoom · enter: open selected · q: quit"
	}
}

func (m Model) cycleMode() (tea.Model, tea.Cmd) {
	previous := m.mode
	m.mode = (m.mode + 1) % 3
	m.err = nil

	// Leaving or entering chat realigns the two cursors, matching the
	// web app's behavior when toggling between thread and map.
	var direction string
	if previous == modeChat {
		direction = "chat"
	} else if m.mode == modeChat {
		direction = "graph"
	}

	if m.mode == modeChat {
		m.chat.input.Focus()
	} else {
		m.chat.input.Blur()
	}
	if m.mode == modeTree {
		m.tree.rebuild(m.session, m.activeID)
	}
	if m.mode == modeGraph {
		m.graph.center(m.session, m.activeID)
	}

	if direction != "" && m.session != nil {
		return m, m.syncCursorsCmd(direction)
	}
	return m, nil
}

// setActive makes a node current and fetches its content if missing
func (m *Model) setActive(nodeID string) tea.Cmd {
	m.activeID = nodeID
	m.err = nil
	m.tree.rebuild(m.session, nodeID)
	m.graph.center(m.session, nodeID)
	return m.ensureContentCmd(nodeID)
}

// API commands

func (m Model) loadSessionCmd() tea.Cmd {
	return func() tea.Msg {
		session, err := m.client.GetSession(context.Background(), m.sessionID)
		if err != nil {
			return apiErrMsg{err}
		}
		return sessionLoadedMsg{session}
	}
}

func (m *Model) ensureContentCmd(nodeID string) tea.Cmd {
	node := findNode(m.session, nodeID)
	if node == nil || !contentNeedsFetch(node.Content) {
		return nil
	}
	m.busy = true
	m.status = "generating explanation..."
	sessionID := m.sessionID
	return func() tea.Msg {
		content, err := m.client.EnsureContent(context.Background(), sessionID, nodeID)
		if err != nil {
			return apiErrMsg{err}
		}
		return contentMsg{nodeID: nodeID, content: content}
	}
}

func (m *Model) expandCmd(nodeID, mode string) tea.Cmd {
	m.busy = true
	m.status = "finding prerequisites..."
	sessionID := m.sessionID
	return func() tea.Msg {
		children, err := m.client.Expand(context.Background(), sessionID, nodeID, mode)
		if err != nil {
			return apiErrMsg{err}
		}
		return expandedMsg{nodeID: nodeID, children: children}
	}
}

func (m *Model) chatCmd(nodeID, question string) tea.Cmd {
	m.busy = true
	sessionID := m.sessionID
	return func() tea.Msg {
		answer, err := m.client.Chat(context.Background(), sessionID, nodeID, question)
		if err != nil {
			return apiErrMsg{err}
		}
		return answerMsg{nodeID: nodeID, answer: answer}
	}
}

func (m Model) syncCursorsCmd(direction string) tea.Cmd {
	sessionID := m.sessionID
	return func() tea.Msg {
		if err := m.client.SyncCursors(context.Background(), sessionID, direction); err != nil {
			return apiErrMsg{err}
		}
		return nil
	}
}

// Session DTO helpers

func rootNodeID(s *queries.SessionDTO) string {
	for _, n := range s.Nodes {
		if n.Depth == 0 {
			return n.ID
		}
	}
	return ""
}

func findNode(s *queries.SessionDTO, id string) *queries.NodeDTO {
	if s == nil {
		return nil
	}
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i]
		}
	}
	return nil
}

func childrenOf(s *queries.SessionDTO, id string) []*queries.NodeDTO {
	var out []*queries.NodeDTO
	for _, c := range s.Connections {
		if c.Source == id {
			if n := findNode(s, c.Target); n != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

func parentOf(s *queries.SessionDTO, id string) *queries.NodeDTO {
	for _, c := range s.Connections {
		if c.Target == id {
			return findNode(s, c.Source)
		}
	}
	return nil
}

func breadcrumb(s *queries.SessionDTO, id string) string {
	var titles []string
	node := findNode(s, id)
	for node != nil && len(titles) <= len(s.Nodes) {
		titles = append([]string{node.Title}, titles...)
		node = parentOf(s, node.ID)
	}
	return strings.Join(titles, " > ")
}

// contentNeedsFetch reports whether a node's content should be
// requested. Empty nodes have never been generated and nodes carrying
// the failure marker retry instead of rendering the error as a cached
// explanation.
func contentNeedsFetch(content string) bool {
	return strings.TrimSpace(content) == "" ||
		strings.HasPrefix(content, valueobjects.ErrorMarker)
}

func setNodeContent(s *queries.SessionDTO, id, content string) {
	if n := findNode(s, id); n != nil {
		n.Content = content
	}
}

func appendChatTurns(s *queries.SessionDTO, id, question, answer string) {
	n := findNode(s, id)
	if n == nil {
		return
	}
	n.ChatHistory = append(n.ChatHistory,
		queries.ChatTurnDTO{Role: string(entities.ChatRoleUser), Content: question, Timestamp: time.Now()},
		queries.ChatTurnDTO{Role: string(entities.ChatRoleAssistant), Content: answer, Timestamp: time.Now()},
	)
}
