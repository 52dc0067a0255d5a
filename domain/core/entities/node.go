package entities

import (
	"errors"
	"strings"
	"time"

	"millionx-backend/domain/core/valueobjects"
)

// ChatRole identifies who produced a chat turn
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one message in a node's follow-up conversation
type ChatTurn struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Node is a single explored topic on the knowledge canvas. The root
// node holds the session's original topic at depth zero; every child
// is a prerequisite or subtopic one level deeper than its parent.
type Node struct {
	id          valueobjects.NodeID
	title       string
	description string
	content     valueobjects.NodeContent
	position    valueobjects.Position
	depth       int
	hasExplored bool
	chatHistory []ChatTurn
	createdAt   time.Time
	updatedAt   time.Time
}

// NewNode creates a node for a topic that has not been explained yet
func NewNode(title, description string, position valueobjects.Position, depth int) (*Node, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("node title cannot be empty")
	}
	if depth < 0 {
		return nil, errors.New("node depth cannot be negative")
	}

	now := time.Now()
	return &Node{
		id:          valueobjects.NewNodeID(),
		title:       title,
		description: strings.TrimSpace(description),
		content:     valueobjects.EmptyContent(),
		position:    position,
		depth:       depth,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructNode rebuilds a node from persisted state without
// validation side effects
func ReconstructNode(
	id valueobjects.NodeID,
	title, description string,
	content valueobjects.NodeContent,
	position valueobjects.Position,
	depth int,
	hasExplored bool,
	chatHistory []ChatTurn,
	createdAt, updatedAt time.Time,
) *Node {
	return &Node{
		id:          id,
		title:       title,
		description: description,
		content:     content,
		position:    position,
		depth:       depth,
		hasExplored: hasExplored,
		chatHistory: chatHistory,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the node identifier
func (n *Node) ID() valueobjects.NodeID { return n.id }

// Title returns the topic title
func (n *Node) Title() string { return n.title }

// Description returns the one-line summary shown before content loads
func (n *Node) Description() string { return n.description }

// Content returns the generated explanation
func (n *Node) Content() valueobjects.NodeContent { return n.content }

// Position returns the canvas position
func (n *Node) Position() valueobjects.Position { return n.position }

// Depth returns the distance from the root node
func (n *Node) Depth() int { return n.depth }

// HasExplored reports whether this node's children have been generated
func (n *Node) HasExplored() bool { return n.hasExplored }

// ChatHistory returns the follow-up conversation, oldest first
func (n *Node) ChatHistory() []ChatTurn { return n.chatHistory }

// CreatedAt returns the creation timestamp
func (n *Node) CreatedAt() time.Time { return n.createdAt }

// UpdatedAt returns the last modification timestamp
func (n *Node) UpdatedAt() time.Time { return n.updatedAt }

// SetContent replaces the explanation
func (n *Node) SetContent(content valueobjects.NodeContent) {
	n.content = content
	n.updatedAt = time.Now()
}

// MoveTo updates the canvas position
func (n *Node) MoveTo(position valueobjects.Position) {
	n.position = position
	n.updatedAt = time.Now()
}

// MarkExplored records that children have been generated for this
// node. Exploration is one-shot; it never reverts.
func (n *Node) MarkExplored() {
	n.hasExplored = true
	n.updatedAt = time.Now()
}

// CanChat reports whether follow-up questions are allowed. Chat
// requires loaded content that is not an error placeholder.
func (n *Node) CanChat() bool {
	return !n.content.NeedsGeneration()
}

// AppendChatTurn adds a message to the conversation
func (n *Node) AppendChatTurn(turn ChatTurn) error {
	if turn.Role != ChatRoleUser && turn.Role != ChatRoleAssistant {
		return errors.New("chat turn role must be user or assistant")
	}
	if strings.TrimSpace(turn.Content) == "" {
		return errors.New("chat turn content cannot be empty")
	}
	n.chatHistory = append(n.chatHistory, turn)
	n.updatedAt = time.Now()
	return nil
}

// RemoveLastChatTurn drops the newest message. Used to roll back an
// optimistic user turn when the assistant reply fails.
func (n *Node) RemoveLastChatTurn() {
	if len(n.chatHistory) == 0 {
		return
	}
	n.chatHistory = n.chatHistory[:len(n.chatHistory)-1]
	n.updatedAt = time.Now()
}

// ClearChat discards the conversation
func (n *Node) ClearChat() {
	n.chatHistory = nil
	n.updatedAt = time.Now()
}
