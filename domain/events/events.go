package events

import (
	"time"

	"millionx-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBaseEvent(sessionID valueobjects.SessionID, eventType string) BaseEvent {
	return BaseEvent{
		AggregateID: sessionID.String(),
		EventType:   eventType,
		Timestamp:   time.Now(),
	}
}

// ExplorationStarted is raised when a new session begins on a topic
type ExplorationStarted struct {
	BaseEvent
	UserID string              `json:"user_id"`
	Topic  string              `json:"topic"`
	RootID valueobjects.NodeID `json:"root_id"`
}

// NewExplorationStarted creates an ExplorationStarted event
func NewExplorationStarted(sessionID valueobjects.SessionID, userID, topic string, rootID valueobjects.NodeID) ExplorationStarted {
	return ExplorationStarted{
		BaseEvent: newBaseEvent(sessionID, "exploration.started"),
		UserID:    userID,
		Topic:     topic,
		RootID:    rootID,
	}
}

// NodesAttached is raised when an expansion adds children to a node
type NodesAttached struct {
	BaseEvent
	ParentID valueobjects.NodeID   `json:"parent_id"`
	ChildIDs []valueobjects.NodeID `json:"child_ids"`
}

// NewNodesAttached creates a NodesAttached event
func NewNodesAttached(sessionID valueobjects.SessionID, parentID valueobjects.NodeID, childIDs []valueobjects.NodeID) NodesAttached {
	return NodesAttached{
		BaseEvent: newBaseEvent(sessionID, "exploration.nodes_attached"),
		ParentID:  parentID,
		ChildIDs:  childIDs,
	}
}

// NodeContentSet is raised when an explanation lands on a node
type NodeContentSet struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Failed bool                `json:"failed"`
}

// NewNodeContentSet creates a NodeContentSet event
func NewNodeContentSet(sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, failed bool) NodeContentSet {
	return NodeContentSet{
		BaseEvent: newBaseEvent(sessionID, "exploration.node_content_set"),
		NodeID:    nodeID,
		Failed:    failed,
	}
}

// NodeMoved is raised when a node is dragged to a new position
type NodeMoved struct {
	BaseEvent
	NodeID      valueobjects.NodeID   `json:"node_id"`
	OldPosition valueobjects.Position `json:"old_position"`
	NewPosition valueobjects.Position `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, oldPos, newPos valueobjects.Position) NodeMoved {
	return NodeMoved{
		BaseEvent:   newBaseEvent(sessionID, "exploration.node_moved"),
		NodeID:      nodeID,
		OldPosition: oldPos,
		NewPosition: newPos,
	}
}

// ChatTurnRecorded is raised when a chat message is added to a node
type ChatTurnRecorded struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Role   string              `json:"role"`
}

// NewChatTurnRecorded creates a ChatTurnRecorded event
func NewChatTurnRecorded(sessionID valueobjects.SessionID, nodeID valueobjects.NodeID, role string) ChatTurnRecorded {
	return ChatTurnRecorded{
		BaseEvent: newBaseEvent(sessionID, "exploration.chat_turn_recorded"),
		NodeID:    nodeID,
		Role:      role,
	}
}

// ChatCleared is raised when a node's conversation is discarded
type ChatCleared struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
}

// NewChatCleared creates a ChatCleared event
func NewChatCleared(sessionID valueobjects.SessionID, nodeID valueobjects.NodeID) ChatCleared {
	return ChatCleared{
		BaseEvent: newBaseEvent(sessionID, "exploration.chat_cleared"),
		NodeID:    nodeID,
	}
}

// TitleChanged is raised when the session title is set or regenerated
type TitleChanged struct {
	BaseEvent
	Title string `json:"title"`
}

// NewTitleChanged creates a TitleChanged event
func NewTitleChanged(sessionID valueobjects.SessionID, title string) TitleChanged {
	return TitleChanged{
		BaseEvent: newBaseEvent(sessionID, "exploration.title_changed"),
		Title:     title,
	}
}
