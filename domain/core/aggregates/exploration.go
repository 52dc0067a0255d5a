package aggregates

import (
	"fmt"
	"time"

	"millionx-backend/domain/config"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/domain/events"
	"millionx-backend/pkg/errors"
)

// ChildTopic is a proposed child returned by prerequisite extraction
type ChildTopic struct {
	Title       string
	Description string
}

// Exploration is the aggregate root for one saved session: a tree of
// explained topics rooted at the original question. All mutations go
// through the aggregate so tree invariants hold at every step.
type Exploration struct {
	id           valueobjects.SessionID
	userID       string
	title        string
	initialQuery string
	rootID       valueobjects.NodeID
	nodes       []*entities.Node
	nodeIndex   map[string]*entities.Node
	connections []*entities.Connection
	parentOf    map[string]valueobjects.NodeID
	createdAt   time.Time
	updatedAt   time.Time
	cfg         *config.DomainConfig

	uncommittedEvents []events.DomainEvent
}

// NewExploration starts a session on a topic. The topic becomes the
// root node at depth zero and the initial session title.
func NewExploration(userID, topic string, cfg *config.DomainConfig) (*Exploration, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user ID cannot be empty")
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	rootPos, _ := valueobjects.NewPosition(0, 0)
	root, err := entities.NewNode(topic, "", rootPos, 0)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	now := time.Now()
	e := &Exploration{
		id:           valueobjects.NewSessionID(),
		userID:       userID,
		title:        root.Title(),
		initialQuery: root.Title(),
		rootID:       root.ID(),
		nodes:        []*entities.Node{root},
		nodeIndex:    map[string]*entities.Node{root.ID().String(): root},
		parentOf:     make(map[string]valueobjects.NodeID),
		createdAt:    now,
		updatedAt:    now,
		cfg:          cfg,
	}
	e.raise(events.NewExplorationStarted(e.id, userID, root.Title(), root.ID()))
	return e, nil
}

// ReconstructExploration rebuilds an aggregate from persisted state.
// The caller should Validate afterwards when the state crossed a
// trust boundary.
func ReconstructExploration(
	id valueobjects.SessionID,
	userID, title, initialQuery string,
	nodes []*entities.Node,
	connections []*entities.Connection,
	createdAt, updatedAt time.Time,
	cfg *config.DomainConfig,
) (*Exploration, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	e := &Exploration{
		id:           id,
		userID:       userID,
		title:        title,
		initialQuery: initialQuery,
		nodes:        nodes,
		nodeIndex:    make(map[string]*entities.Node, len(nodes)),
		connections:  connections,
		parentOf:     make(map[string]valueobjects.NodeID, len(connections)),
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		cfg:          cfg,
	}

	for _, n := range nodes {
		key := n.ID().String()
		if _, dup := e.nodeIndex[key]; dup {
			return nil, errors.NewValidationError(fmt.Sprintf("duplicate node ID %s", key))
		}
		e.nodeIndex[key] = n
		if n.Depth() == 0 && e.rootID.IsZero() {
			e.rootID = n.ID()
		}
	}
	if e.rootID.IsZero() && len(nodes) > 0 {
		return nil, errors.NewValidationError("session has no root node")
	}

	for _, c := range connections {
		e.parentOf[c.Target().String()] = c.Source()
	}
	return e, nil
}

// ID returns the session identifier
func (e *Exploration) ID() valueobjects.SessionID { return e.id }

// UserID returns the owning user
func (e *Exploration) UserID() string { return e.userID }

// Title returns the session title
func (e *Exploration) Title() string { return e.title }

// InitialQuery returns the query the session was started from
func (e *Exploration) InitialQuery() string { return e.initialQuery }

// CreatedAt returns the creation timestamp
func (e *Exploration) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last modification timestamp
func (e *Exploration) UpdatedAt() time.Time { return e.updatedAt }

// Root returns the depth-zero node
func (e *Exploration) Root() *entities.Node {
	return e.nodeIndex[e.rootID.String()]
}

// Nodes returns all nodes in insertion order
func (e *Exploration) Nodes() []*entities.Node { return e.nodes }

// Connections returns all parent-child edges
func (e *Exploration) Connections() []*entities.Connection { return e.connections }

// NodeCount returns the number of nodes in the session
func (e *Exploration) NodeCount() int { return len(e.nodes) }

// NodeByID looks up a node
func (e *Exploration) NodeByID(id valueobjects.NodeID) (*entities.Node, error) {
	n, ok := e.nodeIndex[id.String()]
	if !ok {
		return nil, errors.NewNotFoundError("node")
	}
	return n, nil
}

// Parent returns the parent of a node, or false for the root
func (e *Exploration) Parent(id valueobjects.NodeID) (*entities.Node, bool) {
	parentID, ok := e.parentOf[id.String()]
	if !ok {
		return nil, false
	}
	parent, ok := e.nodeIndex[parentID.String()]
	return parent, ok
}

// Children returns a node's children in insertion order
func (e *Exploration) Children(id valueobjects.NodeID) []*entities.Node {
	var children []*entities.Node
	for _, n := range e.nodes {
		if parentID, ok := e.parentOf[n.ID().String()]; ok && parentID.Equals(id) {
			children = append(children, n)
		}
	}
	return children
}

// SetTitle replaces the session title
func (e *Exploration) SetTitle(title string) error {
	if title == "" {
		return errors.NewValidationError("title cannot be empty")
	}
	e.title = title
	e.touch()
	e.raise(events.NewTitleChanged(e.id, title))
	return nil
}

// AttachChildren expands a node with proposed child topics. Topics
// whose titles duplicate any existing node are skipped, so repeated
// concepts appear once per session. The parent is marked explored
// even when every topic is filtered out.
func (e *Exploration) AttachChildren(parentID valueobjects.NodeID, topics []ChildTopic) ([]*entities.Node, error) {
	parent, err := e.NodeByID(parentID)
	if err != nil {
		return nil, err
	}
	if parent.HasExplored() {
		return nil, errors.NewConflictError("node has already been explored")
	}

	depth := parent.Depth() + 1
	if depth > e.cfg.Exploration.MaxDepth {
		return nil, errors.NewValidationError("maximum exploration depth reached")
	}
	if len(topics) > e.cfg.Exploration.MaxChildrenPerExpand {
		topics = topics[:e.cfg.Exploration.MaxChildrenPerExpand]
	}

	fresh := e.filterDuplicates(topics)
	if len(e.nodes)+len(fresh) > e.cfg.Exploration.MaxNodesPerSession {
		return nil, errors.NewValidationError("session node limit reached")
	}

	positions := e.childPositions(parent, len(fresh))
	created := make([]*entities.Node, 0, len(fresh))
	childIDs := make([]valueobjects.NodeID, 0, len(fresh))

	for i, topic := range fresh {
		child, err := entities.NewNode(topic.Title, topic.Description, positions[i], depth)
		if err != nil {
			return nil, errors.NewValidationError(err.Error())
		}
		conn, err := entities.NewConnection(parentID, child.ID())
		if err != nil {
			return nil, errors.NewInternalError(err.Error())
		}

		e.nodes = append(e.nodes, child)
		e.nodeIndex[child.ID().String()] = child
		e.connections = append(e.connections, conn)
		e.parentOf[child.ID().String()] = parentID
		created = append(created, child)
		childIDs = append(childIDs, child.ID())
	}

	parent.MarkExplored()
	e.touch()
	e.raise(events.NewNodesAttached(e.id, parentID, childIDs))
	return created, nil
}

// filterDuplicates drops topics whose title matches an existing node
// or an earlier topic in the same batch
func (e *Exploration) filterDuplicates(topics []ChildTopic) []ChildTopic {
	fresh := make([]ChildTopic, 0, len(topics))
	for _, topic := range topics {
		if e.titleExists(topic.Title) {
			continue
		}
		dupInBatch := false
		for _, kept := range fresh {
			if e.cfg.Matcher.Match(kept.Title, topic.Title) {
				dupInBatch = true
				break
			}
		}
		if !dupInBatch {
			fresh = append(fresh, topic)
		}
	}
	return fresh
}

// titleExists reports whether any node already carries this title
func (e *Exploration) titleExists(title string) bool {
	for _, n := range e.nodes {
		if e.cfg.Matcher.Match(n.Title(), title) {
			return true
		}
	}
	return false
}

// childPositions lays out n children in a column to the right of the
// parent, vertically centered on it
func (e *Exploration) childPositions(parent *entities.Node, n int) []valueobjects.Position {
	if n == 0 {
		return nil
	}
	layout := e.cfg.Layout
	x := parent.Position().X() + layout.NodeWidth + layout.ParentChildSpacing
	step := layout.NodeHeight + layout.SiblingSpacing
	totalHeight := float64(n)*layout.NodeHeight + float64(n-1)*layout.SiblingSpacing
	startY := parent.Position().Y() + layout.NodeHeight/2 - totalHeight/2

	positions := make([]valueobjects.Position, n)
	for i := 0; i < n; i++ {
		pos, _ := valueobjects.NewPosition(x, startY+float64(i)*step)
		positions[i] = pos
	}
	return positions
}

// SetNodeContent replaces a node's explanation
func (e *Exploration) SetNodeContent(id valueobjects.NodeID, content valueobjects.NodeContent) error {
	node, err := e.NodeByID(id)
	if err != nil {
		return err
	}
	node.SetContent(content)
	e.touch()
	e.raise(events.NewNodeContentSet(e.id, id, content.IsError()))
	return nil
}

// MoveNode updates a node's canvas position
func (e *Exploration) MoveNode(id valueobjects.NodeID, pos valueobjects.Position) error {
	node, err := e.NodeByID(id)
	if err != nil {
		return err
	}
	oldPos := node.Position()
	node.MoveTo(pos)
	e.touch()
	e.raise(events.NewNodeMoved(e.id, id, oldPos, pos))
	return nil
}

// RecordChatTurn appends a message to a node's conversation. User
// turns require loaded, non-error content on the node.
func (e *Exploration) RecordChatTurn(id valueobjects.NodeID, turn entities.ChatTurn) error {
	node, err := e.NodeByID(id)
	if err != nil {
		return err
	}
	if turn.Role == entities.ChatRoleUser && !node.CanChat() {
		return errors.NewConflictError("node content must be loaded before chatting")
	}
	if len(node.ChatHistory()) >= e.cfg.Exploration.MaxChatTurnsPerNode {
		return errors.NewValidationError("chat history limit reached for this node")
	}
	if len([]rune(turn.Content)) > e.cfg.Exploration.MaxChatMessageLength {
		return errors.NewValidationError("chat message is too long")
	}
	if err := node.AppendChatTurn(turn); err != nil {
		return errors.NewValidationError(err.Error())
	}
	e.touch()
	e.raise(events.NewChatTurnRecorded(e.id, id, string(turn.Role)))
	return nil
}

// RollbackChatTurn removes the newest message from a node. Used when
// an optimistic user turn has no assistant reply to pair with.
func (e *Exploration) RollbackChatTurn(id valueobjects.NodeID) error {
	node, err := e.NodeByID(id)
	if err != nil {
		return err
	}
	node.RemoveLastChatTurn()
	e.touch()
	return nil
}

// ClearChat discards a node's conversation
func (e *Exploration) ClearChat(id valueobjects.NodeID) error {
	node, err := e.NodeByID(id)
	if err != nil {
		return err
	}
	node.ClearChat()
	e.touch()
	e.raise(events.NewChatCleared(e.id, id))
	return nil
}

// Path returns the chain of titles from the root to the given node,
// inclusive. Prompts use it to situate a topic in its lineage.
func (e *Exploration) Path(id valueobjects.NodeID) ([]string, error) {
	node, err := e.NodeByID(id)
	if err != nil {
		return nil, err
	}

	var reversed []string
	for {
		reversed = append(reversed, node.Title())
		parent, ok := e.Parent(node.ID())
		if !ok {
			break
		}
		if len(reversed) > len(e.nodes) {
			return nil, errors.NewInternalError("cycle detected in session tree")
		}
		node = parent
	}

	path := make([]string, len(reversed))
	for i, title := range reversed {
		path[len(reversed)-1-i] = title
	}
	return path, nil
}

// VisibleWindow returns the nodes worth rendering around an active
// node: the node itself, its children, its parent and the parent's
// siblings, and its grandparent and the grandparent's siblings.
// Rendering only this window keeps large sessions responsive.
func (e *Exploration) VisibleWindow(activeID valueobjects.NodeID) ([]*entities.Node, error) {
	active, err := e.NodeByID(activeID)
	if err != nil {
		return nil, err
	}

	visible := map[string]bool{active.ID().String(): true}
	for _, child := range e.Children(active.ID()) {
		visible[child.ID().String()] = true
	}

	if parent, ok := e.Parent(active.ID()); ok {
		visible[parent.ID().String()] = true
		if grandparent, ok := e.Parent(parent.ID()); ok {
			visible[grandparent.ID().String()] = true
			for _, sibling := range e.Children(grandparent.ID()) {
				visible[sibling.ID().String()] = true
			}
			if great, ok := e.Parent(grandparent.ID()); ok {
				for _, sibling := range e.Children(great.ID()) {
					visible[sibling.ID().String()] = true
				}
			}
		}
	}

	var window []*entities.Node
	for _, n := range e.nodes {
		if visible[n.ID().String()] {
			window = append(window, n)
		}
	}
	return window, nil
}

// Validate checks structural invariants after reconstruction
func (e *Exploration) Validate() error {
	if len(e.nodes) == 0 {
		return errors.NewValidationError("session must contain at least one node")
	}
	root := e.Root()
	if root == nil {
		return errors.NewValidationError("session root node is missing")
	}
	if root.Depth() != 0 {
		return errors.NewValidationError("root node must have depth zero")
	}

	roots := 0
	for _, n := range e.nodes {
		if _, hasParent := e.parentOf[n.ID().String()]; !hasParent {
			roots++
		}
	}
	if roots != 1 {
		return errors.NewValidationError(fmt.Sprintf("session must have exactly one root, found %d", roots))
	}

	for _, c := range e.connections {
		source, ok := e.nodeIndex[c.Source().String()]
		if !ok {
			return errors.NewValidationError("connection source node does not exist")
		}
		target, ok := e.nodeIndex[c.Target().String()]
		if !ok {
			return errors.NewValidationError("connection target node does not exist")
		}
		if target.Depth() != source.Depth()+1 {
			return errors.NewValidationError(fmt.Sprintf(
				"node %q depth %d is not one deeper than parent %q depth %d",
				target.Title(), target.Depth(), source.Title(), source.Depth()))
		}
	}

	for _, n := range e.nodes {
		if _, err := e.Path(n.ID()); err != nil {
			return err
		}
	}
	return nil
}

// GetUncommittedEvents returns events raised since the last commit
func (e *Exploration) GetUncommittedEvents() []events.DomainEvent {
	return e.uncommittedEvents
}

// MarkEventsAsCommitted clears the pending event list
func (e *Exploration) MarkEventsAsCommitted() {
	e.uncommittedEvents = nil
}

func (e *Exploration) raise(event events.DomainEvent) {
	e.uncommittedEvents = append(e.uncommittedEvents, event)
}

func (e *Exploration) touch() {
	e.updatedAt = time.Now()
}
