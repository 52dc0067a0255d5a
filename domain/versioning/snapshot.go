package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
)

// CurrentSchemaVersion is the blob schema written by this build.
// Version 1 added per-node chat history to the node records.
const CurrentSchemaVersion = 1

// nodeRecord is the persisted shape of a node inside the nodes blob
type nodeRecord struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Content     string       `json:"content,omitempty"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Depth       int          `json:"depth"`
	HasExplored bool         `json:"hasExplored"`
	ChatHistory []chatRecord `json:"chatHistory,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// chatRecord is the persisted shape of one chat turn
type chatRecord struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// connectionRecord is the persisted shape of one edge
type connectionRecord struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// SnapshotCodec converts between live entities and the JSON text
// blobs stored in the sessions table
type SnapshotCodec struct{}

// NewSnapshotCodec creates a codec
func NewSnapshotCodec() *SnapshotCodec {
	return &SnapshotCodec{}
}

// EncodeNodes serializes nodes to the nodes blob
func (c *SnapshotCodec) EncodeNodes(nodes []*entities.Node) (string, error) {
	records := make([]nodeRecord, 0, len(nodes))
	for _, n := range nodes {
		rec := nodeRecord{
			ID:          n.ID().String(),
			Title:       n.Title(),
			Description: n.Description(),
			Content:     n.Content().Text(),
			X:           n.Position().X(),
			Y:           n.Position().Y(),
			Depth:       n.Depth(),
			HasExplored: n.HasExplored(),
			CreatedAt:   n.CreatedAt(),
			UpdatedAt:   n.UpdatedAt(),
		}
		for _, turn := range n.ChatHistory() {
			rec.ChatHistory = append(rec.ChatHistory, chatRecord{
				Role:      string(turn.Role),
				Content:   turn.Content,
				Timestamp: turn.Timestamp,
			})
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode nodes: %w", err)
	}
	return string(data), nil
}

// EncodeConnections serializes edges to the connections blob
func (c *SnapshotCodec) EncodeConnections(connections []*entities.Connection) (string, error) {
	records := make([]connectionRecord, 0, len(connections))
	for _, conn := range connections {
		records = append(records, connectionRecord{
			ID:     conn.ID().String(),
			Source: conn.Source().String(),
			Target: conn.Target().String(),
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to encode connections: %w", err)
	}
	return string(data), nil
}

// DecodeNodes parses a nodes blob written at the given schema version.
// Version 0 blobs lack chat history and decode with empty histories.
func (c *SnapshotCodec) DecodeNodes(schemaVersion int, data string) ([]*entities.Node, error) {
	if schemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("nodes blob schema version %d is newer than supported version %d", schemaVersion, CurrentSchemaVersion)
	}

	var records []nodeRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	nodes := make([]*entities.Node, 0, len(records))
	for _, rec := range records {
		id, err := valueobjects.NewNodeIDFromString(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", rec.Title, err)
		}
		pos, err := valueobjects.NewPosition(rec.X, rec.Y)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", rec.Title, err)
		}
		content, err := valueobjects.NewNodeContent(rec.Content)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", rec.Title, err)
		}

		var history []entities.ChatTurn
		for _, turn := range rec.ChatHistory {
			history = append(history, entities.ChatTurn{
				Role:      entities.ChatRole(turn.Role),
				Content:   turn.Content,
				Timestamp: turn.Timestamp,
			})
		}

		nodes = append(nodes, entities.ReconstructNode(
			id, rec.Title, rec.Description, content, pos,
			rec.Depth, rec.HasExplored, history,
			rec.CreatedAt, rec.UpdatedAt,
		))
	}
	return nodes, nil
}

// DecodeConnections parses a connections blob
func (c *SnapshotCodec) DecodeConnections(schemaVersion int, data string) ([]*entities.Connection, error) {
	if schemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("connections blob schema version %d is newer than supported version %d", schemaVersion, CurrentSchemaVersion)
	}

	var records []connectionRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}

	connections := make([]*entities.Connection, 0, len(records))
	for _, rec := range records {
		id, err := valueobjects.NewConnectionIDFromString(rec.ID)
		if err != nil {
			return nil, err
		}
		source, err := valueobjects.NewNodeIDFromString(rec.Source)
		if err != nil {
			return nil, err
		}
		target, err := valueobjects.NewNodeIDFromString(rec.Target)
		if err != nil {
			return nil, err
		}
		connections = append(connections, entities.ReconstructConnection(id, source, target))
	}
	return connections, nil
}

// Checksum fingerprints a serialized session for change detection
func Checksum(nodesData, connectionsData string) string {
	h := sha256.New()
	h.Write([]byte(nodesData))
	h.Write([]byte{0})
	h.Write([]byte(connectionsData))
	return hex.EncodeToString(h.Sum(nil))
}
