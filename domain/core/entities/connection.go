package entities

import (
	"errors"

	"millionx-backend/domain/core/valueobjects"
)

// Connection is a directed parent-to-child edge on the canvas
type Connection struct {
	id     valueobjects.ConnectionID
	source valueobjects.NodeID
	target valueobjects.NodeID
}

// NewConnection creates an edge from a parent node to a child node
func NewConnection(source, target valueobjects.NodeID) (*Connection, error) {
	if source.IsZero() || target.IsZero() {
		return nil, errors.New("connection endpoints cannot be empty")
	}
	if source.Equals(target) {
		return nil, errors.New("connection cannot point to its own source")
	}
	return &Connection{
		id:     valueobjects.NewConnectionID(),
		source: source,
		target: target,
	}, nil
}

// ReconstructConnection rebuilds a connection from persisted state
func ReconstructConnection(id valueobjects.ConnectionID, source, target valueobjects.NodeID) *Connection {
	return &Connection{id: id, source: source, target: target}
}

// ID returns the connection identifier
func (c *Connection) ID() valueobjects.ConnectionID { return c.id }

// Source returns the parent node ID
func (c *Connection) Source() valueobjects.NodeID { return c.source }

// Target returns the child node ID
func (c *Connection) Target() valueobjects.NodeID { return c.target }
