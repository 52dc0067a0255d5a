package valueobjects

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NodeID is a value object identifying a single knowledge node
// Value objects are immutable and have no identity beyond their value
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NewNodeIDFromString creates a NodeID from an existing string
func NewNodeIDFromString(id string) (NodeID, error) {
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return NodeID{}, errors.New("node ID must be a valid UUID")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("NodeID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// ConnectionID is a value object identifying a parent-child connection
type ConnectionID struct {
	value string
}

// NewConnectionID creates a new random ConnectionID
func NewConnectionID() ConnectionID {
	return ConnectionID{value: uuid.New().String()}
}

// NewConnectionIDFromString creates a ConnectionID from an existing string
func NewConnectionIDFromString(id string) (ConnectionID, error) {
	if id == "" {
		return ConnectionID{}, errors.New("connection ID cannot be empty")
	}
	return ConnectionID{value: id}, nil
}

// String returns the string representation of the ConnectionID
func (id ConnectionID) String() string {
	return id.value
}

// IsZero checks if the ConnectionID is the zero value
func (id ConnectionID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id ConnectionID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ConnectionID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ConnectionID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// SessionID is a value object identifying a saved exploration session.
// ULIDs sort lexicographically by creation time, which keeps session
// listings cheap to order.
type SessionID struct {
	value string
}

// NewSessionID creates a new time-ordered SessionID
func NewSessionID() SessionID {
	return SessionID{value: ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()}
}

// NewSessionIDFromString creates a SessionID from an existing string
func NewSessionIDFromString(id string) (SessionID, error) {
	if id == "" {
		return SessionID{}, errors.New("session ID cannot be empty")
	}
	if _, err := ulid.Parse(id); err != nil {
		return SessionID{}, errors.New("session ID must be a valid ULID")
	}
	return SessionID{value: id}, nil
}

// String returns the string representation of the SessionID
func (id SessionID) String() string {
	return id.value
}

// IsZero checks if the SessionID is the zero value
func (id SessionID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id SessionID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *SessionID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("SessionID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
