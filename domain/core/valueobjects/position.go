package valueobjects

import (
	"encoding/json"
	"fmt"
	"math"
)

// Position is a 2D canvas coordinate for a node
type Position struct {
	x float64
	y float64
}

// NewPosition creates a position, rejecting non-finite coordinates
func NewPosition(x, y float64) (Position, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return Position{}, fmt.Errorf("position coordinates must be finite")
	}
	return Position{x: x, y: y}, nil
}

// X returns the horizontal coordinate
func (p Position) X() float64 { return p.x }

// Y returns the vertical coordinate
func (p Position) Y() float64 { return p.y }

// Translate returns a new position offset by dx, dy
func (p Position) Translate(dx, dy float64) Position {
	return Position{x: p.x + dx, y: p.y + dy}
}

// Equals checks coordinate equality
func (p Position) Equals(other Position) bool {
	return p.x == other.x && p.y == other.y
}

// MarshalJSON implements json.Marshaler
func (p Position) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"x":%g,"y":%g}`, p.x, p.y)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	pos, err := NewPosition(raw.X, raw.Y)
	if err != nil {
		return err
	}
	*p = pos
	return nil
}
