package valueobjects

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrorMarker prefixes content that records a failed generation
// attempt. Content carrying the marker is retried on the next fetch
// instead of being treated as a cached explanation.
const ErrorMarker = "### Generation Failed"

// MaxContentLength bounds a single explanation in runes
const MaxContentLength = 100000

// NodeContent is the markdown explanation attached to a node
type NodeContent struct {
	text string
}

// NewNodeContent creates content from generated markdown
func NewNodeContent(text string) (NodeContent, error) {
	if len([]rune(text)) > MaxContentLength {
		return NodeContent{}, errors.New("content exceeds maximum length")
	}
	return NodeContent{text: text}, nil
}

// EmptyContent returns the zero content placeholder
func EmptyContent() NodeContent {
	return NodeContent{}
}

// FailedContent records a generation failure so the node renders an
// error state and retries on the next load
func FailedContent(reason string) NodeContent {
	if reason == "" {
		reason = "The explanation could not be generated. Try again."
	}
	return NodeContent{text: ErrorMarker + "\n\n" + reason}
}

// Text returns the raw markdown
func (c NodeContent) Text() string {
	return c.text
}

// IsEmpty reports whether no content has been generated yet
func (c NodeContent) IsEmpty() bool {
	return strings.TrimSpace(c.text) == ""
}

// IsError reports whether the content records a failed generation
func (c NodeContent) IsError() bool {
	return strings.HasPrefix(c.text, ErrorMarker)
}

// NeedsGeneration reports whether a content fetch should run.
// Loaded, non-error content is never regenerated.
func (c NodeContent) NeedsGeneration() bool {
	return c.IsEmpty() || c.IsError()
}

// MarshalJSON implements json.Marshaler
func (c NodeContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.text)
}

// UnmarshalJSON implements json.Unmarshaler
func (c *NodeContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	c.text = s
	return nil
}
