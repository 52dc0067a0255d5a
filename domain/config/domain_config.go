package config

import "strings"

// LayoutConfig holds the canvas geometry used when placing nodes.
// Child columns sit to the right of their parent and siblings stack
// vertically, centered on the parent.
type LayoutConfig struct {
	NodeWidth          float64
	NodeHeight         float64
	ParentChildSpacing float64
	SiblingSpacing     float64
}

// ViewConfig holds viewport interaction tunables
type ViewConfig struct {
	ZoomMin          float64
	ZoomMax          float64
	ZoomSensitivity  float64
	ClickThresholdMS int64
	ClickThresholdPX float64
}

// ExplorationConfig bounds a single exploration session
type ExplorationConfig struct {
	MaxDepth             int
	MaxChildrenPerExpand int
	MaxNodesPerSession   int
	MaxTopicLength       int
	MaxChatTurnsPerNode  int
	MaxChatMessageLength int
}

// TitleMatcher decides whether a proposed child topic duplicates an
// existing node title. Attachments skip topics that match.
type TitleMatcher interface {
	Match(existing, proposed string) bool
}

// CaseInsensitiveTitleMatcher matches titles ignoring case and
// surrounding whitespace. This is the default strategy.
type CaseInsensitiveTitleMatcher struct{}

// Match implements TitleMatcher
func (CaseInsensitiveTitleMatcher) Match(existing, proposed string) bool {
	return strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(proposed))
}

// ExactTitleMatcher matches titles byte for byte
type ExactTitleMatcher struct{}

// Match implements TitleMatcher
func (ExactTitleMatcher) Match(existing, proposed string) bool {
	return existing == proposed
}

// DomainConfig aggregates all domain-level tunables
type DomainConfig struct {
	Layout      LayoutConfig
	View        ViewConfig
	Exploration ExplorationConfig
	Matcher     TitleMatcher
}

// DefaultDomainConfig returns the standard configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		Layout: LayoutConfig{
			NodeWidth:          300,
			NodeHeight:         280,
			ParentChildSpacing: 100,
			SiblingSpacing:     40,
		},
		View: ViewConfig{
			ZoomMin:          0.7,
			ZoomMax:          1.0,
			ZoomSensitivity:  1.1,
			ClickThresholdMS: 200,
			ClickThresholdPX: 10,
		},
		Exploration: ExplorationConfig{
			MaxDepth:             25,
			MaxChildrenPerExpand: 8,
			MaxNodesPerSession:   500,
			MaxTopicLength:       200,
			MaxChatTurnsPerNode:  200,
			MaxChatMessageLength: 4000,
		},
		Matcher: CaseInsensitiveTitleMatcher{},
	}
}

// DevelopmentDomainConfig loosens limits for local experimentation
func DevelopmentDomainConfig() *DomainConfig {
	cfg := DefaultDomainConfig()
	cfg.Exploration.MaxNodesPerSession = 2000
	return cfg
}

// LoadDomainConfig returns the configuration for an environment name
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
