package ports

import (
	"context"
	"time"

	"millionx-backend/domain/core/aggregates"
	"millionx-backend/domain/core/entities"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/domain/events"
)

// SessionSummary is the listing projection of a saved session
type SessionSummary struct {
	ID        valueobjects.SessionID `json:"id"`
	Title     string                 `json:"title"`
	NodeCount int                    `json:"nodeCount"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// SessionRepository persists exploration sessions. Lookups are always
// scoped to the owning user; a session owned by someone else behaves
// exactly like a session that does not exist.
type SessionRepository interface {
	Save(ctx context.Context, session *aggregates.Exploration) error
	FindByID(ctx context.Context, userID string, id valueobjects.SessionID) (*aggregates.Exploration, error)
	List(ctx context.Context, userID string, offset, limit int) ([]SessionSummary, int, error)
	Delete(ctx context.Context, userID string, id valueobjects.SessionID) error
}

// UserRepository persists user accounts
type UserRepository interface {
	Save(ctx context.Context, user *entities.User) error
	FindByID(ctx context.Context, id string) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
}

// AuthSession is a server-side login session backing a cookie
type AuthSession struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthRepository persists login sessions and consumed magic-link
// tokens
type AuthRepository interface {
	CreateSession(ctx context.Context, session AuthSession) error
	FindSession(ctx context.Context, token string) (*AuthSession, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error

	// ConsumeVerificationToken records a magic-link token ID as used.
	// A second consume of the same ID returns a conflict, making each
	// link single-use.
	ConsumeVerificationToken(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// ExpandMode selects the expansion flavor for a node
type ExpandMode string

const (
	// ModeRabbitHole asks for the prerequisites needed to understand
	// the topic
	ModeRabbitHole ExpandMode = "rabbitHole"
	// ModeSubjectMastery asks for the subtopics needed to master the
	// topic
	ModeSubjectMastery ExpandMode = "subjectMastery"
)

// ChatMessage is one prior turn passed to the chat operation
type ChatMessage struct {
	Role    string
	Content string
}

// ExplainRequest asks for a markdown explanation of a topic
type ExplainRequest struct {
	Topic  string
	Path   []string
	APIKey string
}

// PrerequisitesRequest asks for child topics of a node
type PrerequisitesRequest struct {
	Topic          string
	Mode           ExpandMode
	ExistingTitles []string
	APIKey         string
}

// Prerequisite is one proposed child topic
type Prerequisite struct {
	Title       string
	Description string
}

// ChatRequest asks a follow-up question about explained content
type ChatRequest struct {
	Topic    string
	Content  string
	History  []ChatMessage
	Question string
	APIKey   string
}

// AIGateway is the outbound port to the language model providers
type AIGateway interface {
	Explain(ctx context.Context, req ExplainRequest) (string, error)
	ExtractPrerequisites(ctx context.Context, req PrerequisitesRequest) ([]Prerequisite, error)
	Chat(ctx context.Context, req ChatRequest) (string, error)
	GenerateTitle(ctx context.Context, topic string) (string, error)
	ValidateAPIKey(ctx context.Context, key string) (bool, error)
}

// Mailer delivers magic-link sign-in emails
type Mailer interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// EventPublisher receives domain events after a successful command
type EventPublisher interface {
	Publish(ctx context.Context, batch []events.DomainEvent) error
}
