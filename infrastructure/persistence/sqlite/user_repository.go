package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/mattn/go-sqlite3"

	"millionx-backend/domain/core/entities"
	"millionx-backend/pkg/errors"
)

// UserRepository persists user accounts
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates the repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Save upserts a user
func (r *UserRepository) Save(ctx context.Context, user *entities.User) error {
	var verifiedAt sql.NullTime
	if user.EmailVerified() {
		verifiedAt = sql.NullTime{Time: user.VerifiedAt().UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, email_verified, groq_api_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email_verified = excluded.email_verified,
			groq_api_key = excluded.groq_api_key,
			updated_at = excluded.updated_at`,
		user.ID(), user.Email(), user.Name(), verifiedAt, user.GroqAPIKey(),
		user.CreatedAt().UTC(), user.UpdatedAt().UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if stderrors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return errors.NewConflictError("email is already registered")
		}
		return errors.NewDatabaseError("save user", err)
	}
	return nil
}

// FindByID loads a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entities.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, email_verified, groq_api_key, created_at, updated_at FROM users WHERE id = ?`, id)
}

// FindByEmail loads a user by normalized email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, email_verified, groq_api_key, created_at, updated_at FROM users WHERE email = ?`,
		entities.NormalizeEmail(email))
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*entities.User, error) {
	var (
		id, email, name, apiKey          string
		verifiedAt, createdAt, updatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&id, &email, &name, &verifiedAt, &apiKey, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("user")
	}
	if err != nil {
		return nil, errors.NewDatabaseError("load user", err)
	}
	return entities.ReconstructUser(id, email, name, apiKey, verifiedAt.Time, createdAt.Time, updatedAt.Time), nil
}
