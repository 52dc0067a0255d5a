package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"millionx-backend/application/ports"
	"millionx-backend/pkg/errors"
)

// AuthRepository persists login sessions and consumed magic-link
// token IDs
type AuthRepository struct {
	db *sql.DB
}

// NewAuthRepository creates the repository
func NewAuthRepository(db *sql.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// CreateSession stores a login session
func (r *AuthRepository) CreateSession(ctx context.Context, session ports.AuthSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		session.Token, session.UserID,
		session.ExpiresAt.UTC(), session.CreatedAt.UTC())
	if err != nil {
		return errors.NewDatabaseError("create auth session", err)
	}
	return nil
}

// FindSession loads a live login session by token. Expired sessions
// behave like missing ones.
func (r *AuthRepository) FindSession(ctx context.Context, token string) (*ports.AuthSession, error) {
	var (
		session   ports.AuthSession
		expiresAt sql.NullTime
		createdAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, expires_at, created_at
		FROM auth_sessions WHERE token = ?`, token,
	).Scan(&session.Token, &session.UserID, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewUnauthorizedError("session not found")
	}
	if err != nil {
		return nil, errors.NewDatabaseError("load auth session", err)
	}

	session.ExpiresAt = expiresAt.Time
	session.CreatedAt = createdAt.Time
	if time.Now().After(session.ExpiresAt) {
		return nil, errors.NewUnauthorizedError("session expired")
	}
	return &session, nil
}

// DeleteSession removes a login session
func (r *AuthRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE token = ?`, token); err != nil {
		return errors.NewDatabaseError("delete auth session", err)
	}
	return nil
}

// DeleteExpired sweeps expired login sessions and stale verification
// token records
func (r *AuthRepository) DeleteExpired(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at < ?`, now); err != nil {
		return errors.NewDatabaseError("sweep auth sessions", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE expires_at < ?`, now); err != nil {
		return errors.NewDatabaseError("sweep verification tokens", err)
	}
	return nil
}

// ConsumeVerificationToken records a magic-link token as used. The
// primary key makes the second consume fail, so each link signs in
// at most once.
func (r *AuthRepository) ConsumeVerificationToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_tokens (token_id, consumed_at, expires_at)
		VALUES (?, ?, ?)`,
		tokenID, time.Now().UTC(), expiresAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if stderrors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return errors.NewConflictError("magic link has already been used")
		}
		return errors.NewDatabaseError("consume verification token", err)
	}
	return nil
}
