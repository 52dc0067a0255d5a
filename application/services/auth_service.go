package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/domain/core/entities"
	"millionx-backend/pkg/auth"
	"millionx-backend/pkg/errors"
)

// AuthService implements passwordless sign-in: a signed magic link
// goes out by email, and verifying it creates the account on first
// use and a server-side login session backing a cookie.
type AuthService struct {
	users    ports.UserRepository
	sessions ports.AuthRepository
	mailer   ports.Mailer
	tokens   *auth.TokenIssuer
	limiter  auth.RateLimiter
	logger   *zap.Logger
	baseURL  string
	linkTTL  time.Duration
	loginTTL time.Duration
}

// NewAuthService creates the service
func NewAuthService(
	users ports.UserRepository,
	sessions ports.AuthRepository,
	mailer ports.Mailer,
	tokens *auth.TokenIssuer,
	limiter auth.RateLimiter,
	logger *zap.Logger,
	baseURL string,
	linkTTL, loginTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		tokens:   tokens,
		limiter:  limiter,
		logger:   logger,
		baseURL:  baseURL,
		linkTTL:  linkTTL,
		loginTTL: loginTTL,
	}
}

// RequestMagicLink emails a sign-in link. The response is identical
// whether or not the address has an account, so the endpoint cannot
// be used to probe for registered emails.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	email = entities.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.NewValidationError("invalid email address")
	}
	if !s.limiter.Allow(email) {
		return errors.NewRateLimitError(5, "hour")
	}

	token, err := s.tokens.Issue(email, auth.PurposeMagicLink, s.linkTTL)
	if err != nil {
		return errors.NewInternalError("failed to issue sign-in token").WithCause(err)
	}

	link := fmt.Sprintf("%s/api/v1/auth/verify?token=%s", s.baseURL, url.QueryEscape(token))
	if err := s.mailer.SendMagicLink(ctx, email, link); err != nil {
		return err
	}
	return nil
}

// VerifyMagicLink exchanges a valid link token for a login session.
// The account is created on first sign-in. Each link works once.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (string, *entities.User, error) {
	claims, err := s.tokens.Verify(token, auth.PurposeMagicLink)
	if err != nil {
		return "", nil, err
	}

	if err := s.sessions.ConsumeVerificationToken(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		if errors.IsConflict(err) {
			return "", nil, errors.NewUnauthorizedError("magic link has already been used")
		}
		return "", nil, err
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if errors.IsNotFound(err) {
		user, err = entities.NewUser(claims.Email)
		if err != nil {
			return "", nil, errors.NewValidationError(err.Error())
		}
		s.logger.Info("user created", zap.String("email", user.Email()))
	} else if err != nil {
		return "", nil, err
	}

	if !user.EmailVerified() {
		user.MarkEmailVerified()
		if err := s.users.Save(ctx, user); err != nil {
			return "", nil, err
		}
	}

	sessionToken, err := randomToken()
	if err != nil {
		return "", nil, errors.NewInternalError("failed to generate session token").WithCause(err)
	}
	now := time.Now()
	if err := s.sessions.CreateSession(ctx, ports.AuthSession{
		Token:     sessionToken,
		UserID:    user.ID(),
		ExpiresAt: now.Add(s.loginTTL),
		CreatedAt: now,
	}); err != nil {
		return "", nil, err
	}
	return sessionToken, user, nil
}

// Authenticate resolves a login session token to its user
func (s *AuthService) Authenticate(ctx context.Context, sessionToken string) (*entities.User, error) {
	session, err := s.sessions.FindSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewUnauthorizedError("account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// Logout destroys a login session
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	return s.sessions.DeleteSession(ctx, sessionToken)
}

// SweepExpired removes expired sessions and token records. Run
// periodically from the server loop.
func (s *AuthService) SweepExpired(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

// randomToken returns 32 bytes of hex-encoded randomness
func randomToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
