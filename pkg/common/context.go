package common

import (
	"context"

	"millionx-backend/pkg/errors"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const (
	userIDKey    contextKey = "user_id"
	userEmailKey contextKey = "user_email"
	sessionKey   contextKey = "auth_session_id"
	requestIDKey contextKey = "request_id"
)

// WithUserID stores the authenticated user ID in the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", errors.NewUnauthorizedError("no authenticated user in context")
	}
	return userID, nil
}

// WithUserEmail stores the authenticated user's email in the context
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

// GetUserEmail retrieves the authenticated user's email from the context
func GetUserEmail(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}

// WithAuthSessionID stores the auth session identifier in the context
func WithAuthSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey, sessionID)
}

// GetAuthSessionID retrieves the auth session identifier from the context
func GetAuthSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(sessionKey).(string)
	return sessionID
}

// WithRequestID stores the request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}
