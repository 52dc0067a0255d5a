package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "millionx-backend/pkg/errors"
)

// TokenPurpose distinguishes the two token kinds this service issues
type TokenPurpose string

const (
	// PurposeMagicLink tokens are embedded in sign-in emails
	PurposeMagicLink TokenPurpose = "magic_link"
	// PurposeSession tokens back browser cookies between requests
	PurposeSession TokenPurpose = "session"
)

// Claims are the JWT claims carried by issued tokens
type Claims struct {
	Email   string       `json:"email"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer creates a token issuer with the given signing secret
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer}, nil
}

// Issue creates a signed token for the given email and purpose
func (t *TokenIssuer) Issue(email string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and checks its signature, expiry, and purpose
func (t *TokenIssuer) Verify(tokenString string, purpose TokenPurpose) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token").WithCause(err)
	}
	if !token.Valid {
		return nil, apperrors.NewUnauthorizedError("invalid token")
	}
	if claims.Purpose != purpose {
		return nil, apperrors.NewUnauthorizedError("token purpose mismatch")
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, apperrors.NewUnauthorizedError("token issuer mismatch")
	}
	return claims, nil
}
