package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "millionx-backend/pkg/errors"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "millionx")
	require.NoError(t, err)

	token, err := issuer.Issue("alice@example.com", PurposeMagicLink, time.Minute)
	require.NoError(t, err)

	claims, err := issuer.Verify(token, PurposeMagicLink)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, PurposeMagicLink, claims.Purpose)
	assert.Equal(t, "millionx", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "millionx")
	require.NoError(t, err)

	token, err := issuer.Issue("alice@example.com", PurposeMagicLink, time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(token, PurposeSession)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer, err := NewTokenIssuer("secret-a", "millionx")
	require.NoError(t, err)
	verifier, err := NewTokenIssuer("secret-b", "millionx")
	require.NoError(t, err)

	token, err := signer.Issue("alice@example.com", PurposeSession, time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token, PurposeSession)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	signer, err := NewTokenIssuer("test-secret", "someone-else")
	require.NoError(t, err)
	verifier, err := NewTokenIssuer("test-secret", "millionx")
	require.NoError(t, err)

	token, err := signer.Issue("alice@example.com", PurposeSession, time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token, PurposeSession)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "millionx")
	require.NoError(t, err)

	token, err := issuer.Issue("alice@example.com", PurposeSession, -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(token, PurposeSession)
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer("", "millionx")
	assert.Error(t, err)
}

func TestTokenBucketLimiter(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 2)
	defer limiter.Stop()

	assert.True(t, limiter.Allow("alice@example.com"))
	assert.True(t, limiter.Allow("alice@example.com"))
	assert.False(t, limiter.Allow("alice@example.com"))

	// Keys do not share buckets.
	assert.True(t, limiter.Allow("bob@example.com"))
}
