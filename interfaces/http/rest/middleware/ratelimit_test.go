package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"millionx-backend/pkg/auth"
	"millionx-backend/pkg/common"
)

func rateLimitedHandler(t *testing.T, capacity float64) http.Handler {
	t.Helper()
	limiter := auth.NewTokenBucketLimiter(0.0001, capacity)
	t.Cleanup(limiter.Stop)
	limit := RateLimit(limiter, int(capacity), zap.NewNop())
	return limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestAs(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/validate-key", nil)
	if userID != "" {
		req = req.WithContext(common.WithUserID(req.Context(), userID))
	}
	return req
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	handler := rateLimitedHandler(t, 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs("user-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("user-1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitKeysByUser(t *testing.T) {
	handler := rateLimitedHandler(t, 1)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("user-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("user-1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different user draws from a separate bucket.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("user-2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitFallsBackToClientAddress(t *testing.T) {
	handler := rateLimitedHandler(t, 1)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
