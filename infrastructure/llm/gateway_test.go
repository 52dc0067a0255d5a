package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/infrastructure/config"
)

func newTestGateway(t *testing.T, groqURL string) *Gateway {
	t.Helper()
	tunables, err := config.NewTunablesProvider("", zap.NewNop())
	require.NoError(t, err)
	cfg := &config.Config{GroqBaseURL: groqURL}
	return NewGateway(cfg, tunables, nil, zap.NewNop())
}

func TestValidateAPIKeyRejectsBadPrefixLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	valid, err := g.ValidateAPIKey(context.Background(), "sk-wrong-provider")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.False(t, called, "bad prefix must not reach the provider")
}

func TestValidateAPIKeyStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		valid  bool
	}{
		{"accepted", http.StatusOK, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/models", r.URL.Path)
				assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			g := newTestGateway(t, srv.URL)
			valid, err := g.ValidateAPIKey(context.Background(), "gsk_test")
			require.NoError(t, err)
			assert.Equal(t, tc.valid, valid)
		})
	}
}

func TestExplain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"An explanation."}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	content, err := g.Explain(context.Background(), ports.ExplainRequest{
		Topic:  "Limits",
		Path:   []string{"Calculus", "Limits"},
		APIKey: "gsk_test",
	})
	require.NoError(t, err)
	assert.Equal(t, "An explanation.", content)
}

func TestExplainFailsWithoutAnyKey(t *testing.T) {
	// No user key and no server key leaves nothing to run on.
	g := newTestGateway(t, "http://localhost:0")
	_, err := g.Explain(context.Background(), ports.ExplainRequest{Topic: "Limits"})
	assert.Error(t, err)
}

func newFallbackGateway(t *testing.T, groqURL, openRouterURL string) *Gateway {
	t.Helper()
	tunables, err := config.NewTunablesProvider("", zap.NewNop())
	require.NoError(t, err)
	cfg := &config.Config{
		GroqBaseURL:       groqURL,
		OpenRouterBaseURL: openRouterURL,
		OpenRouterAPIKey:  "or_server_key",
	}
	return NewGateway(cfg, tunables, nil, zap.NewNop())
}

func TestExplainFallsBackToServerProvider(t *testing.T) {
	groq := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request without a user key must not reach groq")
	}))
	defer groq.Close()

	openRouter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer or_server_key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"A fallback explanation."}}]}`))
	}))
	defer openRouter.Close()

	g := newFallbackGateway(t, groq.URL, openRouter.URL)
	content, err := g.Explain(context.Background(), ports.ExplainRequest{Topic: "Limits"})
	require.NoError(t, err)
	assert.Equal(t, "A fallback explanation.", content)
}

func TestChatFallsBackToServerProvider(t *testing.T) {
	openRouter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer or_server_key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"A fallback answer."}}]}`))
	}))
	defer openRouter.Close()

	g := newFallbackGateway(t, "http://localhost:0", openRouter.URL)
	answer, err := g.Chat(context.Background(), ports.ChatRequest{
		Topic:    "Limits",
		Content:  "an explanation",
		Question: "why?",
	})
	require.NoError(t, err)
	assert.Equal(t, "A fallback answer.", answer)
}

func TestExtractPrerequisitesRejectsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.ExtractPrerequisites(context.Background(), ports.PrerequisitesRequest{
		Topic:  "Limits",
		Mode:   ports.ModeRabbitHole,
		APIKey: "gsk_test",
	})
	assert.Error(t, err)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	req := ports.ExplainRequest{Topic: "Limits", APIKey: "gsk_test"}

	for i := 0; i < 5; i++ {
		_, err := g.Explain(context.Background(), req)
		require.Error(t, err)
	}

	_, err := g.Explain(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporarily unavailable")
}
