package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"millionx-backend/application/ports"
	"millionx-backend/infrastructure/config"
	"millionx-backend/pkg/observability"
)

// groqKeyPrefix is the shape of every valid Groq API key
const groqKeyPrefix = "gsk_"

// Gateway implements the AI port against two providers: Groq with
// the user's own key, and OpenRouter with the server key for title
// generation and as the fallback for explanations and chat when no
// user key is stored. Groq traffic runs behind a circuit breaker so a
// degraded provider fails fast instead of tying up request handlers.
type Gateway struct {
	cfg      *config.Config
	tunables *config.TunablesProvider
	breaker  *gobreaker.CircuitBreaker
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGateway creates the gateway
func NewGateway(cfg *config.Config, tunables *config.TunablesProvider, metrics *observability.Metrics, logger *zap.Logger) *Gateway {
	t := tunables.Current()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "groq",
		Timeout: time.Duration(t.Breaker.OpenIntervalSec) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= t.Breaker.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Gateway{cfg: cfg, tunables: tunables, breaker: breaker, metrics: metrics, logger: logger}
}

// Explain generates a markdown explanation. A user with a stored Groq
// key runs on it; otherwise the call falls back to OpenRouter on the
// server key.
func (g *Gateway) Explain(ctx context.Context, req ports.ExplainRequest) (string, error) {
	if req.APIKey == "" {
		return g.openRouterCompletion(ctx, "explain", buildExplainMessages(req), false)
	}
	return g.groqCompletion(ctx, "explain", req.APIKey, buildExplainMessages(req), false)
}

// ExtractPrerequisites generates child topics via Groq in JSON mode
func (g *Gateway) ExtractPrerequisites(ctx context.Context, req ports.PrerequisitesRequest) ([]ports.Prerequisite, error) {
	raw, err := g.groqCompletion(ctx, "prerequisites", req.APIKey, buildPrerequisitesMessages(req), true)
	if err != nil {
		return nil, err
	}

	items := ParsePrerequisites(raw)
	if len(items) == 0 {
		return nil, fmt.Errorf("provider returned no usable prerequisites")
	}
	return items, nil
}

// Chat answers a follow-up question, on the user's Groq key when one
// is stored and on the server's OpenRouter key otherwise
func (g *Gateway) Chat(ctx context.Context, req ports.ChatRequest) (string, error) {
	if req.APIKey == "" {
		return g.openRouterCompletion(ctx, "chat", buildChatMessages(req), false)
	}
	return g.groqCompletion(ctx, "chat", req.APIKey, buildChatMessages(req), false)
}

// GenerateTitle produces a session title via OpenRouter on the
// server key
func (g *Gateway) GenerateTitle(ctx context.Context, topic string) (string, error) {
	if g.cfg.OpenRouterAPIKey == "" {
		return "", fmt.Errorf("no server AI key configured")
	}

	t := g.tunables.Current()
	client := NewClient(g.cfg.OpenRouterBaseURL, g.cfg.OpenRouterAPIKey,
		time.Duration(t.AI.RequestTimeoutSec)*time.Second)

	start := time.Now()
	title, usage, err := client.ChatCompletion(ctx, CompletionParams{
		Model:       t.AI.OpenRouterModel,
		Messages:    buildTitleMessages(topic),
		Temperature: t.AI.Temperature,
		MaxTokens:   64,
	})
	g.observe("openrouter", "title", usage, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(title), `"'`), nil
}

// ValidateAPIKey checks a user-supplied Groq key. A key without the
// expected prefix is rejected locally; otherwise a cheap
// authenticated request decides. Only a 200 counts as valid.
func (g *Gateway) ValidateAPIKey(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, groqKeyPrefix) {
		return false, nil
	}

	t := g.tunables.Current()
	client := NewClient(g.cfg.GroqBaseURL, key, time.Duration(t.AI.RequestTimeoutSec)*time.Second)
	status, err := client.CheckKey(ctx, time.Duration(t.AI.KeyCheckTimeoutMS)*time.Millisecond)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

// groqCompletion runs a completion on the user's key through the
// circuit breaker
func (g *Gateway) groqCompletion(ctx context.Context, operation, apiKey string, messages []Message, jsonMode bool) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("missing API key")
	}

	t := g.tunables.Current()
	client := NewClient(g.cfg.GroqBaseURL, apiKey, time.Duration(t.AI.RequestTimeoutSec)*time.Second)

	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		content, usage, err := client.ChatCompletion(ctx, CompletionParams{
			Model:       t.AI.GroqModel,
			Messages:    messages,
			Temperature: t.AI.Temperature,
			MaxTokens:   t.AI.MaxTokens,
			JSONMode:    jsonMode,
		})
		if err != nil {
			return nil, err
		}
		g.recordTokens("groq", usage)
		return content, nil
	})
	g.observe("groq", operation, Usage{}, err, time.Since(start))

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "", fmt.Errorf("ai provider temporarily unavailable: %w", err)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// openRouterCompletion runs a completion on the server key
func (g *Gateway) openRouterCompletion(ctx context.Context, operation string, messages []Message, jsonMode bool) (string, error) {
	if g.cfg.OpenRouterAPIKey == "" {
		return "", fmt.Errorf("no server AI key configured")
	}

	t := g.tunables.Current()
	client := NewClient(g.cfg.OpenRouterBaseURL, g.cfg.OpenRouterAPIKey,
		time.Duration(t.AI.RequestTimeoutSec)*time.Second)

	start := time.Now()
	content, usage, err := client.ChatCompletion(ctx, CompletionParams{
		Model:       t.AI.OpenRouterModel,
		Messages:    messages,
		Temperature: t.AI.Temperature,
		MaxTokens:   t.AI.MaxTokens,
		JSONMode:    jsonMode,
	})
	g.observe("openrouter", operation, usage, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return content, nil
}

func (g *Gateway) observe(provider, operation string, usage Usage, err error, elapsed time.Duration) {
	if g.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.metrics.ObserveAI(provider, operation, outcome, elapsed)
	g.recordTokens(provider, usage)
}

func (g *Gateway) recordTokens(provider string, usage Usage) {
	if g.metrics == nil {
		return
	}
	if usage.PromptTokens > 0 {
		g.metrics.AITokensUsed.WithLabelValues(provider, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		g.metrics.AITokensUsed.WithLabelValues(provider, "completion").Add(float64(usage.CompletionTokens))
	}
}
