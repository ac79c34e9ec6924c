// Package oracle is the gateway to the language-model completion service.
// Providers differ only in transport; every one of them implements Gateway,
// reports transport failures as domain.ErrUpstreamUnavailable, and never
// retries.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/WessleyAI/polidossier/engine/domain"
)

// Gateway sends one system instruction plus user prompt and returns the raw
// completion text. expectJSON asks the provider for a JSON object reply.
type Gateway interface {
	Complete(ctx context.Context, system, user string, expectJSON bool) (string, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, system, user string, expectJSON bool) (string, error)

func (f GatewayFunc) Complete(ctx context.Context, system, user string, expectJSON bool) (string, error) {
	return f(ctx, system, user, expectJSON)
}

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	// Timeout bounds each round trip. Zero leaves the client default (none).
	Timeout time.Duration
}

// New builds the configured provider.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	hc := &http.Client{Timeout: cfg.Timeout}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, hc)
	case ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model, hc)
	case ProviderOllama:
		return NewOllama(cfg.BaseURL, cfg.Model, hc), nil
	default:
		return nil, fmt.Errorf("oracle: unknown provider %q", cfg.Provider)
	}
}

// DecodeJSON parses a completion as a JSON object into T. Markdown code
// fences around the object are tolerated.
func DecodeJSON[T any](raw string) (T, error) {
	var v T
	body := stripFence(raw)
	if !strings.HasPrefix(body, "{") {
		return v, fmt.Errorf("%w: expected a JSON object, got %q", domain.ErrMalformedUpstream, truncate(body, 64))
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, fmt.Errorf("%w: %v", domain.ErrMalformedUpstream, err)
	}
	return v, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, provider, err)
}
