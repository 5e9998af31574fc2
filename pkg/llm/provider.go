// Package llm provides language-model providers for persona text.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider generates text from a system instruction and a user prompt.
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// Provider names accepted by New.
const (
	ProviderAuto     = "auto"
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderTemplate = "template"
)

// Config selects and configures a provider.
type Config struct {
	Provider      string
	GoogleAPIKey  string
	GoogleModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	Temperature   float32
}

// New builds the configured provider. It returns nil with no error when
// no provider is configured, which selects template-only generation.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAuto:
		if cfg.GoogleAPIKey != "" {
			return newGemini(ctx, cfg)
		}
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAIProvider(OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL, Temperature: cfg.Temperature}), nil
		}
		return nil, nil
	case ProviderGemini:
		return newGemini(ctx, cfg)
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewOpenAIProvider(OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL, Temperature: cfg.Temperature}), nil
	case ProviderTemplate:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func newGemini(ctx context.Context, cfg Config) (Provider, error) {
	p, err := NewGeminiProvider(ctx, GeminiConfig{APIKey: cfg.GoogleAPIKey, Model: cfg.GoogleModel, Temperature: cfg.Temperature})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Ping sends a trivial prompt and returns the reply.
func Ping(ctx context.Context, p Provider) (string, error) {
	if p == nil {
		return "", fmt.Errorf("no provider configured")
	}
	out, err := p.Generate(ctx, "You are a connectivity check. Answer briefly.", "Reply with the single word: pong")
	if err != nil {
		return "", fmt.Errorf("%s ping: %w", p.Name(), err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s ping: empty response", p.Name())
	}
	return out, nil
}
