package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider on top of an ADK model.
type GeminiProvider struct {
	llm         model.LLM
	temperature float32
}

// GeminiConfig holds configuration for the Gemini provider.
type GeminiConfig struct {
	APIKey      string // If empty, uses GOOGLE_API_KEY env var
	Model       string // e.g., "gemini-2.5-flash"
	Temperature float32
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}

	name := cfg.Model
	if name == "" {
		name = os.Getenv("GOOGLE_MODEL")
	}
	if name == "" {
		name = "gemini-2.5-flash"
	}

	m, err := gemini.NewModel(ctx, name, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini model: %w", err)
	}
	return NewModelProvider(m, cfg.Temperature), nil
}

// NewModelProvider wraps an existing ADK model.
func NewModelProvider(m model.LLM, temperature float32) *GeminiProvider {
	if temperature <= 0 {
		temperature = 0.9
	}
	return &GeminiProvider{llm: m, temperature: temperature}
}

// Name returns the model name.
func (p *GeminiProvider) Name() string {
	return p.llm.Name()
}

// Generate produces a single non-streamed response.
func (p *GeminiProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := &model.LLMRequest{
		Model:    p.llm.Name(),
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr(p.temperature),
		},
	}
	if system != "" {
		req.Config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var sb strings.Builder
	for resp, err := range p.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("gemini generate failed: %w", err)
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		// Extract text from response
		for _, part := range resp.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no response from gemini")
	}
	return text, nil
}
