package llm

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ailibmodel "github.com/cpunion/ailib/adk/model"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"
)

type recordingModel struct {
	mu       sync.Mutex
	reply    *genai.Content
	err      error
	requests []*adkmodel.LLMRequest
}

func (m *recordingModel) Name() string { return "recording" }

func (m *recordingModel) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		if m.err != nil {
			yield(nil, m.err)
			return
		}
		yield(&adkmodel.LLMResponse{Content: m.reply}, nil)
	}
}

func TestGeminiProvider_WithMockLLM(t *testing.T) {
	mock := ailibmodel.NewMockLLM(&adkmodel.LLMResponse{
		Content: &genai.Content{
			Role: "model",
			Parts: []*genai.Part{
				{Text: "Saints, listen: "},
				{Text: "the harvest is plentiful."},
			},
		},
	})

	p := NewModelProvider(mock, 0)
	out, err := p.Generate(context.Background(), "You are RUTH.", "React to this topic")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Saints, listen: the harvest is plentiful." {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGeminiProvider_BuildsRequest(t *testing.T) {
	m := &recordingModel{reply: genai.NewContentFromText("ok", genai.RoleModel)}
	p := NewModelProvider(m, 0)

	if _, err := p.Generate(context.Background(), "system text", "user text"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(m.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(m.requests))
	}
	req := m.requests[0]
	if req.Config == nil || req.Config.Temperature == nil || *req.Config.Temperature != 0.9 {
		t.Errorf("expected temperature 0.9, got %+v", req.Config)
	}
	if req.Config.SystemInstruction == nil || req.Config.SystemInstruction.Parts[0].Text != "system text" {
		t.Errorf("system instruction not set")
	}
	if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "user text" {
		t.Errorf("unexpected contents %+v", req.Contents)
	}
}

func TestGeminiProvider_Errors(t *testing.T) {
	p := NewModelProvider(&recordingModel{err: errors.New("quota")}, 0)
	if _, err := p.Generate(context.Background(), "", "x"); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("expected wrapped model error, got %v", err)
	}

	empty := NewModelProvider(&recordingModel{reply: &genai.Content{Role: "model"}}, 0)
	if _, err := empty.Generate(context.Background(), "", "x"); err == nil {
		t.Error("expected error on empty response")
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Stand firm.  "}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	out, err := p.Generate(context.Background(), "sys", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Stand firm." {
		t.Errorf("output = %q", out)
	}
	if got.Model != "gpt-4o-mini" || got.Temperature != 0.9 {
		t.Errorf("unexpected request %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "prompt" {
		t.Errorf("unexpected messages %+v", got.Messages)
	}
}

func TestOpenAIProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), "", "x")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestNew_Selection(t *testing.T) {
	ctx := context.Background()

	p, err := New(ctx, Config{Provider: "template", OpenAIAPIKey: "k"})
	if err != nil || p != nil {
		t.Errorf("template provider should be nil, got %v, %v", p, err)
	}

	p, err = New(ctx, Config{OpenAIAPIKey: "k", OpenAIModel: "gpt-test"})
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if p == nil || p.Name() != "gpt-test" {
		t.Errorf("auto should pick openai when only its key is set, got %v", p)
	}

	if _, err := New(ctx, Config{Provider: "openai"}); err == nil {
		t.Error("openai without key should fail")
	}
	if _, err := New(ctx, Config{Provider: "bogus"}); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestPing(t *testing.T) {
	p := NewModelProvider(&recordingModel{reply: genai.NewContentFromText("pong", genai.RoleModel)}, 0)
	out, err := Ping(context.Background(), p)
	if err != nil || out != "pong" {
		t.Errorf("Ping = %q, %v", out, err)
	}
	if _, err := Ping(context.Background(), nil); err == nil {
		t.Error("expected error for nil provider")
	}
}
