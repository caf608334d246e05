package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/llm"
)

// ─── ParseProvider ────────────────────────────────────────

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    llm.Provider
		wantErr bool
	}{
		{"", llm.OpenAI, false},
		{"openai", llm.OpenAI, false},
		{"Anthropic", llm.Anthropic, false},
		{" gemini ", llm.Gemini, false},
		{"groq", llm.Groq, false},
		{"mistral", "", true},
		{"open-ai", "", true},
	}
	for _, tt := range tests {
		got, err := llm.ParseProvider(tt.in)
		if tt.wantErr {
			if !errors.Is(err, apperrors.ErrLLMProvider) {
				t.Errorf("ParseProvider(%q) error = %v, want LLMProviderError", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseProvider(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestEveryProviderHasDefaults(t *testing.T) {
	for _, p := range llm.Providers {
		if p.DefaultModel() == "" {
			t.Errorf("%s has no default model", p)
		}
		if !strings.HasPrefix(p.BaseURL(), "https://") {
			t.Errorf("%s base URL = %q", p, p.BaseURL())
		}
	}
}

// ─── Build ────────────────────────────────────────────────

func TestBuildDispatch(t *testing.T) {
	r := llm.NewRegistry(llm.Options{})
	for _, p := range llm.Providers {
		c, err := r.Build(string(p), "", "test-key-123")
		if err != nil {
			t.Fatalf("Build(%s) error = %v", p, err)
		}
		if c.Provider() != p {
			t.Errorf("Build(%s).Provider() = %s", p, c.Provider())
		}
		if c.Model() != p.DefaultModel() {
			t.Errorf("Build(%s).Model() = %q, want default", p, c.Model())
		}
	}
}

func TestBuildUnknownProviderNamesIt(t *testing.T) {
	r := llm.NewRegistry(llm.Options{})
	_, err := r.Build("cohere", "", "secret-key-value")
	if !errors.Is(err, apperrors.ErrLLMProvider) {
		t.Fatalf("error = %v, want LLMProviderError", err)
	}
	if !strings.Contains(err.Error(), "cohere") {
		t.Errorf("provider missing from %q", err)
	}
	if strings.Contains(err.Error(), "secret-key-value") {
		t.Error("api key leaked into error")
	}
}

func TestBuildRejectsMalformedKey(t *testing.T) {
	r := llm.NewRegistry(llm.Options{})
	keys := []string{"", "sk test", "sk-\n123", "sk-\x00abc"}
	for _, k := range keys {
		_, err := r.Build("groq", "", k)
		if !errors.Is(err, apperrors.ErrLLMProvider) {
			t.Errorf("Build(key=%q) error = %v, want LLMProviderError", k, err)
			continue
		}
		var e *apperrors.Error
		if errors.As(err, &e) && e.Provider != "groq" {
			t.Errorf("provider = %q, want groq", e.Provider)
		}
		if k != "" && strings.Contains(err.Error(), k) {
			t.Errorf("api key leaked into %q", err)
		}
	}
}

func TestConfiguredModelOverridesDefault(t *testing.T) {
	r := llm.NewRegistry(llm.Options{Models: map[string]string{"openai": "gpt-4.1"}})
	c, err := r.Build("openai", "", "k")
	if err != nil {
		t.Fatal(err)
	}
	if c.Model() != "gpt-4.1" {
		t.Errorf("model = %q", c.Model())
	}
	c, _ = r.Build("openai", "gpt-4o", "k")
	if c.Model() != "gpt-4o" {
		t.Errorf("tenant model ignored, got %q", c.Model())
	}
}

// ─── OpenAI-compatible transport ──────────────────────────

func openAIServer(t *testing.T, status int, body any, seen *http.Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.Clone(context.Background())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestOpenAICompatibleGenerate(t *testing.T) {
	for _, p := range []llm.Provider{llm.OpenAI, llm.Gemini, llm.Groq} {
		t.Run(string(p), func(t *testing.T) {
			var seen http.Request
			srv := openAIServer(t, http.StatusOK, completion("hello"), &seen)

			r := llm.NewRegistry(llm.Options{
				BaseURLs: map[string]string{string(p): srv.URL + "/v1"},
				Timeout:  5 * time.Second,
			})
			c, err := r.Build(string(p), "", "sk-test-123")
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Generate(context.Background(), llm.Request{System: "be terse", Prompt: "hi"})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got != "hello" {
				t.Errorf("Generate() = %q", got)
			}
			if seen.URL.Path != "/v1/chat/completions" {
				t.Errorf("path = %q", seen.URL.Path)
			}
			if auth := seen.Header.Get("Authorization"); auth != "Bearer sk-test-123" {
				t.Errorf("Authorization = %q", auth)
			}
		})
	}
}

func TestOpenAIAuthFailureHidesKey(t *testing.T) {
	const key = "sk-live-very-secret"
	srv := openAIServer(t, http.StatusUnauthorized, map[string]any{
		"error": map[string]any{
			"message": "Incorrect API key provided: " + key,
			"type":    "invalid_request_error",
		},
	}, nil)

	r := llm.NewRegistry(llm.Options{BaseURLs: map[string]string{"openai": srv.URL}})
	c, _ := r.Build("openai", "", key)
	_, err := c.Generate(context.Background(), llm.Request{Prompt: "hi"})
	if !errors.Is(err, apperrors.ErrLLMProvider) {
		t.Fatalf("error = %v, want LLMProviderError", err)
	}
	if strings.Contains(err.Error(), key) {
		t.Errorf("api key leaked: %q", err)
	}
	if msg := apperrors.PublicMessage(err); !strings.Contains(msg, "openai") || !strings.Contains(msg, "authentication") {
		t.Errorf("PublicMessage = %q", msg)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	body := completion("")
	body["choices"] = []any{}
	srv := openAIServer(t, http.StatusOK, body, nil)

	r := llm.NewRegistry(llm.Options{BaseURLs: map[string]string{"groq": srv.URL}})
	c, _ := r.Build("groq", "", "k")
	if _, err := c.Generate(context.Background(), llm.Request{Prompt: "hi"}); !errors.Is(err, apperrors.ErrLLMProvider) {
		t.Fatalf("error = %v, want LLMProviderError", err)
	}
}

func TestGenerateHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer srv.CloseClientConnections()
	defer close(release)

	r := llm.NewRegistry(llm.Options{BaseURLs: map[string]string{"openai": srv.URL}})
	c, _ := r.Build("openai", "", "k")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, llm.Request{Prompt: "hi"})
	if !errors.Is(err, apperrors.ErrLLMProvider) {
		t.Fatalf("error = %v, want LLMProviderError", err)
	}
}

// ─── Anthropic transport ──────────────────────────────────

func TestAnthropicGenerate(t *testing.T) {
	var calls atomic.Int32
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "insight"}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 3, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	r := llm.NewRegistry(llm.Options{BaseURLs: map[string]string{"anthropic": srv.URL}})
	c, err := r.Build("anthropic", "", "sk-ant-test")
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Generate(context.Background(), llm.Request{System: "s", Prompt: "p", MaxTokens: 100})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "insight" {
		t.Errorf("Generate() = %q", got)
	}
	if gotKey != "sk-ant-test" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestAnthropicUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	r := llm.NewRegistry(llm.Options{BaseURLs: map[string]string{"anthropic": srv.URL}})
	c, _ := r.Build("anthropic", "", "sk-ant-test")
	_, err := c.Generate(context.Background(), llm.Request{Prompt: "p"})
	var e *apperrors.Error
	if !errors.As(err, &e) || e.Kind != apperrors.KindLLMProvider {
		t.Fatalf("error = %v, want LLMProviderError", err)
	}
	if e.Provider != "anthropic" {
		t.Errorf("provider = %q", e.Provider)
	}
}
