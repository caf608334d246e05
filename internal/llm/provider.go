// Package llm builds per-tenant model clients for the supported providers
// behind a single Generate capability.
package llm

import (
	"context"
	"strings"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

// Provider identifies an upstream model vendor. The set is closed.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Gemini    Provider = "gemini"
	Groq      Provider = "groq"
)

// DefaultProvider is used when a tenant saved settings without one.
const DefaultProvider = OpenAI

// Providers lists every supported provider in display order.
var Providers = []Provider{OpenAI, Anthropic, Gemini, Groq}

// ParseProvider resolves a stored provider id by exact match. Empty input
// yields the default provider.
func ParseProvider(s string) (Provider, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	if id == "" {
		return DefaultProvider, nil
	}
	switch p := Provider(id); p {
	case OpenAI, Anthropic, Gemini, Groq:
		return p, nil
	default:
		return "", apperrors.LLMProvider(id, "unsupported provider", nil)
	}
}

// DefaultModel is the model used when the tenant stored none.
func (p Provider) DefaultModel() string {
	switch p {
	case OpenAI:
		return "gpt-4o-mini"
	case Anthropic:
		return "claude-3-5-haiku-latest"
	case Gemini:
		return "gemini-2.0-flash"
	case Groq:
		return "llama-3.3-70b-versatile"
	default:
		return ""
	}
}

// BaseURL is the provider's public API endpoint.
func (p Provider) BaseURL() string {
	switch p {
	case OpenAI:
		return "https://api.openai.com/v1"
	case Anthropic:
		return "https://api.anthropic.com"
	case Gemini:
		return "https://generativelanguage.googleapis.com/v1beta/openai"
	case Groq:
		return "https://api.groq.com/openai/v1"
	default:
		return ""
	}
}

// Request is one single-turn completion.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client is the uniform capability every provider variant exposes.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Provider() Provider
	Model() string
}
