package llm

import (
	"net/http"
	"strings"
	"time"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

// Options tune the registry. Map keys are provider ids.
type Options struct {
	BaseURLs map[string]string
	Models   map[string]string
	Timeout  time.Duration
}

// Registry constructs a client for a tenant's stored provider settings.
// It holds no per-tenant state and is safe for concurrent use.
type Registry struct {
	baseURLs   map[Provider]string
	models     map[Provider]string
	httpClient *http.Client
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		baseURLs: make(map[Provider]string),
		models:   make(map[Provider]string),
	}
	for k, v := range opts.BaseURLs {
		if v = strings.TrimSpace(v); v != "" {
			r.baseURLs[Provider(strings.ToLower(k))] = v
		}
	}
	for k, v := range opts.Models {
		if v = strings.TrimSpace(v); v != "" {
			r.models[Provider(strings.ToLower(k))] = v
		}
	}
	if opts.Timeout > 0 {
		r.httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return r
}

// Build returns a client for providerID. Unknown providers and malformed
// keys fail with an LLM provider error naming the provider.
func (r *Registry) Build(providerID, model, apiKey string) (Client, error) {
	p, err := ParseProvider(providerID)
	if err != nil {
		return nil, err
	}
	if err := checkKeyFormat(p, apiKey); err != nil {
		return nil, err
	}
	model = r.ResolveModel(p, model)
	baseURL := r.baseURL(p)

	switch p {
	case OpenAI, Gemini, Groq:
		return newOpenAICompatible(p, model, apiKey, baseURL, r.httpClient), nil
	case Anthropic:
		return newAnthropic(model, apiKey, baseURL, r.httpClient), nil
	default:
		return nil, apperrors.LLMProvider(string(p), "unsupported provider", nil)
	}
}

// ResolveModel returns model, or the configured or built-in default for p.
func (r *Registry) ResolveModel(p Provider, model string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}
	if m, ok := r.models[p]; ok {
		return m
	}
	return p.DefaultModel()
}

func (r *Registry) baseURL(p Provider) string {
	if u, ok := r.baseURLs[p]; ok {
		return u
	}
	return p.BaseURL()
}
