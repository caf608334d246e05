package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

// openAIClient serves every provider that speaks the OpenAI chat
// completions protocol with Bearer auth.
type openAIClient struct {
	provider Provider
	model    string
	apiKey   string
	client   *openai.Client
}

func newOpenAICompatible(p Provider, model, apiKey, baseURL string, hc *http.Client) *openAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return &openAIClient{
		provider: p,
		model:    model,
		apiKey:   apiKey,
		client:   openai.NewClientWithConfig(cfg),
	}
}

func (c *openAIClient) Provider() Provider { return c.provider }
func (c *openAIClient) Model() string      { return c.model }

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		log.Warn().
			Str("provider", string(c.provider)).
			Str("model", c.model).
			Dur("elapsed", time.Since(start)).
			Msg("completion request failed")
		return "", classify(c.provider, c.apiKey, statusOf(err), err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.LLMProvider(string(c.provider), "no choices in response", nil)
	}

	log.Debug().
		Str("provider", string(c.provider)).
		Str("model", c.model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("completion request done")

	return resp.Choices[0].Message.Content, nil
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
