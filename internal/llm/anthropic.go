package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/apperrors"
)

const anthropicDefaultMaxTokens = 1024

// anthropicClient wraps the Messages API. Auth goes through x-api-key.
type anthropicClient struct {
	model  string
	apiKey string
	client *anthropic.Client
}

func newAnthropic(model, apiKey, baseURL string, hc *http.Client) *anthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &anthropicClient{
		model:  model,
		apiKey: apiKey,
		client: anthropic.NewClient(opts...),
	}
}

func (c *anthropicClient) Provider() Provider { return Anthropic }
func (c *anthropicClient) Model() string      { return c.model }

func (c *anthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(c.model)),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		}),
		Temperature: anthropic.F(req.Temperature),
	}
	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(req.System),
		})
	}

	start := time.Now()
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		log.Warn().
			Str("provider", string(Anthropic)).
			Str("model", c.model).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("messages request failed")
		return "", classify(Anthropic, c.apiKey, status, err)
	}

	var text string
	for _, block := range resp.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			text += b.Text
		}
	}
	if text == "" {
		return "", apperrors.LLMProvider(string(Anthropic), "no text in response", nil)
	}

	log.Debug().
		Str("provider", string(Anthropic)).
		Str("model", c.model).
		Str("stop_reason", string(resp.StopReason)).
		Dur("elapsed", time.Since(start)).
		Msg("messages request done")

	return text, nil
}
