package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/models"
)

type ElasticOptions struct {
	Address     string
	User        string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Index       string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// ElasticConversations archives the conversation log in an index instead
// of chat_messages.
type ElasticConversations struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticConversations(opts ElasticOptions) (*ElasticConversations, error) {
	cfg := elasticsearch.Config{
		Addresses:  []string{opts.Address},
		MaxRetries: opts.MaxRetries,
		Transport:  opts.Transport,
	}
	if opts.MaxRetries == 0 {
		cfg.DisableRetry = true
	}
	if opts.User != "" {
		cfg.Username = opts.User
		cfg.Password = opts.Password
	}
	if !opts.VerifyCerts && cfg.Transport == nil {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - cert verification explicitly disabled
			},
		}
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	index := opts.Index
	if index == "" {
		index = "chat-messages"
	}
	return &ElasticConversations{client: client, index: index}, nil
}

func (e *ElasticConversations) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

type conversationDoc struct {
	UserID       string  `json:"user_id"`
	SessionID    string  `json:"session_id"`
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	SQLGenerated *string `json:"sql_generated,omitempty"`
	ChartType    *string `json:"chart_type,omitempty"`
	ModelUsed    *string `json:"model_used,omitempty"`
	ProviderUsed *string `json:"provider_used,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Append sends every turn in a single bulk request.
func (e *ElasticConversations) Append(ctx context.Context, turns []models.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if err := enc.Encode(map[string]any{"index": map[string]string{"_index": e.index}}); err != nil {
			return apperrors.Persistence("encode bulk action", err)
		}
		if err := enc.Encode(conversationDoc{
			UserID:       t.TenantID,
			SessionID:    t.SessionID,
			Role:         string(t.Role),
			Content:      t.Content,
			SQLGenerated: t.SQLGenerated,
			ChartType:    t.ChartType,
			ModelUsed:    t.ModelUsed,
			ProviderUsed: t.ProviderUsed,
			CreatedAt:    ts.Format(time.RFC3339Nano),
		}); err != nil {
			return apperrors.Persistence("encode conversation doc", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(body.Bytes()),
		e.client.Bulk.WithContext(ctx),
		e.client.Bulk.WithIndex(e.index),
	)
	if err != nil {
		return apperrors.Persistence("bulk request", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return apperrors.Persistence(fmt.Sprintf("bulk error: %s %s", res.Status(), bytes.TrimSpace(msg)), nil)
	}

	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return apperrors.Persistence("decode bulk response", err)
	}
	if out.Errors {
		return apperrors.Persistence("bulk request had item failures", nil)
	}
	return nil
}
