// Package planner turns a natural-language question into a query plan by
// prompting the tenant's model with the relevant part of the schema.
package planner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/llm"
	"github.com/seoinsight/seoinsight/internal/models"
)

const (
	planMaxTokens   = 1024
	planTemperature = 0.1

	// FallbackExplanation is returned when the model reply is not a plan.
	FallbackExplanation = "I couldn't turn that question into a query. Try rephrasing it, for example \"Show me sessions by country for the last 30 days\"."
)

type Options struct {
	Catalog *Catalog
	// Columns enables live column lists. Nil uses catalog columns only.
	Columns ColumnSource
	MaxRows int
	Timeout time.Duration
}

type Planner struct {
	catalog *Catalog
	columns *columnCache
	maxRows int
	timeout time.Duration
}

func New(opts Options) *Planner {
	p := &Planner{
		catalog: opts.Catalog,
		maxRows: opts.MaxRows,
		timeout: opts.Timeout,
	}
	if p.catalog == nil {
		p.catalog = DefaultCatalog()
	}
	if p.maxRows <= 0 || p.maxRows > 1000 {
		p.maxRows = 1000
	}
	if opts.Columns != nil {
		p.columns = newColumnCache(opts.Columns, p.catalog.TableNames())
	}
	return p
}

// Plan asks the model for a plan. Only model call failures are returned as
// errors; an unparsable reply becomes a non-derivable fallback plan.
func (p *Planner) Plan(ctx context.Context, client llm.Client, question, tenantID string) (models.QueryPlan, error) {
	tables := p.catalog.Select(question)
	if p.columns != nil {
		tables = merge(tables, p.columns.Columns(ctx))
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := client.Generate(ctx, llm.Request{
		System:      buildSystemPrompt(tables, tenantID, p.maxRows),
		Prompt:      question,
		MaxTokens:   planMaxTokens,
		Temperature: planTemperature,
	})
	if err != nil {
		return models.QueryPlan{}, err
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", string(client.Provider())).
			Int("reply_len", len(raw)).
			Msg("plan reply not parseable, using fallback")
		return fallbackPlan(), nil
	}
	return plan, nil
}

type planWire struct {
	SQL         *string            `json:"sql"`
	Explanation string             `json:"explanation"`
	ChartType   string             `json:"chartType"`
	ChartConfig models.ChartConfig `json:"chartConfig"`
	Error       bool               `json:"error"`
}

// ParsePlan decodes a model reply, tolerating a surrounding markdown fence.
func ParsePlan(raw string) (models.QueryPlan, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return models.QueryPlan{}, apperrors.New(apperrors.KindPlanParse, "empty reply", nil)
	}

	var w planWire
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return models.QueryPlan{}, apperrors.New(apperrors.KindPlanParse, "reply is not a JSON plan", err)
	}

	plan := models.QueryPlan{
		Explanation: strings.TrimSpace(w.Explanation),
		ChartType:   models.ParseChartType(w.ChartType),
		ChartConfig: w.ChartConfig,
		Error:       w.Error,
	}
	if w.SQL != nil {
		if sql := strings.TrimSpace(*w.SQL); sql != "" {
			plan.SQL = &sql
		}
	}
	if !plan.Derivable() && plan.Explanation == "" {
		plan.Explanation = FallbackExplanation
	}
	return plan, nil
}

func fallbackPlan() models.QueryPlan {
	return models.QueryPlan{
		Explanation: FallbackExplanation,
		ChartType:   models.ChartNone,
		Error:       true,
	}
}

// stripCodeFence removes a ```json or ``` wrapper if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		if lang := strings.TrimSpace(s[:nl]); !strings.HasPrefix(lang, "{") {
			s = s[nl+1:]
		}
	}
	if end := strings.LastIndex(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
