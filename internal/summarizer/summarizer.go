// Package summarizer asks the tenant's model for a short insight over a
// result sample and supplies a fallback when that call fails.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/llm"
	"github.com/seoinsight/seoinsight/internal/models"
)

const (
	DefaultSampleRows = 20

	summaryMaxTokens   = 300
	summaryTemperature = 0.3
)

// systemPrompt is kept short; the summary call is the cheap one.
const systemPrompt = `You are an SEO analyst. Given a question and query results, reply with 2-3 plain sentences: the key finding with concrete numbers, then one actionable recommendation. No markdown, no lists, no preamble.`

type Options struct {
	SampleRows int
	Timeout    time.Duration
}

type Summarizer struct {
	sampleRows int
	timeout    time.Duration
}

func New(opts Options) *Summarizer {
	s := &Summarizer{sampleRows: opts.SampleRows, timeout: opts.Timeout}
	if s.sampleRows <= 0 {
		s.sampleRows = DefaultSampleRows
	}
	return s
}

// Summarize returns the model's insight over the first rows of the result.
// Callers treat any error as non-fatal and use Fallback.
func (s *Summarizer) Summarize(ctx context.Context, client llm.Client, question string, rows []map[string]any) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sample := rows
	if len(sample) > s.sampleRows {
		sample = sample[:s.sampleRows]
	}
	data, err := json.Marshal(sample)
	if err != nil {
		return "", apperrors.New(apperrors.KindSummarization, "encode sample", err)
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Question: %s\n\n", question)
	fmt.Fprintf(&prompt, "Results (%d rows total", len(rows))
	if len(sample) < len(rows) {
		fmt.Fprintf(&prompt, ", first %d shown", len(sample))
	}
	prompt.WriteString("):\n")
	prompt.Write(data)

	text, err := client.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt.String(),
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", apperrors.New(apperrors.KindSummarization, "summary call failed", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.New(apperrors.KindSummarization, "empty summary", nil)
	}
	return text, nil
}

// Fallback is the text used when no summary could be produced.
func Fallback(plan models.QueryPlan, rowCount int) string {
	if e := strings.TrimSpace(plan.Explanation); e != "" {
		return e
	}
	return fmt.Sprintf("Found %d results", rowCount)
}
