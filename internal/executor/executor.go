// Package executor runs guarded SELECT statements over a read-only channel
// and returns the rows in engine order.
package executor

import (
	"context"
	"strings"

	"github.com/seoinsight/seoinsight/internal/models"
)

// Executor runs one statement. Failures are execution errors carrying the
// engine message; nothing is retried.
type Executor interface {
	Execute(ctx context.Context, sql string) (models.ExecutionResult, error)
	Ping(ctx context.Context) error
}

type tenantKey struct{}

// WithTenant scopes statements run with ctx to one tenant. The Postgres
// executor publishes it as app.user_id for the row security policies.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant set by WithTenant, or "".
func TenantFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey{}).(string)
	return id
}

// normalize strips surrounding whitespace and one trailing semicolon so the
// statement can be embedded as a subquery.
func normalize(sql string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
}

// capRows trims rows to max, keeping the head. max <= 0 means no cap.
func capRows(rows []map[string]any, max int) ([]map[string]any, bool) {
	if max <= 0 || len(rows) <= max {
		return rows, false
	}
	return rows[:max], true
}
