package store

import (
	"context"
	"time"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/models"
)

var conversationColumns = []string{
	"user_id", "session_id", "role", "content",
	"sql_generated", "chart_type", "model_used", "provider_used", "created_at",
}

// Append writes all turns in one INSERT so a question and its answer land
// together or not at all.
func (s *Store) Append(ctx context.Context, turns []models.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	q := s.sql.Insert("chat_messages").Columns(conversationColumns...)
	for _, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		q = q.Values(
			t.TenantID, t.SessionID, string(t.Role), t.Content,
			t.SQLGenerated, t.ChartType, t.ModelUsed, t.ProviderUsed, ts,
		)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return apperrors.Persistence("build conversation insert", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return apperrors.Persistence("append conversation", err)
	}
	return nil
}
