package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/seoinsight/seoinsight/internal/planner"
)

// ListColumns reads the live column list of the given public tables, in
// ordinal order. Tables that do not exist are absent from the result.
func (s *Store) ListColumns(ctx context.Context, tables []string) (map[string][]planner.Column, error) {
	out := make(map[string][]planner.Column, len(tables))
	if len(tables) == 0 {
		return out, nil
	}

	q := s.sql.Select("table_name", "column_name", "data_type").
		From("information_schema.columns").
		Where(sq.Eq{"table_schema": "public", "table_name": tables}).
		OrderBy("table_name", "ordinal_position")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list columns query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table string
		var col planner.Column
		if err := rows.Scan(&table, &col.Name, &col.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out[table] = append(out[table], col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return out, nil
}
