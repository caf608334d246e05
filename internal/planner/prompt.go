package planner

import (
	"fmt"
	"strings"
)

const plannerRole = `You are an SEO analytics assistant that translates questions into PostgreSQL queries.

RULES:
1. Generate only a single SELECT statement. Never INSERT, UPDATE, DELETE, DROP, TRUNCATE, ALTER, CREATE, GRANT or REVOKE.
2. Every table you reference MUST be filtered with: WHERE user_id = '%s'
3. Always add a LIMIT clause of at most %d rows.
4. Use only the tables and columns listed below.
5. If the question cannot be answered from these tables, set "sql" to null and "error" to true and explain why.
6. Pick "chartType" from: bar, line, pie, area, table. Use line or area for time series, pie for shares of a whole, bar for rankings, table otherwise.`

const responseShape = `Respond with JSON only, no prose and no markdown, in exactly this shape:
{"sql": "SELECT ...", "explanation": "one sentence on what the query returns", "chartType": "bar", "chartConfig": {"xAxis": "column for the x axis", "yAxis": "column for the y axis", "title": "chart title"}, "error": false}`

// buildSystemPrompt assembles the planning instructions for one tenant.
func buildSystemPrompt(tables []Table, tenantID string, maxRows int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, plannerRole, quoteLiteral(tenantID), maxRows)
	sb.WriteString("\n\n## Tables\n")
	for _, t := range tables {
		sb.WriteString("\n### " + t.Name)
		if t.Description != "" {
			sb.WriteString(" - " + t.Description)
		}
		sb.WriteString("\n")
		for _, c := range t.Columns {
			sb.WriteString("- " + c.Name + " " + c.Type)
			if c.Description != "" {
				sb.WriteString(" (" + c.Description + ")")
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(responseShape)
	return sb.String()
}

// quoteLiteral doubles single quotes so the value is safe inside '...'.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
