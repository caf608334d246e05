package models

import "strings"

// ChartType is the visualization the planner picked for a result set.
type ChartType string

const (
	ChartBar   ChartType = "bar"
	ChartLine  ChartType = "line"
	ChartPie   ChartType = "pie"
	ChartArea  ChartType = "area"
	ChartTable ChartType = "table"

	// ChartNone is only used in responses that carry no data.
	ChartNone ChartType = "none"
)

// ParseChartType normalises a model-supplied chart type; anything outside
// the allowed set becomes a table.
func ParseChartType(s string) ChartType {
	switch ct := ChartType(strings.ToLower(strings.TrimSpace(s))); ct {
	case ChartBar, ChartLine, ChartPie, ChartArea, ChartTable:
		return ct
	default:
		return ChartTable
	}
}

type ChartConfig struct {
	XAxis string `json:"xAxis"`
	YAxis string `json:"yAxis"`
	Title string `json:"title"`
}

// QueryPlan is the planner's translation of one question.
type QueryPlan struct {
	SQL         *string     `json:"sql"`
	Explanation string      `json:"explanation"`
	ChartType   ChartType   `json:"chartType"`
	ChartConfig ChartConfig `json:"chartConfig"`
	Error       bool        `json:"error"`
}

// Derivable reports whether the plan carries a statement worth validating.
func (p QueryPlan) Derivable() bool {
	return !p.Error && p.SQL != nil && strings.TrimSpace(*p.SQL) != ""
}

// ExecutionResult holds rows in the order the engine returned them.
type ExecutionResult struct {
	Rows     []map[string]any
	RowCount int
}
