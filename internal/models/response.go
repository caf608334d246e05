package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ChatResponse is returned by POST /api/v1/chat. Data and SQL are null when
// no query could be derived from the question.
type ChatResponse struct {
	Summary     string           `json:"summary"`
	Data        []map[string]any `json:"data"`
	ChartType   string           `json:"chartType"`
	ChartConfig ChartConfig      `json:"chartConfig"`
	SQL         *string          `json:"sql"`
	RowCount    int              `json:"rowCount"`
	SessionID   string           `json:"sessionId,omitempty"`
}

// SaveSettingsResponse never carries the API key.
type SaveSettingsResponse struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}
