package security

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const bigQueryCostPerTB = 6.25 // USD, on-demand

// CostTracker enforces the warehouse byte budget for one query.
type CostTracker struct {
	maxBytes int64
}

func NewCostTracker(maxBytes int64) *CostTracker {
	return &CostTracker{maxBytes: maxBytes}
}

// MaxBytes is the per-query byte budget; zero disables the check.
func (ct *CostTracker) MaxBytes() int64 { return ct.maxBytes }

// CheckLimits returns false and a caller-facing message when the estimate
// exceeds the budget.
func (ct *CostTracker) CheckLimits(estimatedBytes int64) (bool, string) {
	if ct.maxBytes <= 0 || estimatedBytes <= ct.maxBytes {
		return true, ""
	}
	return false, fmt.Sprintf(
		"query would scan %.2fGB, above the %.2fGB limit, narrow the date range",
		float64(estimatedBytes)/bytesPerGB, float64(ct.maxBytes)/bytesPerGB,
	)
}

// LogQueryCost logs the scan size and on-demand cost of an executed query.
func (ct *CostTracker) LogQueryCost(sql string, bytesProcessed int64, durationMs int64) {
	processedGB := float64(bytesProcessed) / bytesPerGB
	log.Info().
		Str("event", "query_cost").
		Str("sql_hash", HashID(sql)).
		Float64("processed_gb", processedGB).
		Float64("cost_usd", processedGB/1000.0*bigQueryCostPerTB).
		Int64("duration_ms", durationMs).
		Msg("query cost")
}
