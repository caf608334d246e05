package security

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// ChatAudit is one chat request as seen by the audit log. Identifiers are
// hashed before they are written.
type ChatAudit struct {
	TenantID   string
	SessionID  string
	Question   string
	SQL        string
	Provider   string
	Model      string
	Outcome    string
	RowCount   int
	DurationMs int64
}

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogChat records a chat pipeline run.
func (a *AuditLogger) LogChat(e ChatAudit) {
	if !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "chat_audit").
		Str("tenant_hash", HashID(e.TenantID)).
		Str("session_id", e.SessionID).
		Str("question_hash", HashID(e.Question)).
		Str("provider", e.Provider).
		Str("model", e.Model).
		Str("outcome", e.Outcome).
		Int("row_count", e.RowCount).
		Int64("duration_ms", e.DurationMs)
	if e.SQL != "" {
		evt = evt.Str("sql_hash", HashID(e.SQL))
	}
	evt.Msg("audit")
}

// LogCredentialSaved records a settings change without any key material.
func (a *AuditLogger) LogCredentialSaved(tenantID, provider, model string) {
	if !a.enabled {
		return
	}
	log.Info().
		Str("event", "credential_audit").
		Str("tenant_hash", HashID(tenantID)).
		Str("provider", provider).
		Str("model", model).
		Msg("audit")
}

// HashID returns a short stable digest for log correlation.
func HashID(s string) string {
	if s == "" {
		return ""
	}
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}
