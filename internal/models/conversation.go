package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one append-only entry of the chat log.
type ConversationTurn struct {
	TenantID     string    `json:"user_id"`
	SessionID    string    `json:"session_id"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	SQLGenerated *string   `json:"sql_generated,omitempty"`
	ChartType    *string   `json:"chart_type,omitempty"`
	ModelUsed    *string   `json:"model_used,omitempty"`
	ProviderUsed *string   `json:"provider_used,omitempty"`
	Timestamp    time.Time `json:"created_at"`
}

// TenantCredential is a tenant's stored provider settings.
type TenantCredential struct {
	TenantID     string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	EncryptedKey string    `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}
