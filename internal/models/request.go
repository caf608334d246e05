package models

import "strings"

// ChatRequest for POST /api/v1/chat
type ChatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

// Validate returns a message for the first missing required field, or "".
func (r *ChatRequest) Validate() string {
	r.Message = strings.TrimSpace(r.Message)
	r.UserID = strings.TrimSpace(r.UserID)
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.Message == "" {
		return "message is required"
	}
	if r.UserID == "" {
		return "userId is required"
	}
	return ""
}

// SaveSettingsRequest for POST /api/v1/settings/ai
type SaveSettingsRequest struct {
	UserID   string `json:"userId"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey"`
}

func (r *SaveSettingsRequest) Validate() string {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	r.Model = strings.TrimSpace(r.Model)
	if r.UserID == "" {
		return "userId is required"
	}
	if strings.TrimSpace(r.APIKey) == "" {
		return "apiKey is required"
	}
	return ""
}
