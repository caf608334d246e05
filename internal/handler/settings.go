package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/pipeline"
)

type CredentialSaver interface {
	SaveCredential(ctx context.Context, in pipeline.SaveCredentialInput) (pipeline.SaveCredentialResult, error)
}

// SettingsHandler handles POST /api/v1/settings/ai
type SettingsHandler struct {
	svc CredentialSaver
}

func NewSettingsHandler(svc CredentialSaver) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) SaveAI(w http.ResponseWriter, r *http.Request) {
	var req models.SaveSettingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.Validate(); msg != "" {
		models.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if !ownsTenant(r, req.UserID) {
		models.WriteError(w, http.StatusForbidden, "userId does not match the signed-in user")
		return
	}

	res, err := h.svc.SaveCredential(r.Context(), pipeline.SaveCredentialInput{
		TenantID: req.UserID,
		Provider: req.Provider,
		Model:    req.Model,
		APIKey:   req.APIKey,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, models.SaveSettingsResponse{
		Success:  true,
		Provider: res.Provider,
		Model:    res.Model,
	})
}
