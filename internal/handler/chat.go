package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/seoinsight/seoinsight/internal/apperrors"
	"github.com/seoinsight/seoinsight/internal/middleware"
	"github.com/seoinsight/seoinsight/internal/models"
	"github.com/seoinsight/seoinsight/internal/pipeline"
)

const maxBodyBytes = 64 << 10

// Asker is satisfied by *pipeline.Pipeline.
type Asker interface {
	Ask(ctx context.Context, in pipeline.AskInput) (*models.ChatResponse, error)
}

// ChatHandler handles POST /api/v1/chat
type ChatHandler struct {
	svc Asker
}

func NewChatHandler(svc Asker) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
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

	resp, err := h.svc.Ask(r.Context(), pipeline.AskInput{
		TenantID:  req.UserID,
		SessionID: req.SessionID,
		Question:  req.Message,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, resp)
}

// ownsTenant is true unless a session token names a different user.
func ownsTenant(r *http.Request, userID string) bool {
	sub, ok := middleware.SubjectFromContext(r.Context())
	return !ok || sub == userID
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("kind", string(apperrors.KindOf(err))).
			Msg("request failed")
	}
	models.WriteError(w, status, apperrors.PublicMessage(err))
}
