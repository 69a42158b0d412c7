package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/repository"
)

type TypingHandler struct {
	conv       *ConversationHandler
	typingRepo *repository.TypingRepository
}

func NewTypingHandler(conv *ConversationHandler, typingRepo *repository.TypingRepository) *TypingHandler {
	return &TypingHandler{conv: conv, typingRepo: typingRepo}
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

// SetTyping выставляет или снимает индикатор "печатает" в диалоге.
// Строка живёт до явного снятия; собеседник сам гасит индикатор по таймеру.
func (h *TypingHandler) SetTyping(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())
	if !h.conv.requireParticipant(w, r, conversationID, currentUserID) {
		return
	}
	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var err error
	if req.Typing {
		err = h.typingRepo.Upsert(r.Context(), conversationID, currentUserID)
	} else {
		err = h.typingRepo.Delete(r.Context(), conversationID, currentUserID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update typing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
