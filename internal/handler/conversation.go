package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/repository"
)

type ConversationHandler struct {
	convRepo    *repository.ConversationRepository
	msgRepo     *repository.MessageRepository
	matchRepo   *repository.MatchRepository
	profileRepo *repository.ProfileRepository
}

func NewConversationHandler(convRepo *repository.ConversationRepository, msgRepo *repository.MessageRepository, matchRepo *repository.MatchRepository, profileRepo *repository.ProfileRepository) *ConversationHandler {
	return &ConversationHandler{convRepo: convRepo, msgRepo: msgRepo, matchRepo: matchRepo, profileRepo: profileRepo}
}

type openConversationRequest struct {
	UserID string `json:"user_id"`
}

// OpenConversation находит или создаёт диалог с собеседником.
// Диалог доступен только паре с принятым запросом на знакомство.
func (h *ConversationHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	var req openConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	if req.UserID == "" || req.UserID == currentUserID {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	accepted, err := h.matchRepo.HasAcceptedPair(r.Context(), currentUserID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}
	if !accepted {
		writeError(w, http.StatusForbidden, "match not accepted")
		return
	}

	conv, err := h.convRepo.GetOrCreate(r.Context(), currentUserID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ListConversations отдаёт диалоги текущего пользователя по убыванию
// последней активности: собеседник, текст последнего сообщения, непрочитанное.
// Параметр q фильтрует по имени собеседника (подстрока, без регистра).
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	convs, err := h.convRepo.ListForUser(r.Context(), currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	out := make([]model.ConversationPreview, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		preview, err := h.profileRepo.GetPreview(r.Context(), c.Counterpart(currentUserID))
		if err != nil {
			logger.Errorf("conversation list: профиль %s: %v", c.Counterpart(currentUserID), err)
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(preview.FullName), query) {
			continue
		}
		last, err := h.msgRepo.GetLastContent(r.Context(), c.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load conversations")
			return
		}
		out = append(out, model.ConversationPreview{
			ID:            c.ID,
			User:          *preview,
			LastMessageAt: c.LastMessageAt,
			LastMessage:   last,
			UnreadCount:   c.UnreadFor(currentUserID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// requireParticipant проверяет, что пользователь состоит в диалоге.
// Возвращает false, если ответ уже отправлен.
func (h *ConversationHandler) requireParticipant(w http.ResponseWriter, r *http.Request, conversationID, userID string) bool {
	ok, err := h.convRepo.IsParticipant(r.Context(), conversationID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check conversation")
		return false
	}
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return false
	}
	return true
}
