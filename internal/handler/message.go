package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/msgfmt"
	"github.com/dormlink/internal/push"
	"github.com/dormlink/internal/realtime"
	"github.com/dormlink/internal/repository"
)

const (
	messagePageSize = 50
	maxMessageLen   = 4000
	pushBodyMaxLen  = 80
	pushSendTimeout = 10 * time.Second
)

type MessageHandler struct {
	conv        *ConversationHandler
	msgRepo     *repository.MessageRepository
	convRepo    *repository.ConversationRepository
	profileRepo *repository.ProfileRepository
	hub         *realtime.Hub
	pushSender  *push.Sender
}

func NewMessageHandler(conv *ConversationHandler, msgRepo *repository.MessageRepository, convRepo *repository.ConversationRepository, profileRepo *repository.ProfileRepository, hub *realtime.Hub, pushSender *push.Sender) *MessageHandler {
	return &MessageHandler{conv: conv, msgRepo: msgRepo, convRepo: convRepo, profileRepo: profileRepo, hub: hub, pushSender: pushSender}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type messagePage struct {
	Messages []model.Message `json:"messages"`
	HasMore  bool            `json:"has_more"`
}

// SendMessage сохраняет сообщение. Получателю без активного WebSocket
// уходит Web Push с именем отправителя и началом текста.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())
	if !h.conv.requireParticipant(w, r, conversationID, currentUserID) {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(req.Content) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "content too long")
		return
	}

	m := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       currentUserID,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.msgRepo.Create(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	go h.notifyOffline(conversationID, currentUserID, req.Content)

	writeJSON(w, http.StatusCreated, m)
}

// notifyOffline шлёт Web Push получателю, если у него нет живого WebSocket.
func (h *MessageHandler) notifyOffline(conversationID, senderID, content string) {
	if h.pushSender == nil || !h.pushSender.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pushSendTimeout)
	defer cancel()

	conv, err := h.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return
	}
	recipientID := conv.Counterpart(senderID)
	if h.hub.IsOnline(recipientID) {
		return
	}
	sender, err := h.profileRepo.GetPreview(ctx, senderID)
	if err != nil {
		return
	}
	h.pushSender.Notify(ctx, recipientID, push.Notification{
		Title: sender.FullName,
		Body:  msgfmt.TruncateText(content, pushBodyMaxLen),
		Data:  map[string]string{"conversation_id": conversationID},
	})
}

// GetMessages отдаёт страницу сообщений от новых к старым (50 за раз).
// Параметр before (RFC 3339) — created_at самого старого уже загруженного
// сообщения; has_more=true, когда страница полная.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())
	if !h.conv.requireParticipant(w, r, conversationID, currentUserID) {
		return
	}

	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC 3339")
			return
		}
		before = t
	}
	limit := queryInt(r, "limit", messagePageSize)
	if limit < 1 || limit > messagePageSize {
		limit = messagePageSize
	}

	messages, err := h.msgRepo.GetPage(r.Context(), conversationID, before, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, messagePage{Messages: messages, HasMore: len(messages) == limit})
}

// MarkRead помечает прочитанными все входящие сообщения диалога
// и обнуляет счётчик непрочитанного. Идемпотентен.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	currentUserID := middleware.GetUserID(r.Context())
	if !h.conv.requireParticipant(w, r, conversationID, currentUserID) {
		return
	}
	if err := h.msgRepo.MarkAllRead(r.Context(), conversationID, currentUserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
