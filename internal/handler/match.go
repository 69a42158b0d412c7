package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/repository"
)

type MatchHandler struct {
	matchRepo   *repository.MatchRepository
	profileRepo *repository.ProfileRepository
}

func NewMatchHandler(matchRepo *repository.MatchRepository, profileRepo *repository.ProfileRepository) *MatchHandler {
	return &MatchHandler{matchRepo: matchRepo, profileRepo: profileRepo}
}

type createMatchRequest struct {
	UserID string `json:"user_id"`
}

// CreateMatch отправляет запрос на знакомство. Повторный запрос той же паре
// (в любом направлении) отвечает 409.
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	currentUserID := middleware.GetUserID(r.Context())
	if req.UserID == "" || req.UserID == currentUserID {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	if _, err := h.profileRepo.GetPreview(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if exists, err := h.matchRepo.HasPair(r.Context(), currentUserID, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create match")
		return
	} else if exists {
		writeError(w, http.StatusConflict, "match request already exists")
		return
	}

	m := &model.Match{
		ID:            uuid.New().String(),
		UserID:        currentUserID,
		MatchedUserID: req.UserID,
		Status:        model.MatchStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.matchRepo.Create(r.Context(), m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			writeError(w, http.StatusConflict, "match request already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create match")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMatches отдаёт все запросы пользователя, обогащённые профилем
// второй стороны. incoming=true — запрос адресован текущему пользователю.
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	currentUserID := middleware.GetUserID(r.Context())
	matches, err := h.matchRepo.ListForUser(r.Context(), currentUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load matches")
		return
	}
	out := make([]model.MatchWithProfile, 0, len(matches))
	for _, m := range matches {
		preview, err := h.profileRepo.GetPreview(r.Context(), m.Counterpart(currentUserID))
		if err != nil {
			// Собеседник мог удалить аккаунт между выборками.
			logger.Errorf("match list: профиль %s: %v", m.Counterpart(currentUserID), err)
			continue
		}
		out = append(out, model.MatchWithProfile{
			Match:    m,
			Profile:  *preview,
			Incoming: m.MatchedUserID == currentUserID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// AcceptMatch принимает входящий запрос. Принять может только адресат;
// чужой или уже принятый запрос отвечает 404.
func (h *MatchHandler) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	m, err := h.matchRepo.Accept(r.Context(), matchID, middleware.GetUserID(r.Context()))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to accept match")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// RejectMatch отклоняет входящий запрос: строка удаляется, пользователь
// сможет отправить запрос заново.
func (h *MatchHandler) RejectMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	err := h.matchRepo.Reject(r.Context(), matchID, middleware.GetUserID(r.Context()))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reject match")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
