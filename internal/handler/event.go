package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/repository"
)

type EventHandler struct {
	eventRepo *repository.EventRepository
}

func NewEventHandler(eventRepo *repository.EventRepository) *EventHandler {
	return &EventHandler{eventRepo: eventRepo}
}

type createEventRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	Location        string `json:"location"`
	EventDate       string `json:"event_date"`
	MaxParticipants *int   `json:"max_participants"`
}

// CreateEvent публикует событие на доске. Дата — RFC 3339, в прошлом не принимается.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	when, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "event_date must be RFC 3339")
		return
	}
	if when.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "event_date is in the past")
		return
	}
	if req.MaxParticipants != nil && *req.MaxParticipants < 2 {
		writeError(w, http.StatusBadRequest, "max_participants must be at least 2")
		return
	}

	e := &model.Event{
		ID:              uuid.New().String(),
		CreatorID:       middleware.GetUserID(r.Context()),
		Title:           req.Title,
		Description:     req.Description,
		Category:        model.InterestCategory(req.Category),
		Location:        strings.TrimSpace(req.Location),
		EventDate:       when.UTC(),
		MaxParticipants: req.MaxParticipants,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.eventRepo.Create(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// ListEvents отдаёт предстоящие события по возрастанию даты,
// с числом участников и флагом joined для текущего пользователя.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventRepo.ListUpcoming(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// JoinEvent записывает пользователя в событие. Переполненное событие — 409,
// повторная запись безвредна.
func (h *EventHandler) JoinEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	err := h.eventRepo.Join(r.Context(), eventID, middleware.GetUserID(r.Context()))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if errors.Is(err, repository.ErrConflict) {
		writeError(w, http.StatusConflict, "event is full")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to join event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) LeaveEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if err := h.eventRepo.Leave(r.Context(), eventID, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to leave event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
