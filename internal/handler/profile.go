package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/repository"
)

type ProfileHandler struct {
	profileRepo  *repository.ProfileRepository
	interestRepo *repository.InterestRepository
}

func NewProfileHandler(profileRepo *repository.ProfileRepository, interestRepo *repository.InterestRepository) *ProfileHandler {
	return &ProfileHandler{profileRepo: profileRepo, interestRepo: interestRepo}
}

type upsertProfileRequest struct {
	FullName    string   `json:"full_name"`
	Age         *int     `json:"age"`
	University  string   `json:"university"`
	Dormitory   string   `json:"dormitory"`
	RoomNumber  string   `json:"room_number"`
	Bio         string   `json:"bio"`
	AvatarURL   string   `json:"avatar_url"`
	Gender      string   `json:"gender"`
	InterestIDs []string `json:"interest_ids"`
}

// UpsertProfile создаёт или обновляет анкету текущего пользователя.
// Интересы заменяются целиком: interest_ids — новое множество.
func (h *ProfileHandler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req upsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	if req.Age != nil && (*req.Age < 16 || *req.Age > 100) {
		writeError(w, http.StatusBadRequest, "age out of range")
		return
	}

	userID := middleware.GetUserID(r.Context())
	p := &model.Profile{
		ID:         userID,
		FullName:   req.FullName,
		Age:        req.Age,
		University: strings.TrimSpace(req.University),
		Dormitory:  strings.TrimSpace(req.Dormitory),
		RoomNumber: strings.TrimSpace(req.RoomNumber),
		Bio:        req.Bio,
		AvatarURL:  req.AvatarURL,
		Gender:     req.Gender,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.profileRepo.Upsert(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	if req.InterestIDs != nil {
		if err := h.interestRepo.ReplaceUserInterests(r.Context(), userID, req.InterestIDs); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save interests")
			return
		}
	}

	saved, err := h.profileRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.profileRepo.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SearchProfiles отдаёт всех соседей кроме себя. Фильтры точного совпадения
// задаются query-параметрами university, dormitory, gender.
func (h *ProfileHandler) SearchProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ProfileFilter{
		University: q.Get("university"),
		Dormitory:  q.Get("dormitory"),
		Gender:     q.Get("gender"),
	}
	profiles, err := h.profileRepo.List(r.Context(), middleware.GetUserID(r.Context()), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) ListInterests(w http.ResponseWriter, r *http.Request) {
	interests, err := h.interestRepo.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load interests")
		return
	}
	writeJSON(w, http.StatusOK, interests)
}

type presenceRequest struct {
	IsOnline bool `json:"is_online"`
}

// UpdatePresence выставляет флаг онлайна вручную (heartbeat с клиента).
// WebSocket-подключение делает то же самое автоматически.
func (h *ProfileHandler) UpdatePresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	userID := middleware.GetUserID(r.Context())
	if err := h.profileRepo.SetOnline(r.Context(), userID, req.IsOnline); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update presence")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
