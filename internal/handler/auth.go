package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/repository"
	"github.com/dormlink/internal/storage"
)

const minPasswordLen = 8

type AuthHandler struct {
	accountRepo *repository.AccountRepository
	profileRepo *repository.ProfileRepository
	sessions    storage.SessionStore
}

func NewAuthHandler(accountRepo *repository.AccountRepository, profileRepo *repository.ProfileRepository, sessions storage.SessionStore) *AuthHandler {
	return &AuthHandler{accountRepo: accountRepo, profileRepo: profileRepo, sessions: sessions}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Register создаёт аккаунт и сразу открывает сессию. Профиль пользователь
// заполняет отдельным шагом; до этого GetMe отдаёт has_profile=false.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, http.StatusBadRequest, "password too short")
		return
	}

	if _, err := h.accountRepo.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	acc := &model.Account{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.accountRepo.Create(r.Context(), acc); err != nil {
		logger.Errorf("auth register: %v", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.openSession(r, acc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, UserID: acc.ID})
}

// Login проверяет пароль и открывает сессию. Неверный email и неверный
// пароль отвечают одинаково, чтобы не раскрывать существование аккаунта.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	allowed, err := h.sessions.CheckLoginRateLimit(r.Context(), req.Email)
	if err != nil {
		logger.Errorf("auth login rate limit: %v", err)
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	acc, err := h.accountRepo.GetByEmail(r.Context(), req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.openSession(r, acc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, UserID: acc.ID})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if hdr := r.Header.Get("Authorization"); strings.HasPrefix(hdr, "Bearer ") {
		token = strings.TrimPrefix(hdr, "Bearer ")
	}
	if token != "" {
		if err := h.sessions.DeleteSession(r.Context(), token); err != nil {
			logger.Errorf("auth logout: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	UserID     string         `json:"user_id"`
	Email      string         `json:"email"`
	HasProfile bool           `json:"has_profile"`
	Profile    *model.Profile `json:"profile,omitempty"`
}

// GetMe отдаёт аккаунт и профиль текущей сессии. Отсутствие профиля —
// не ошибка: клиент по has_profile=false уводит на заполнение анкеты.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	acc, err := h.accountRepo.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	resp := meResponse{UserID: acc.ID, Email: acc.Email}
	profile, err := h.profileRepo.GetByID(r.Context(), userID)
	if err == nil {
		resp.HasProfile = true
		resp.Profile = profile
	} else if !errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) openSession(r *http.Request, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	if err := h.sessions.SetSession(r.Context(), token, userID); err != nil {
		logger.Errorf("auth open session: %v", err)
		return "", err
	}
	return token, nil
}
