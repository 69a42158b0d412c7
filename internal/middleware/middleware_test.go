package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormlink/internal/middleware"
	"github.com/dormlink/internal/storage/memory"
)

func echoUserID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(middleware.GetUserID(r.Context())))
	})
}

func TestRequireAPIKey(t *testing.T) {
	h := middleware.RequireAPIKey("anon-key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"заголовок", func(r *http.Request) { r.Header.Set("X-Api-Key", "anon-key") }, http.StatusNoContent},
		{"query", func(r *http.Request) { r.URL.RawQuery = "apikey=anon-key" }, http.StatusNoContent},
		{"без ключа", func(r *http.Request) {}, http.StatusForbidden},
		{"неверный ключ", func(r *http.Request) { r.Header.Set("X-Api-Key", "other") }, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/interests", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestSessionAuth(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.SetSession(context.Background(), "tok-1", "user-1"))
	h := middleware.SessionAuth(store)(echoUserID())

	t.Run("заголовок Authorization", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer tok-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("query-параметр для WebSocket", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ws?token=tok-1", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("без токена", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("неизвестный токен", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer stale")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLoginRateLimit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		ok, err := store.CheckLoginRateLimit(ctx, "a@dorm.ru")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := store.CheckLoginRateLimit(ctx, "a@dorm.ru")
	require.NoError(t, err)
	assert.False(t, ok)

	// Лимит считается на адрес, соседний не задет.
	ok, err = store.CheckLoginRateLimit(ctx, "b@dorm.ru")
	require.NoError(t, err)
	assert.True(t, ok)
}
