package middleware

import "net/http"

// RequireAPIKey отсекает запросы без публичного ключа приложения.
// Ключ не секрет (он вшит в клиент), но позволяет отличать свои клиенты
// от случайного трафика. Передаётся в заголовке X-Api-Key или query apikey.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Api-Key")
			if got == "" {
				got = r.URL.Query().Get("apikey")
			}
			if got != key {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
