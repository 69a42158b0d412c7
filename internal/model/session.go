package model

import "time"

// Account — учётная запись (email + пароль). Анкета хранится отдельно
// в profiles и создаётся на странице настройки.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session — активная сессия: непрозрачный токен → пользователь.
// Хранится в Redis (или в памяти в -dev) с TTL.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
