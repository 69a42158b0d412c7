package storage

import "context"

// SessionStore — хранилище сессионных токенов и rate limit входа.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type SessionStore interface {
	SetSession(ctx context.Context, token, userID string) error
	GetSession(ctx context.Context, token string) (userID string, err error)
	DeleteSession(ctx context.Context, token string) error
	CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error)
	Close() error
}
