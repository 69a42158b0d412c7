package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Сессия живёт 30 дней; rate limit входа 10 попыток / 10 минут на email.
const (
	SessionTTL        = 30 * 24 * 3600
	LoginRateLimitWin = 600 // 10 минут
	LoginRateLimitMax = 10  // попыток входа за окно
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetSession сохраняет token -> userID по ключу session:{token}, TTL 30 дней.
func (c *Client) SetSession(ctx context.Context, token, userID string) error {
	return c.cli.Set(ctx, "session:"+token, userID, SessionTTL*time.Second).Err()
}

// GetSession возвращает userID сессии ("" — токен неизвестен или истёк).
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteSession удаляет токен при выходе.
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}

// CheckLoginRateLimit проверяет login_limit:{email}: макс. LoginRateLimitMax попыток за окно. При превышении — HTTP 429.
func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "login_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, LoginRateLimitWin*time.Second)
	}
	return n <= int64(LoginRateLimitMax), nil
}

// FlushDB очищает текущую БД Redis (сброс сессий и rate limit при тестах/перезапуске).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
