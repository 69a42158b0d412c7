package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchRepository struct {
	pool *pgxpool.Pool
	hub  *realtime.Hub
}

func NewMatchRepository(pool *pgxpool.Pool, hub *realtime.Hub) *MatchRepository {
	return &MatchRepository{pool: pool, hub: hub}
}

func (r *MatchRepository) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if r.hub != nil {
		r.hub.Publish(ev, attrs)
	}
}

// Create создаёт направленный запрос user → matched_user в статусе pending.
// Повторный запрос к тому же пользователю — ErrConflict.
func (r *MatchRepository) Create(ctx context.Context, m *model.Match) error {
	defer logger.DeferLogDuration("match.Create", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO matches (id, user_id, matched_user_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		m.ID, m.UserID, m.MatchedUserID, m.Status, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("matchRepo.Create: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	r.publish(realtime.ChangeEvent{Table: realtime.TableMatches, Action: realtime.ActionInsert, New: m},
		map[string]string{"user_id": m.UserID, "matched_user_id": m.MatchedUserID})
	return nil
}

// ListForUser возвращает запросы, где userID стоит в любом из слотов,
// от новых к старым.
func (r *MatchRepository) ListForUser(ctx context.Context, userID string) ([]model.Match, error) {
	defer logger.DeferLogDuration("match.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, matched_user_id, status, created_at
		 FROM matches
		 WHERE user_id = $1 OR matched_user_id = $1
		 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("matchRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	matches := make([]model.Match, 0, 16)
	for rows.Next() {
		var m model.Match
		if err := rows.Scan(&m.ID, &m.UserID, &m.MatchedUserID, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("matchRepo.ListForUser scan: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matchRepo.ListForUser rows: %w", err)
	}
	return matches, nil
}

// Accept переводит pending → accepted. Принять может только адресат запроса.
func (r *MatchRepository) Accept(ctx context.Context, matchID, userID string) (*model.Match, error) {
	defer logger.DeferLogDuration("match.Accept", time.Now())()
	m := &model.Match{}
	err := r.pool.QueryRow(ctx,
		`UPDATE matches SET status = 'accepted'
		 WHERE id = $1 AND matched_user_id = $2 AND status = 'pending'
		 RETURNING id, user_id, matched_user_id, status, created_at`,
		matchID, userID,
	).Scan(&m.ID, &m.UserID, &m.MatchedUserID, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("matchRepo.Accept: %w", err)
	}
	r.publish(realtime.ChangeEvent{Table: realtime.TableMatches, Action: realtime.ActionUpdate, New: m},
		map[string]string{"user_id": m.UserID, "matched_user_id": m.MatchedUserID})
	return m, nil
}

// Reject удаляет запрос (отклонение — терминальное отсутствие строки).
// Отклонить может только адресат.
func (r *MatchRepository) Reject(ctx context.Context, matchID, userID string) error {
	defer logger.DeferLogDuration("match.Reject", time.Now())()
	m := &model.Match{}
	err := r.pool.QueryRow(ctx,
		`DELETE FROM matches WHERE id = $1 AND matched_user_id = $2
		 RETURNING id, user_id, matched_user_id, status, created_at`,
		matchID, userID,
	).Scan(&m.ID, &m.UserID, &m.MatchedUserID, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("matchRepo.Reject: %w", err)
	}
	r.publish(realtime.ChangeEvent{Table: realtime.TableMatches, Action: realtime.ActionDelete, Old: m},
		map[string]string{"user_id": m.UserID, "matched_user_id": m.MatchedUserID})
	return nil
}

// HasPair сообщает, есть ли запрос между двумя пользователями в любом направлении.
func (r *MatchRepository) HasPair(ctx context.Context, a, b string) (bool, error) {
	defer logger.DeferLogDuration("match.HasPair", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM matches
		 WHERE (user_id = $1 AND matched_user_id = $2) OR (user_id = $2 AND matched_user_id = $1))`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("matchRepo.HasPair: %w", err)
	}
	return exists, nil
}

// HasAcceptedPair сообщает, есть ли между пользователями принятый запрос.
// Диалог разрешён только такой паре.
func (r *MatchRepository) HasAcceptedPair(ctx context.Context, a, b string) (bool, error) {
	defer logger.DeferLogDuration("match.HasAcceptedPair", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM matches
		 WHERE status = 'accepted'
		   AND ((user_id = $1 AND matched_user_id = $2) OR (user_id = $2 AND matched_user_id = $1)))`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("matchRepo.HasAcceptedPair: %w", err)
	}
	return exists, nil
}
