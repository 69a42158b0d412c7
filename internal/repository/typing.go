package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TypingRepository хранит эфемерные строки "печатает" с ключом
// (conversation_id, user_id). Строки живут секунды и подчищаются Delete.
type TypingRepository struct {
	pool *pgxpool.Pool
	hub  *realtime.Hub
}

func NewTypingRepository(pool *pgxpool.Pool, hub *realtime.Hub) *TypingRepository {
	return &TypingRepository{pool: pool, hub: hub}
}

func (r *TypingRepository) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if r.hub != nil {
		r.hub.Publish(ev, attrs)
	}
}

func (r *TypingRepository) Upsert(ctx context.Context, conversationID, userID string) error {
	defer logger.DeferLogDuration("typing.Upsert", time.Now())()
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO typing_indicators (conversation_id, user_id, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (conversation_id, user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
		 WHERE typing_indicators.updated_at < EXCLUDED.updated_at`,
		conversationID, userID, now,
	)
	if err != nil {
		return fmt.Errorf("typingRepo.Upsert: %w", err)
	}
	ind := &model.TypingIndicator{ConversationID: conversationID, UserID: userID, UpdatedAt: now}
	// INSERT и UPDATE для подписчика равнозначны: оба значат "собеседник печатает".
	r.publish(realtime.ChangeEvent{Table: realtime.TableTypingIndicators, Action: realtime.ActionUpdate, New: ind},
		map[string]string{"conversation_id": conversationID})
	return nil
}

func (r *TypingRepository) Delete(ctx context.Context, conversationID, userID string) error {
	defer logger.DeferLogDuration("typing.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM typing_indicators WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("typingRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	ind := &model.TypingIndicator{ConversationID: conversationID, UserID: userID}
	r.publish(realtime.ChangeEvent{Table: realtime.TableTypingIndicators, Action: realtime.ActionDelete, Old: ind},
		map[string]string{"conversation_id": conversationID})
	return nil
}
