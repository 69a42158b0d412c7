package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	pool *pgxpool.Pool
	hub  *realtime.Hub
}

func NewConversationRepository(pool *pgxpool.Pool, hub *realtime.Hub) *ConversationRepository {
	return &ConversationRepository{pool: pool, hub: hub}
}

func (r *ConversationRepository) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if r.hub != nil {
		r.hub.Publish(ev, attrs)
	}
}

const conversationColumns = `id, user1_id, user2_id, last_message_at, unread_count_user1, unread_count_user2, created_at`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := row.Scan(&c.ID, &c.User1ID, &c.User2ID, &c.LastMessageAt,
		&c.UnreadCountUser1, &c.UnreadCountUser2, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreate возвращает диалог пары, создавая его при первом контакте.
// Пара канонизируется сортировкой id, поэтому запрос для (A,B) после
// существующего (B,A) вернёт тот же диалог, а не создаст дубликат.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, a, b string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetOrCreate", time.Now())()
	u1, u2 := model.CanonicalPair(a, b)

	c, err := r.findByPair(ctx, u1, u2)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	c = &model.Conversation{
		ID:            uuid.New().String(),
		User1ID:       u1,
		User2ID:       u2,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, user1_id, user2_id, last_message_at, created_at)
		 VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		c.ID, c.User1ID, c.User2ID, c.LastMessageAt, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetOrCreate insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Гонка с параллельным созданием — берём победившую строку.
		return r.findByPair(ctx, u1, u2)
	}
	r.publish(realtime.ChangeEvent{Table: realtime.TableConversations, Action: realtime.ActionInsert, New: c},
		map[string]string{"id": c.ID, "user1_id": u1, "user2_id": u2})
	return c, nil
}

func (r *ConversationRepository) findByPair(ctx context.Context, u1, u2 string) (*model.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE user1_id = $1 AND user2_id = $2`, u1, u2))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.findByPair: %w", err)
	}
	return c, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("conv.GetByID", time.Now())()
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("convRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListForUser возвращает диалоги, где userID стоит в любом слоте пары,
// по времени последнего сообщения от новых к старым.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conv.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE user1_id = $1 OR user2_id = $1
		 ORDER BY last_message_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser query: %w", err)
	}
	defer rows.Close()

	convs := make([]model.Conversation, 0, 16)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("convRepo.ListForUser scan: %w", err)
		}
		convs = append(convs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convRepo.ListForUser rows: %w", err)
	}
	return convs, nil
}

// IsParticipant сообщает, входит ли userID в пару диалога.
func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	defer logger.DeferLogDuration("conv.IsParticipant", time.Now())()
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1 AND (user1_id = $2 OR user2_id = $2))`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("convRepo.IsParticipant: %w", err)
	}
	return exists, nil
}
