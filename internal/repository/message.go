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

type MessageRepository struct {
	pool *pgxpool.Pool
	hub  *realtime.Hub
}

func NewMessageRepository(pool *pgxpool.Pool, hub *realtime.Hub) *MessageRepository {
	return &MessageRepository{pool: pool, hub: hub}
}

func (r *MessageRepository) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if r.hub != nil {
		r.hub.Publish(ev, attrs)
	}
}

// Create вставляет сообщение и одной транзакцией обновляет диалог:
// last_message_at и счётчик непрочитанного в слоте получателя.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("msgRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, is_read, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create insert: %w", err)
	}

	conv := &model.Conversation{}
	err = tx.QueryRow(ctx,
		`UPDATE conversations SET
		   last_message_at = $1,
		   unread_count_user1 = unread_count_user1 + CASE WHEN user1_id <> $2 THEN 1 ELSE 0 END,
		   unread_count_user2 = unread_count_user2 + CASE WHEN user2_id <> $2 THEN 1 ELSE 0 END
		 WHERE id = $3
		 RETURNING `+conversationColumns,
		m.CreatedAt, m.SenderID, m.ConversationID,
	).Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.LastMessageAt,
		&conv.UnreadCountUser1, &conv.UnreadCountUser2, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("msgRepo.Create bump conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("msgRepo.Create commit: %w", err)
	}

	r.publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionInsert, New: m},
		map[string]string{"conversation_id": m.ConversationID})
	r.publish(realtime.ChangeEvent{Table: realtime.TableConversations, Action: realtime.ActionUpdate, New: conv},
		map[string]string{"id": conv.ID, "user1_id": conv.User1ID, "user2_id": conv.User2ID})
	return nil
}

// GetPage возвращает страницу сообщений диалога от новых к старым.
// before задаёт якорь пагинации: строго created_at < before, поэтому
// страницы не перекрываются. Нулевой before — самая свежая страница.
func (r *MessageRepository) GetPage(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetPage", time.Now())()
	sql := `SELECT id, conversation_id, sender_id, content, is_read, read_at, created_at
	        FROM messages WHERE conversation_id = $1`
	args := []any{conversationID}
	if !before.IsZero() {
		args = append(args, before)
		sql += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetPage query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.GetPage scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.GetPage rows: %w", err)
	}
	return messages, nil
}

// GetLastContent возвращает текст последнего сообщения диалога ("" — сообщений нет).
func (r *MessageRepository) GetLastContent(ctx context.Context, conversationID string) (string, error) {
	defer logger.DeferLogDuration("msg.GetLastContent", time.Now())()
	var content string
	err := r.pool.QueryRow(ctx,
		`SELECT content FROM messages WHERE conversation_id = $1
		 ORDER BY created_at DESC LIMIT 1`, conversationID,
	).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("msgRepo.GetLastContent: %w", err)
	}
	return content, nil
}

// MarkAllRead — серверная "хранимая процедура" прочтения: одной транзакцией
// помечает прочитанными все чужие непрочитанные сообщения диалога и обнуляет
// счётчик вызывающего. Идемпотентна; флаг is_read не откатывается.
func (r *MessageRepository) MarkAllRead(ctx context.Context, conversationID, userID string) error {
	defer logger.DeferLogDuration("msg.MarkAllRead", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkAllRead begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`UPDATE messages SET is_read = true, read_at = now()
		 WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = false
		 RETURNING id, conversation_id, sender_id, content, is_read, read_at, created_at`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkAllRead update messages: %w", err)
	}
	read := make([]model.Message, 0, 8)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.ReadAt, &m.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("msgRepo.MarkAllRead scan: %w", err)
		}
		read = append(read, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("msgRepo.MarkAllRead rows: %w", err)
	}

	conv := &model.Conversation{}
	err = tx.QueryRow(ctx,
		`UPDATE conversations SET
		   unread_count_user1 = CASE WHEN user1_id = $1 THEN 0 ELSE unread_count_user1 END,
		   unread_count_user2 = CASE WHEN user2_id = $1 THEN 0 ELSE unread_count_user2 END
		 WHERE id = $2
		 RETURNING `+conversationColumns,
		userID, conversationID,
	).Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.LastMessageAt,
		&conv.UnreadCountUser1, &conv.UnreadCountUser2, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("msgRepo.MarkAllRead zero counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("msgRepo.MarkAllRead commit: %w", err)
	}

	// Update-события по каждому прочитанному сообщению — отправитель видит ✓✓.
	for i := range read {
		m := read[i]
		r.publish(realtime.ChangeEvent{Table: realtime.TableMessages, Action: realtime.ActionUpdate, New: &m},
			map[string]string{"conversation_id": conversationID})
	}
	if len(read) > 0 {
		r.publish(realtime.ChangeEvent{Table: realtime.TableConversations, Action: realtime.ActionUpdate, New: conv},
			map[string]string{"id": conv.ID, "user1_id": conv.User1ID, "user2_id": conv.User2ID})
	}
	return nil
}
