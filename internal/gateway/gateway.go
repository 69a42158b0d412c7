// Package gateway — шлюз данных для клиентских компонентов (chatview,
// typing, presence). Прячет за одним интерфейсом хранилище и канал
// изменений: реализации — pg (Postgres + hub) и memory (для разработки
// и проверок без БД).
package gateway

import (
	"context"
	"time"

	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
)

type Gateway interface {
	// Диалоги.
	ListConversations(ctx context.Context, userID, query string) ([]model.ConversationPreview, error)
	OpenConversation(ctx context.Context, userID, otherID string) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)

	// Сообщения. GetMessages отдаёт страницу от новых к старым;
	// нулевой before — самая свежая страница.
	GetMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]model.Message, error)
	SendMessage(ctx context.Context, m *model.Message) error
	MarkRead(ctx context.Context, conversationID, userID string) error

	// Эфемерное состояние.
	SetTyping(ctx context.Context, conversationID, userID string, typing bool) error
	SetOnline(ctx context.Context, userID string, online bool) error

	// Профили.
	GetProfilePreview(ctx context.Context, id string) (*model.ProfilePreview, error)

	// Subscribe открывает поток изменений таблицы, отфильтрованный по
	// равенству колонки. Поток закрывается через Subscription.Unsubscribe.
	Subscribe(table string, f realtime.Filter) *realtime.Subscription
}
