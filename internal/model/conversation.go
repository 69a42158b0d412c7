package model

import "time"

// Conversation — диалог двух пользователей. Пара неупорядоченная:
// перед поиском и созданием id сортируются (CanonicalPair), поэтому на пару
// существует не более одного диалога. Диалог создаётся лениво при первом
// контакте и никогда не удаляется.
type Conversation struct {
	ID            string    `json:"id"`
	User1ID       string    `json:"user1_id"`
	User2ID       string    `json:"user2_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`

	// Счётчики непрочитанного по слотам пары.
	UnreadCountUser1 int `json:"unread_count_user1"`
	UnreadCountUser2 int `json:"unread_count_user2"`
}

// CanonicalPair возвращает пару id в каноническом порядке (лексикографически).
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Counterpart возвращает id собеседника относительно self.
func (c *Conversation) Counterpart(self string) string {
	if c.User1ID == self {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor возвращает счётчик непрочитанного для слота, занятого self.
func (c *Conversation) UnreadFor(self string) int {
	if c.User1ID == self {
		return c.UnreadCountUser1
	}
	return c.UnreadCountUser2
}

// ConversationPreview — элемент списка диалогов: собеседник, последнее
// сообщение и непрочитанное текущего пользователя.
type ConversationPreview struct {
	ID            string         `json:"id"`
	User          ProfilePreview `json:"user"`
	LastMessageAt time.Time      `json:"last_message_at"`
	LastMessage   string         `json:"last_message,omitempty"`
	UnreadCount   int            `json:"unread_count"`
}
