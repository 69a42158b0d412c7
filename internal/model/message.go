package model

import "time"

// Message — сообщение в диалоге. После создания неизменяемо, кроме флага
// прочтения: is_read/read_at переходят false→true один раз и не откатываются.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TypingIndicator — эфемерная строка "пользователь печатает".
// Наличие строки и есть сигнал; это не журнал. Клиент дополнительно
// гасит сигнал локальным таймаутом в 3 секунды на случай потери delete-события.
type TypingIndicator struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UpdatedAt      time.Time `json:"updated_at"`
}
