package model

import "time"

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusAccepted MatchStatus = "accepted"
)

// Match — запрос на знакомство. Создаётся направленно (user → matched_user),
// читается симметрично: любой из двух id может стоять в любом слоте.
// Отклонение удаляет строку; терминальные состояния — accepted или отсутствие.
type Match struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	MatchedUserID string      `json:"matched_user_id"`
	Status        MatchStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Counterpart возвращает id второго участника относительно self.
func (m *Match) Counterpart(self string) string {
	if m.UserID == self {
		return m.MatchedUserID
	}
	return m.UserID
}

// MatchWithProfile — запрос плюс анкета второго участника (для страницы совпадений).
type MatchWithProfile struct {
	Match
	Profile ProfilePreview `json:"profile"`
	// Incoming — true, если запрос адресован текущему пользователю
	// (принять/отклонить может только адресат).
	Incoming bool `json:"incoming"`
}
