package model

import "time"

// Event — событие на доске объявлений общежития.
type Event struct {
	ID              string           `json:"id"`
	CreatorID       string           `json:"creator_id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Category        InterestCategory `json:"category"`
	Location        string           `json:"location"`
	EventDate       time.Time        `json:"event_date"`
	MaxParticipants *int             `json:"max_participants,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`

	// Производные поля (подсчитываются при выборке).
	CreatorName      string `json:"creator_name,omitempty"`
	ParticipantCount int    `json:"participant_count"`
	Joined           bool   `json:"joined"`
}

// Full сообщает, достигнут ли лимит участников.
func (e *Event) Full() bool {
	return e.MaxParticipants != nil && e.ParticipantCount >= *e.MaxParticipants
}

// EventParticipant — участие пользователя в событии.
type EventParticipant struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
