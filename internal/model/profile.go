package model

import "time"

// Profile — анкета студента. Ровно одна на аккаунт; без анкеты доступ
// к остальным разделам закрыт.
type Profile struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Age        *int      `json:"age,omitempty"`
	University string    `json:"university"`
	Dormitory  string    `json:"dormitory"`
	RoomNumber string    `json:"room_number"`
	Bio        string    `json:"bio"`
	AvatarURL  string    `json:"avatar_url"`
	Gender     string    `json:"gender"`
	IsOnline   bool      `json:"is_online"`
	LastSeen   time.Time `json:"last_seen"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Interests — производный список названий интересов (user_interests → interests).
	Interests []string `json:"interests,omitempty"`
}

// ProfilePreview — срез анкеты для списка диалогов и карточек.
type ProfilePreview struct {
	ID       string    `json:"id"`
	FullName string    `json:"full_name"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

// Preview возвращает срез анкеты для списков.
func (p *Profile) Preview() ProfilePreview {
	return ProfilePreview{
		ID:       p.ID,
		FullName: p.FullName,
		IsOnline: p.IsOnline,
		LastSeen: p.LastSeen,
	}
}

// ProfileFilter — фильтры поиска соседей (равенство; пустое поле — без фильтра).
type ProfileFilter struct {
	University string
	Dormitory  string
	Gender     string
}
