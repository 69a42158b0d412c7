package model

import "time"

type InterestCategory string

const (
	InterestCategorySport InterestCategory = "sport"
	InterestCategoryGames InterestCategory = "games"
	InterestCategoryStudy InterestCategory = "study"
	InterestCategoryHobby InterestCategory = "hobby"
	InterestCategoryOther InterestCategory = "other"
)

// Interest — справочник интересов (статичные данные).
type Interest struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Category  InterestCategory `json:"category"`
	Icon      string           `json:"icon,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// UserInterest — связь пользователь–интерес. Семантика множества:
// интерес либо есть, либо нет, дубликаты не допускаются.
type UserInterest struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	InterestID string    `json:"interest_id"`
	CreatedAt  time.Time `json:"created_at"`
}
