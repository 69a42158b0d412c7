package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InterestRepository struct {
	pool *pgxpool.Pool
}

func NewInterestRepository(pool *pgxpool.Pool) *InterestRepository {
	return &InterestRepository{pool: pool}
}

// ListAll возвращает справочник интересов, упорядоченный по категории.
func (r *InterestRepository) ListAll(ctx context.Context) ([]model.Interest, error) {
	defer logger.DeferLogDuration("interest.ListAll", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, icon, created_at FROM interests ORDER BY category, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("interestRepo.ListAll query: %w", err)
	}
	defer rows.Close()

	interests := make([]model.Interest, 0, 32)
	for rows.Next() {
		var i model.Interest
		if err := rows.Scan(&i.ID, &i.Name, &i.Category, &i.Icon, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("interestRepo.ListAll scan: %w", err)
		}
		interests = append(interests, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interestRepo.ListAll rows: %w", err)
	}
	return interests, nil
}

// ReplaceUserInterests заменяет набор интересов пользователя выбранным
// (семантика множества: удалить всё, вставить выбранное, одной транзакцией).
func (r *InterestRepository) ReplaceUserInterests(ctx context.Context, userID string, interestIDs []string) error {
	defer logger.DeferLogDuration("interest.ReplaceUserInterests", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("interestRepo.ReplaceUserInterests begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_interests WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("interestRepo.ReplaceUserInterests delete: %w", err)
	}
	for _, interestID := range interestIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_interests (id, user_id, interest_id, created_at)
			 VALUES ($1, $2, $3, now()) ON CONFLICT DO NOTHING`,
			uuid.New().String(), userID, interestID,
		)
		if err != nil {
			return fmt.Errorf("interestRepo.ReplaceUserInterests insert: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("interestRepo.ReplaceUserInterests commit: %w", err)
	}
	return nil
}
