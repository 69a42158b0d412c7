package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Create(ctx context.Context, a *model.Account) error {
	defer logger.DeferLogDuration("account.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("accountRepo.Create: %w", err)
	}
	return nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	defer logger.DeferLogDuration("account.GetByEmail", time.Now())()
	a := &model.Account{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`, email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accountRepo.GetByEmail: %w", err)
	}
	return a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	defer logger.DeferLogDuration("account.GetByID", time.Now())()
	a := &model.Account{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accountRepo.GetByID: %w", err)
	}
	return a, nil
}
