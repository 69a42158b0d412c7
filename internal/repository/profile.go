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

type ProfileRepository struct {
	pool *pgxpool.Pool
	hub  *realtime.Hub
}

func NewProfileRepository(pool *pgxpool.Pool, hub *realtime.Hub) *ProfileRepository {
	return &ProfileRepository{pool: pool, hub: hub}
}

func (r *ProfileRepository) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if r.hub != nil {
		r.hub.Publish(ev, attrs)
	}
}

const profileColumns = `id, full_name, age, university, dormitory, room_number, bio,
	avatar_url, gender, is_online, last_seen, created_at, updated_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(&p.ID, &p.FullName, &p.Age, &p.University, &p.Dormitory, &p.RoomNumber,
		&p.Bio, &p.AvatarURL, &p.Gender, &p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Upsert создаёт или обновляет анкету (страница настройки профиля).
func (r *ProfileRepository) Upsert(ctx context.Context, p *model.Profile) error {
	defer logger.DeferLogDuration("profile.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (id, full_name, age, university, dormitory, room_number, bio, avatar_url, gender, last_seen, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now(), $10)
		 ON CONFLICT (id) DO UPDATE SET
		   full_name = EXCLUDED.full_name, age = EXCLUDED.age, university = EXCLUDED.university,
		   dormitory = EXCLUDED.dormitory, room_number = EXCLUDED.room_number, bio = EXCLUDED.bio,
		   avatar_url = EXCLUDED.avatar_url, gender = EXCLUDED.gender, updated_at = EXCLUDED.updated_at`,
		p.ID, p.FullName, p.Age, p.University, p.Dormitory, p.RoomNumber, p.Bio, p.AvatarURL, p.Gender, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("profileRepo.Upsert: %w", err)
	}
	// INSERT и UPDATE при upsert неразличимы; подписчикам списка достаточно update.
	r.publish(realtime.ChangeEvent{Table: realtime.TableProfiles, Action: realtime.ActionUpdate, New: p},
		map[string]string{"id": p.ID})
	return nil
}

// GetByID возвращает анкету с производным списком названий интересов.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	defer logger.DeferLogDuration("profile.GetByID", time.Now())()
	p, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.GetByID: %w", err)
	}
	p.Interests, err = r.interestNames(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPreview возвращает срез анкеты для списков (id, имя, онлайн, last_seen).
func (r *ProfileRepository) GetPreview(ctx context.Context, id string) (*model.ProfilePreview, error) {
	defer logger.DeferLogDuration("profile.GetPreview", time.Now())()
	p := &model.ProfilePreview{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, full_name, is_online, last_seen FROM profiles WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &p.IsOnline, &p.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profileRepo.GetPreview: %w", err)
	}
	return p, nil
}

// List возвращает анкеты для страницы поиска: все кроме excludeID, с фильтрами
// равенства по вузу/общежитию/полу и списком интересов.
func (r *ProfileRepository) List(ctx context.Context, excludeID string, f model.ProfileFilter) ([]model.Profile, error) {
	defer logger.DeferLogDuration("profile.List", time.Now())()
	sql := `SELECT ` + profileColumns + ` FROM profiles WHERE id <> $1`
	args := []any{excludeID}
	if f.University != "" {
		args = append(args, f.University)
		sql += fmt.Sprintf(" AND university = $%d", len(args))
	}
	if f.Dormitory != "" {
		args = append(args, f.Dormitory)
		sql += fmt.Sprintf(" AND dormitory = $%d", len(args))
	}
	if f.Gender != "" {
		args = append(args, f.Gender)
		sql += fmt.Sprintf(" AND gender = $%d", len(args))
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("profileRepo.List query: %w", err)
	}
	defer rows.Close()

	profiles := make([]model.Profile, 0, 32)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("profileRepo.List scan: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profileRepo.List rows: %w", err)
	}
	for i := range profiles {
		names, err := r.interestNames(ctx, profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].Interests = names
	}
	return profiles, nil
}

// SetOnline отмечает пользователя онлайн/офлайн и обновляет last_seen.
// Присутствие best-effort: вызывающий не повторяет неудавшуюся запись.
func (r *ProfileRepository) SetOnline(ctx context.Context, id string, online bool) error {
	defer logger.DeferLogDuration("profile.SetOnline", time.Now())()
	p := &model.Profile{}
	err := r.pool.QueryRow(ctx,
		`UPDATE profiles SET is_online = $1, last_seen = now() WHERE id = $2
		 RETURNING `+profileColumns, online, id,
	).Scan(&p.ID, &p.FullName, &p.Age, &p.University, &p.Dormitory, &p.RoomNumber,
		&p.Bio, &p.AvatarURL, &p.Gender, &p.IsOnline, &p.LastSeen, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("profileRepo.SetOnline: %w", err)
	}
	r.publish(realtime.ChangeEvent{Table: realtime.TableProfiles, Action: realtime.ActionUpdate, New: p},
		map[string]string{"id": id})
	return nil
}

func (r *ProfileRepository) interestNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.name FROM interests i
		 JOIN user_interests ui ON ui.interest_id = i.id
		 WHERE ui.user_id = $1
		 ORDER BY i.name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("profileRepo.interestNames query: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("profileRepo.interestNames scan: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profileRepo.interestNames rows: %w", err)
	}
	return names, nil
}
