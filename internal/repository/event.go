package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dormlink/internal/logger"
	"github.com/dormlink/internal/model"
	"github.com/dormlink/internal/realtime"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool *pgxpool.Pool
	hub  *realtime.Hub
}

func NewEventRepository(pool *pgxpool.Pool, hub *realtime.Hub) *EventRepository {
	return &EventRepository{pool: pool, hub: hub}
}

func (r *EventRepository) publish(ev realtime.ChangeEvent, attrs map[string]string) {
	if r.hub != nil {
		r.hub.Publish(ev, attrs)
	}
}

func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	defer logger.DeferLogDuration("event.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO events (id, creator_id, title, description, category, location, event_date, max_participants, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.CreatorID, e.Title, e.Description, e.Category, e.Location, e.EventDate, e.MaxParticipants, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("eventRepo.Create: %w", err)
	}
	r.publish(realtime.ChangeEvent{Table: realtime.TableEvents, Action: realtime.ActionInsert, New: e},
		map[string]string{"id": e.ID})
	return nil
}

// ListUpcoming возвращает предстоящие события (event_date >= now) по дате
// по возрастанию, с именем создателя, числом участников и флагом участия viewerID.
func (r *EventRepository) ListUpcoming(ctx context.Context, viewerID string) ([]model.Event, error) {
	defer logger.DeferLogDuration("event.ListUpcoming", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.creator_id, e.title, e.description, e.category, e.location, e.event_date,
		        e.max_participants, e.created_at, p.full_name,
		        (SELECT COUNT(*) FROM event_participants ep WHERE ep.event_id = e.id),
		        EXISTS(SELECT 1 FROM event_participants ep WHERE ep.event_id = e.id AND ep.user_id = $1)
		 FROM events e
		 JOIN profiles p ON p.id = e.creator_id
		 WHERE e.event_date >= now()
		 ORDER BY e.event_date ASC`, viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("eventRepo.ListUpcoming query: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0, 16)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.CreatorID, &e.Title, &e.Description, &e.Category, &e.Location,
			&e.EventDate, &e.MaxParticipants, &e.CreatedAt, &e.CreatorName, &e.ParticipantCount, &e.Joined); err != nil {
			return nil, fmt.Errorf("eventRepo.ListUpcoming scan: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventRepo.ListUpcoming rows: %w", err)
	}
	return events, nil
}

// Join добавляет участника. Лимит участников проверяется в той же транзакции:
// при заполненном событии — ErrConflict (а не надежда на дисциплину клиента).
func (r *EventRepository) Join(ctx context.Context, eventID, userID string) error {
	defer logger.DeferLogDuration("event.Join", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("eventRepo.Join begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxParticipants *int
	var count int
	err = tx.QueryRow(ctx,
		`SELECT e.max_participants, (SELECT COUNT(*) FROM event_participants ep WHERE ep.event_id = e.id)
		 FROM events e WHERE e.id = $1 FOR UPDATE`, eventID,
	).Scan(&maxParticipants, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("eventRepo.Join check: %w", err)
	}
	if maxParticipants != nil && count >= *maxParticipants {
		return ErrConflict
	}

	participant := &model.EventParticipant{
		ID:       uuid.New().String(),
		EventID:  eventID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO event_participants (id, event_id, user_id, joined_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		participant.ID, participant.EventID, participant.UserID, participant.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("eventRepo.Join insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("eventRepo.Join commit: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.publish(realtime.ChangeEvent{Table: realtime.TableEvents, Action: realtime.ActionUpdate, New: participant},
			map[string]string{"id": eventID})
	}
	return nil
}

func (r *EventRepository) Leave(ctx context.Context, eventID, userID string) error {
	defer logger.DeferLogDuration("event.Leave", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM event_participants WHERE event_id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("eventRepo.Leave: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.publish(realtime.ChangeEvent{Table: realtime.TableEvents, Action: realtime.ActionUpdate,
			Old: &model.EventParticipant{EventID: eventID, UserID: userID}},
			map[string]string{"id": eventID})
	}
	return nil
}
