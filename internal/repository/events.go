package repository

import (
	"context"
	"database/sql"

	"todoweb/internal/models"
	"todoweb/pkg/logger"
)

// EventRepo persists the activity audit trail written by the worker.
type EventRepo interface {
	Insert(ctx context.Context, e models.TodoEvent) error
	ListByOwner(ctx context.Context, ownerID int64, limit int) ([]models.TodoEvent, error)
}

// PGEventRepo implements EventRepo on postgres.
type PGEventRepo struct {
	db *sql.DB
}

func NewPGEventRepo(db *sql.DB) *PGEventRepo {
	return &PGEventRepo{db: db}
}

func (r *PGEventRepo) Insert(ctx context.Context, e models.TodoEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todo_events (id, action, todo_id, author_id, title, requested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Action, e.TodoID, e.AuthorID, e.Title, e.RequestedAt)
	if err != nil {
		logger.Error(ctx, "Repository event Insert failed", "error", err, "event_id", e.ID)
	}
	return err
}

func (r *PGEventRepo) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]models.TodoEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, todo_id, author_id, title, requested_at
		 FROM todo_events WHERE author_id = $1
		 ORDER BY requested_at DESC LIMIT $2`, ownerID, limit)
	if err != nil {
		logger.Error(ctx, "Repository event ListByOwner failed", "error", err)
		return nil, err
	}
	defer rows.Close()
	var events []models.TodoEvent
	for rows.Next() {
		var e models.TodoEvent
		if err := rows.Scan(&e.ID, &e.Action, &e.TodoID, &e.AuthorID, &e.Title, &e.RequestedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
