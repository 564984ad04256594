package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"todoweb/internal/models"
	"todoweb/internal/repository"
	"todoweb/pkg/logger"
)

var (
	// ErrNotFound: no todo row with the requested id.
	ErrNotFound = errors.New("todo not found")
	// ErrForbidden: the row exists but belongs to another user.
	ErrForbidden = errors.New("todo belongs to another user")
	// ErrTitleRequired: title was empty after trimming.
	ErrTitleRequired = errors.New("title is required")
	// ErrInvalidDueDate: due date was not a YYYY-MM-DD date.
	ErrInvalidDueDate = errors.New("invalid due date format")
)

// DueDateLayout is the only accepted due date format.
const DueDateLayout = "2006-01-02"

// EventPublisher emits activity events after committed mutations.
type EventPublisher interface {
	Publish(ctx context.Context, ev *models.TodoEvent) error
}

// Cache holds per-owner list and search results between reads. Get misses
// return false; Invalidate drops everything cached for one owner.
type Cache interface {
	GetList(ctx context.Context, ownerID int64) ([]models.Todo, bool)
	SetList(ctx context.Context, ownerID int64, todos []models.Todo)
	GetSearch(ctx context.Context, ownerID int64, query string) ([]models.Todo, bool)
	SetSearch(ctx context.Context, ownerID int64, query string, todos []models.Todo)
	Invalidate(ctx context.Context, ownerID int64)
}

// TodoService owns the todo feature's behavior: per-owner reads, validation
// policy, and the ownership gate in front of every mutation. The caller's
// identity is an explicit parameter on every method; nothing here reads
// ambient request state.
type TodoService struct {
	repo   repository.TodoRepo
	cache  Cache          // nil disables caching
	events EventPublisher // nil disables activity events
	sf     singleflight.Group
}

func NewTodoService(repo repository.TodoRepo, c Cache, events EventPublisher) *TodoService {
	return &TodoService{repo: repo, cache: c, events: events}
}

// List returns all of the owner's todos, newest first, each carrying the
// owner's username from the join.
func (s *TodoService) List(ctx context.Context, ownerID int64) ([]models.Todo, error) {
	if s.cache == nil {
		return s.repo.ListByOwner(ctx, ownerID)
	}
	key := "list:" + strconv.FormatInt(ownerID, 10)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if todos, ok := s.cache.GetList(ctx, ownerID); ok {
			return todos, nil
		}
		todos, err := s.repo.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		s.cache.SetList(ctx, ownerID, todos)
		return todos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Todo), nil
}

// Search returns the owner's todos whose title contains the query as a
// case-insensitive substring. A blank query behaves exactly like List.
func (s *TodoService) Search(ctx context.Context, ownerID int64, query string) ([]models.Todo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, ownerID)
	}
	if s.cache == nil {
		return s.repo.SearchByOwner(ctx, ownerID, query)
	}
	key := "search:" + strconv.FormatInt(ownerID, 10) + ":" + strings.ToLower(query)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if todos, ok := s.cache.GetSearch(ctx, ownerID, query); ok {
			return todos, nil
		}
		todos, err := s.repo.SearchByOwner(ctx, ownerID, query)
		if err != nil {
			return nil, err
		}
		s.cache.SetSearch(ctx, ownerID, query, todos)
		return todos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Todo), nil
}

// Get fetches a todo by id alone. Absent rows yield ErrNotFound carrying the
// id. When enforceOwner is set and the row belongs to someone else, Get
// yields ErrForbidden. Update and Delete call this before touching anything.
func (s *TodoService) Get(ctx context.Context, ownerID, id int64, enforceOwner bool) (models.Todo, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Todo{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return models.Todo{}, err
	}
	if enforceOwner && t.AuthorID != ownerID {
		return models.Todo{}, ErrForbidden
	}
	return t, nil
}

// Create validates and inserts a new todo owned by ownerID with status
// Pending. Validation failures leave the store untouched.
func (s *TodoService) Create(ctx context.Context, ownerID int64, title, detail, dueDate string) (models.Todo, error) {
	title = strings.TrimSpace(title)
	detail = strings.TrimSpace(detail)
	if title == "" {
		return models.Todo{}, ErrTitleRequired
	}
	if detail == "" {
		detail = title
	}
	due, err := time.Parse(DueDateLayout, dueDate)
	if err != nil {
		return models.Todo{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, dueDate)
	}

	t := models.Todo{
		Title:    title,
		Detail:   detail,
		AuthorID: ownerID,
		Sts:      models.StatusPending,
		DueDate:  due,
	}
	if err := s.repo.Insert(ctx, &t); err != nil {
		return models.Todo{}, err
	}
	s.afterMutation(ctx, "create", t.ID, ownerID, t.Title)
	return t, nil
}

// Update replaces title, detail, status and due date on an owned todo. The
// ownership gate runs before any validation or write; owner and id never
// change.
func (s *TodoService) Update(ctx context.Context, ownerID, id int64, title, detail, status, dueDate string) (models.Todo, error) {
	existing, err := s.Get(ctx, ownerID, id, true)
	if err != nil {
		return models.Todo{}, err
	}

	title = strings.TrimSpace(title)
	detail = strings.TrimSpace(detail)
	status = strings.TrimSpace(status)
	if title == "" {
		return models.Todo{}, ErrTitleRequired
	}
	if detail == "" {
		detail = title
	}
	due, err := time.Parse(DueDateLayout, dueDate)
	if err != nil {
		return models.Todo{}, fmt.Errorf("%w: %q", ErrInvalidDueDate, dueDate)
	}

	existing.Title = title
	existing.Detail = detail
	existing.Sts = status
	existing.DueDate = due
	if err := s.repo.Update(ctx, existing); err != nil {
		return models.Todo{}, err
	}
	s.afterMutation(ctx, "update", id, ownerID, title)
	return existing, nil
}

// Delete permanently removes an owned todo. The ownership gate runs first;
// the DELETE statement is additionally scoped by owner.
func (s *TodoService) Delete(ctx context.Context, ownerID, id int64) error {
	t, err := s.Get(ctx, ownerID, id, true)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.afterMutation(ctx, "delete", id, ownerID, t.Title)
	return nil
}

// afterMutation runs the post-commit side effects: cache invalidation and a
// best-effort activity event. Neither can fail the request.
func (s *TodoService) afterMutation(ctx context.Context, action string, todoID, ownerID int64, title string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, ownerID)
	}
	if s.events == nil {
		return
	}
	ev := &models.TodoEvent{
		ID:          uuid.New().String(),
		Action:      action,
		TodoID:      todoID,
		AuthorID:    ownerID,
		Title:       title,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logger.Warn(ctx, "Activity event publish failed", "error", err, "action", action, "todo_id", todoID)
	}
}
