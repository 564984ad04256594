package repository

import (
	"context"
	"database/sql"
	"strings"

	"todoweb/internal/models"
	"todoweb/pkg/logger"
)

// TodoRepo provides todo persistence. Reads that return lists are always
// scoped to one owner; GetByID is deliberately unscoped so the service layer
// can tell "not found" apart from "not yours".
type TodoRepo interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Todo, error)
	SearchByOwner(ctx context.Context, ownerID int64, query string) ([]models.Todo, error)
	GetByID(ctx context.Context, id int64) (models.Todo, error)
	Insert(ctx context.Context, t *models.Todo) error
	Update(ctx context.Context, t models.Todo) error
	Delete(ctx context.Context, id, ownerID int64) error
}

// PGTodoRepo implements TodoRepo on postgres.
type PGTodoRepo struct {
	db *sql.DB
}

func NewPGTodoRepo(db *sql.DB) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

const listColumns = `t.id, t.title, t.detail, t.author_id, u.username, t.sts, t.duedate, t.created`

func (r *PGTodoRepo) ListByOwner(ctx context.Context, ownerID int64) ([]models.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listColumns+`
		 FROM todo t JOIN users u ON t.author_id = u.id
		 WHERE t.author_id = $1
		 ORDER BY t.created DESC`, ownerID)
	if err != nil {
		logger.Error(ctx, "Repository ListByOwner failed", "error", err)
		return nil, err
	}
	return scanTodos(ctx, rows)
}

func (r *PGTodoRepo) SearchByOwner(ctx context.Context, ownerID int64, query string) ([]models.Todo, error) {
	pattern := "%" + EscapeLike(query) + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listColumns+`
		 FROM todo t JOIN users u ON t.author_id = u.id
		 WHERE t.author_id = $1 AND t.title ILIKE $2 ESCAPE '\'
		 ORDER BY t.created DESC`, ownerID, pattern)
	if err != nil {
		logger.Error(ctx, "Repository SearchByOwner failed", "error", err)
		return nil, err
	}
	return scanTodos(ctx, rows)
}

func scanTodos(ctx context.Context, rows *sql.Rows) ([]models.Todo, error) {
	defer rows.Close()
	var todos []models.Todo
	for rows.Next() {
		var t models.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Detail, &t.AuthorID, &t.Username, &t.Sts, &t.DueDate, &t.Created); err != nil {
			logger.Error(ctx, "Repository scan todo failed", "error", err)
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// GetByID fetches one todo by id alone. Returns sql.ErrNoRows when absent.
func (r *PGTodoRepo) GetByID(ctx context.Context, id int64) (models.Todo, error) {
	var t models.Todo
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, detail, author_id, sts, duedate, created
		 FROM todo WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &t.Detail, &t.AuthorID, &t.Sts, &t.DueDate, &t.Created)
	return t, err
}

// Insert stores a new todo and fills in the generated id and created timestamp.
func (r *PGTodoRepo) Insert(ctx context.Context, t *models.Todo) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO todo (title, detail, author_id, sts, duedate)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created`,
		t.Title, t.Detail, t.AuthorID, t.Sts, t.DueDate).
		Scan(&t.ID, &t.Created)
	if err != nil {
		logger.Error(ctx, "Repository Insert failed", "error", err)
	}
	return err
}

// Update replaces title, detail, sts and duedate. The statement is scoped by
// id and owner even though the service checks ownership first.
func (r *PGTodoRepo) Update(ctx context.Context, t models.Todo) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE todo SET title = $1, detail = $2, sts = $3, duedate = $4
		 WHERE id = $5 AND author_id = $6`,
		t.Title, t.Detail, t.Sts, t.DueDate, t.ID, t.AuthorID)
	if err != nil {
		logger.Error(ctx, "Repository Update failed", "error", err, "id", t.ID)
	}
	return err
}

// Delete removes a todo, scoped by id and owner.
func (r *PGTodoRepo) Delete(ctx context.Context, id, ownerID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM todo WHERE id = $1 AND author_id = $2`, id, ownerID)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
	}
	return err
}

// EscapeLike escapes LIKE/ILIKE wildcard characters so a user query matches
// them literally. Pair with an ESCAPE '\' clause.
func EscapeLike(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
