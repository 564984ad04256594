package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"todoweb/internal/models"
	"todoweb/pkg/logger"
)

// ErrDuplicateUsername is returned by Insert when the username is taken.
var ErrDuplicateUsername = errors.New("username already exists")

// UserRepo provides user persistence.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	Insert(ctx context.Context, username, passwordHash string) (models.User, error)
}

// PGUserRepo implements UserRepo on postgres.
type PGUserRepo struct {
	db *sql.DB
}

func NewPGUserRepo(db *sql.DB) *PGUserRepo {
	return &PGUserRepo{db: db}
}

func (r *PGUserRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created FROM users WHERE username = $1`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Created)
	return u, err
}

func (r *PGUserRepo) GetByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Created)
	return u, err
}

func (r *PGUserRepo) Insert(ctx context.Context, username, passwordHash string) (models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, username, password_hash, created`,
		username, passwordHash).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrDuplicateUsername
		}
		logger.Error(ctx, "Repository user Insert failed", "error", err)
		return models.User{}, err
	}
	return u, nil
}
