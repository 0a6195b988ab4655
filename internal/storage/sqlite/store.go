// Package sqlite is a file or in-memory user store for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/crm-backend/internal/models"
	"github.com/hongminglow/crm-backend/internal/storage"
	"github.com/hongminglow/crm-backend/internal/storage/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ storage.UserStore = (*Store)(nil)

const userColumns = `id, name, email, password, created_at, updated_at`

// Store provides SQLite-backed persistence for users.
type Store struct {
	db *sqlx.DB
}

// NewUserStore opens the database at dsn (a file path or ":memory:") and runs migrations.
func NewUserStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer, and every in-memory connection is its own database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := migrations.Up(ctx, db.DB, goose.DialectSQLite3); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, now, now)
	if err != nil {
		return models.User{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("read inserted id: %w", err)
	}
	return s.FindByID(ctx, id)
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return user, translate(err)
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return user, translate(err)
}

// ListUsers returns one page of users and the number of users matching the search.
// LIKE is case-insensitive for ASCII in SQLite.
func (s *Store) ListUsers(ctx context.Context, params storage.ListParams) ([]models.User, int64, error) {
	const filter = `(:search = '' OR name LIKE :pattern ESCAPE '\' OR email LIKE :pattern ESCAPE '\')`
	args := map[string]any{
		"search":  params.Search,
		"pattern": storage.LikePattern(params.Search),
		"limit":   params.Limit,
		"offset":  params.Offset,
	}

	var total int64
	countQuery, countArgs, err := sqlx.Named(`SELECT COUNT(*) FROM users WHERE `+filter, args)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if err := s.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	listQuery, listArgs, err := sqlx.Named(
		`SELECT `+userColumns+` FROM users WHERE `+filter+` ORDER BY id LIMIT :limit OFFSET :offset`, args)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// UpdateUser overwrites name, email and password of an existing user.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Email, user.PasswordHash, time.Now().UTC(), user.ID)
	if err != nil {
		return models.User{}, translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.User{}, storage.ErrNotFound
	}
	return s.FindByID(ctx, user.ID)
}

// DeleteUser removes a user by primary key.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && isUniqueViolation(sqliteErr) {
		return storage.ErrAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}

// isUniqueViolation accepts both the extended and the primary result code.
func isUniqueViolation(err *sqlite.Error) bool {
	if err.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return err.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "UNIQUE")
}
