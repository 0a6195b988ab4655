package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/hongminglow/crm-backend/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ListParams selects one page of users. An empty Search matches everyone.
type ListParams struct {
	Offset int
	Limit  int
	Search string
}

// UserStore captures persistence operations needed by handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context, params ListParams) ([]models.User, int64, error)
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns a search term into a substring LIKE pattern with
// wildcards in the term escaped by a backslash.
func LikePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}
