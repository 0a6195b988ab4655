package handlers

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/hongminglow/crm-backend/internal/auth"
	"github.com/hongminglow/crm-backend/internal/http/respond"
	"github.com/hongminglow/crm-backend/internal/models/dto"
	"github.com/hongminglow/crm-backend/internal/storage"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	// Keeps (page-1)*limit within int.
	maxPage = math.MaxInt / maxLimit
)

// UserHandler owns the protected list/update/delete endpoints.
type UserHandler struct {
	store  storage.UserStore
	hasher PasswordHasher
}

// NewUserHandler constructs the handler.
func NewUserHandler(store storage.UserStore, hasher PasswordHasher) *UserHandler {
	return &UserHandler{store: store, hasher: hasher}
}

// Register attaches user management routes to r. Callers are responsible for
// putting authentication in front of them.
func (h *UserHandler) Register(r chi.Router) {
	r.Get("/", h.handleList)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

func (h *UserHandler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := min(queryInt(query.Get("page"), defaultPage), maxPage)
	limit := min(queryInt(query.Get("limit"), defaultLimit), maxLimit)
	search := query.Get("search")

	users, total, err := h.store.ListUsers(r.Context(), storage.ListParams{
		Offset: (page - 1) * limit,
		Limit:  limit,
		Search: search,
	})
	if err != nil {
		internalError(w, r, err, "list users")
		return
	}

	respond.JSON(w, r, http.StatusOK, dto.ListUsersResponse{
		Total:      total,
		Page:       page,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
		Users:      users,
	})
}

func (h *UserHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
		return
	}

	// Every field is optional, so an empty body is an empty update.
	var req dto.UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	user, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
			return
		}
		internalError(w, r, err, "update user: lookup")
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Password != "" {
		hash, err := h.hasher.Hash(req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrPasswordTooLong) {
				respond.Error(w, r, http.StatusBadRequest, msgPasswordLong)
				return
			}
			internalError(w, r, err, "update user: hash password")
			return
		}
		user.PasswordHash = hash
	}

	updated, err := h.store.UpdateUser(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, r, http.StatusBadRequest, msgEmailInUse)
		case errors.Is(err, storage.ErrNotFound):
			respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
		default:
			internalError(w, r, err, "update user: save")
		}
		return
	}

	hlog.FromRequest(r).Info().Int64("target_id", id).Msg("user updated")
	respond.JSON(w, r, http.StatusOK, dto.UserResponse{Message: "User updated successfully.", User: updated})
}

func (h *UserHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
		return
	}

	if _, err := h.store.FindByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
			return
		}
		internalError(w, r, err, "delete user: lookup")
		return
	}

	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
			return
		}
		internalError(w, r, err, "delete user")
		return
	}

	hlog.FromRequest(r).Info().Int64("target_id", id).Msg("user deleted")
	respond.JSON(w, r, http.StatusOK, dto.MessageResponse{Message: "User deleted successfully."})
}

// queryInt parses a positive integer, falling back to def for anything else.
func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
