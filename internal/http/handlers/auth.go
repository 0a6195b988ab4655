package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/hongminglow/crm-backend/internal/auth"
	"github.com/hongminglow/crm-backend/internal/http/respond"
	"github.com/hongminglow/crm-backend/internal/models"
	"github.com/hongminglow/crm-backend/internal/models/dto"
	"github.com/hongminglow/crm-backend/internal/storage"
)

// PasswordHasher hashes new passwords and checks login attempts.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Generate(user models.User) (string, error)
}

// AuthHandler owns the public register/login endpoints.
type AuthHandler struct {
	store  storage.UserStore
	hasher PasswordHasher
	tokens TokenIssuer
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, hasher PasswordHasher, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{store: store, hasher: hasher, tokens: tokens}
}

// Register attaches auth routes to r, which is expected to be mounted at /api/users.
// Every route is wrapped with throttle.
func (h *AuthHandler) Register(r chi.Router, throttle func(http.Handler) http.Handler) {
	r.With(throttle).Post("/", h.handleRegister)
	r.With(throttle).Post("/login", h.handleLogin)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "All fields are required.")
		return
	}

	if taken, err := h.emailTaken(r.Context(), req.Email); err != nil {
		internalError(w, r, err, "register: lookup email")
		return
	} else if taken {
		respond.Error(w, r, http.StatusBadRequest, msgEmailInUse)
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			respond.Error(w, r, http.StatusBadRequest, msgPasswordLong)
			return
		}
		internalError(w, r, err, "register: hash password")
		return
	}

	created, err := h.store.CreateUser(r.Context(), models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, storage.ErrAlreadyExists) {
			respond.Error(w, r, http.StatusBadRequest, msgEmailInUse)
			return
		}
		internalError(w, r, err, "register: create user")
		return
	}

	hlog.FromRequest(r).Info().Int64("user_id", created.ID).Msg("user registered")
	respond.JSON(w, r, http.StatusCreated, dto.RegisterResponse{
		Message: "User registered successfully!",
		User:    dto.RegisteredUser{ID: created.ID, Name: created.Name, Email: created.Email},
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Error(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(w, r, http.StatusBadRequest, "Email and password are required.")
		return
	}

	user, err := h.store.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, r, http.StatusNotFound, msgUserNotFound)
			return
		}
		internalError(w, r, err, "login: lookup email")
		return
	}

	ok, err := h.hasher.Compare(user.PasswordHash, req.Password)
	if err != nil {
		internalError(w, r, err, "login: compare password")
		return
	}
	if !ok {
		hlog.FromRequest(r).Warn().Int64("user_id", user.ID).Msg("login failed: invalid credentials")
		respond.Error(w, r, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		internalError(w, r, err, "login: generate token")
		return
	}
	respond.JSON(w, r, http.StatusOK, dto.LoginResponse{Message: "Login successful!", Token: token})
}

func (h *AuthHandler) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := h.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
