package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/hongminglow/crm-backend/internal/http/respond"
)

const pingTimeout = 2 * time.Second

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the welcome banner and a readiness probe.
type HealthHandler struct {
	startedAt time.Time
	db        Pinger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, db Pinger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, db: db}
}

// Register wires the handler into r.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/", h.handleWelcome)
	r.Get("/health", h.handleHealth)
}

func (h *HealthHandler) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	respond.Text(w, http.StatusOK, "Welcome to the CRM Backend!")
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	uptime := time.Since(h.startedAt).Truncate(time.Second).String()
	if err := h.db.Ping(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("health check: database unreachable")
		respond.JSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "uptime": uptime})
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok", "uptime": uptime})
}
