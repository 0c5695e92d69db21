package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exstoreapp/exstore/internal/auth"
	"github.com/exstoreapp/exstore/internal/config"
	"github.com/exstoreapp/exstore/internal/logging"
	"github.com/exstoreapp/exstore/internal/models"
	"github.com/exstoreapp/exstore/internal/services"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP surface of the order service.
type Handlers struct {
	config   *config.Config
	db       *pgxpool.Pool
	orders   *services.OrderService
	verifier *auth.Verifier
	logger   *slog.Logger
}

type Dependencies struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Orders   *services.OrderService
	Verifier *auth.Verifier
	Logger   *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("handlers dependencies: order service is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("handlers dependencies: verifier is required")
	}

	return &Handlers{
		config:   deps.Config,
		db:       deps.DB,
		orders:   deps.Orders,
		verifier: deps.Verifier,
		logger:   logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

// RequireUser wraps a route with bearer-token authentication.
func (h *Handlers) RequireUser(next http.Handler) http.Handler {
	return h.verifier.RequireUser(next)
}

// RequireAdmin wraps a route with admin-role authentication.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return h.verifier.RequireAdmin(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

// response is the envelope every order endpoint answers with.
type response struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Order      *models.Order        `json:"order,omitempty"`
	Orders     []*models.Order      `json:"orders,omitempty"`
	Tracking   *models.TrackedOrder `json:"tracking,omitempty"`
	Pagination *services.Pagination `json:"pagination,omitempty"`
}

func (h *Handlers) respond(ctx context.Context, w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(ctx).Error("failed to encode response", "error", err)
	}
}

// writeServiceError maps the service error taxonomy to HTTP statuses.
// Anything unrecognized is an internal error: logged in full, returned as a
// generic message.
func (h *Handlers) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case services.IsValidationError(err):
		h.respond(ctx, w, http.StatusBadRequest, response{Success: false, Message: err.Error()})
	case errors.Is(err, services.ErrOrderNotFound):
		h.respond(ctx, w, http.StatusNotFound, response{Success: false, Message: "order not found"})
	case services.IsConflictError(err):
		h.respond(ctx, w, http.StatusConflict, response{Success: false, Message: err.Error()})
	case errors.Is(err, services.ErrPaymentDeclined):
		h.respond(ctx, w, http.StatusPaymentRequired, response{Success: false, Message: err.Error()})
	default:
		h.loggerFromContext(ctx).Error("request failed", "error", err)
		h.respond(ctx, w, http.StatusInternalServerError, response{Success: false, Message: "internal server error"})
	}
}

// decodeJSON reads a bounded JSON body into dst.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
