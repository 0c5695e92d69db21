package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/exstoreapp/exstore/internal/config"
	"github.com/exstoreapp/exstore/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Router exposes the configured route tree, for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	// Public tracking lookup. Registered before the owner routes so the
	// /orders/number prefix never hits the authenticated subtree.
	r.HandleFunc("/orders/number/{orderNumber}", h.TrackOrder).Methods("GET").Name("orders.track")

	// Status changes are an admin operation even though the route lives
	// under /orders; registered ahead of the owner subtree so it gets the
	// admin middleware.
	r.Handle("/orders/{id}/status", h.RequireAdmin(http.HandlerFunc(h.UpdateOrderStatus))).
		Methods("PUT").Name("orders.status")

	// Owner routes
	ordersRouter := r.PathPrefix("/orders").Subrouter()
	ordersRouter.Use(h.RequireUser)
	ordersRouter.HandleFunc("", h.CreateOrder).Methods("POST").Name("orders.create")
	ordersRouter.HandleFunc("", h.ListOrders).Methods("GET").Name("orders.list")
	ordersRouter.HandleFunc("/{id}", h.GetOrder).Methods("GET").Name("orders.get")
	ordersRouter.HandleFunc("/{id}/cancel", h.CancelOrder).Methods("PUT").Name("orders.cancel")
	ordersRouter.HandleFunc("/{id}/payment", h.PayOrder).Methods("POST").Name("orders.payment")

	// Admin routes
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireAdmin)
	adminRouter.HandleFunc("/orders", h.ListAllOrders).Methods("GET").Name("admin.orders.list")
	adminRouter.HandleFunc("/orders/{id}", h.GetOrderAdmin).Methods("GET").Name("admin.orders.get")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
	})

	return r
}
