package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/paycartapp/paycart/internal/config"
	"github.com/paycartapp/paycart/internal/handlers"
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

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.MetricsContext)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	// Webhook endpoints take the raw body; no auth middleware, the
	// signature check is the authentication.
	r.HandleFunc("/payments/webhook/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")
	r.HandleFunc("/payments/webhook/paypal", h.PayPalWebhook).Methods("POST").Name("webhooks.paypal")

	// Checkout routes; identity is optional for guest purchases.
	ordersRouter := r.PathPrefix("/orders").Subrouter()
	ordersRouter.Use(h.WithOptionalAuth)
	ordersRouter.HandleFunc("", h.CreateOrder).Methods("POST").Name("orders.create")
	ordersRouter.HandleFunc("/{id}", h.GetOrder).Methods("GET").Name("orders.get")

	paymentsRouter := r.PathPrefix("/payments").Subrouter()
	paymentsRouter.Handle("/capture/{orderId}", h.RequireAuth(http.HandlerFunc(h.CapturePayment))).Methods("POST").Name("payments.capture")
	paymentsRouter.Handle("/refund/{orderId}", h.RequireAdmin(http.HandlerFunc(h.RefundPayment))).Methods("POST").Name("payments.refund")
	paymentsRouter.Handle("/status/{orderId}", h.RequireAuth(http.HandlerFunc(h.PaymentStatus))).Methods("GET").Name("payments.status")

	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireAdmin)
	adminRouter.HandleFunc("/orders", h.AdminListOrders).Methods("GET").Name("admin.orders.list")
	adminRouter.HandleFunc("/orders/{id}/status", h.AdminOverrideOrderStatus).Methods("PUT").Name("admin.orders.status")
	adminRouter.HandleFunc("/orphans", h.AdminListOrphans).Methods("GET").Name("admin.orphans.list")
	adminRouter.HandleFunc("/orphans/{id}/resolve", h.AdminResolveOrphan).Methods("POST").Name("admin.orphans.resolve")
	adminRouter.HandleFunc("/currency/cache", h.AdminCurrencyCacheStats).Methods("GET").Name("admin.currency.cache.stats")
	adminRouter.HandleFunc("/currency/cache", h.AdminCurrencyCacheClear).Methods("DELETE").Name("admin.currency.cache.clear")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	})

	return r
}
