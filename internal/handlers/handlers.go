package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paycartapp/paycart/internal/cache"
	"github.com/paycartapp/paycart/internal/config"
	"github.com/paycartapp/paycart/internal/currency"
	"github.com/paycartapp/paycart/internal/logging"
	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/payments"
	"github.com/paycartapp/paycart/internal/services"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

// Handlers provides the HTTP request handlers for the checkout API.
type Handlers struct {
	config           *config.Config
	db               *pgxpool.Pool
	cacheProvider    cache.Provider
	orderService     *services.OrderService
	paymentService   *services.PaymentService
	webhookProcessor *services.WebhookProcessor
	orphans          orphanLister
	converter        *currency.Converter
	gateways         map[models.PaymentProvider]payments.Gateway
	logger           *slog.Logger
}

type Dependencies struct {
	Config           *config.Config
	DB               *pgxpool.Pool
	CacheProvider    cache.Provider
	OrderService     *services.OrderService
	PaymentService   *services.PaymentService
	WebhookProcessor *services.WebhookProcessor
	OrphanStore      orphanLister
	Converter        *currency.Converter
	Gateways         map[models.PaymentProvider]payments.Gateway
	Logger           *slog.Logger
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
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("handlers dependencies: cacheProvider is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.PaymentService == nil {
		return nil, fmt.Errorf("handlers dependencies: paymentService is required")
	}
	if deps.WebhookProcessor == nil {
		return nil, fmt.Errorf("handlers dependencies: webhookProcessor is required")
	}
	if deps.OrphanStore == nil {
		return nil, fmt.Errorf("handlers dependencies: orphanStore is required")
	}
	if deps.Converter == nil {
		return nil, fmt.Errorf("handlers dependencies: converter is required")
	}
	if len(deps.Gateways) == 0 {
		return nil, fmt.Errorf("handlers dependencies: at least one gateway is required")
	}

	return &Handlers{
		config:           deps.Config,
		db:               deps.DB,
		cacheProvider:    deps.CacheProvider,
		orderService:     deps.OrderService,
		paymentService:   deps.PaymentService,
		webhookProcessor: deps.WebhookProcessor,
		orphans:          deps.OrphanStore,
		converter:        deps.Converter,
		gateways:         deps.Gateways,
		logger:           logger.With("component", "handlers"),
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

	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err, "path", r.URL.Path)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
