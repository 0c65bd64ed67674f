package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/checkout"
	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/logging"
	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/payments"
)

type paymentOrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	MarkRefunded(ctx context.Context, orderID uuid.UUID) error
}

// PaymentService drives explicit capture and refund actions against the
// order's owning gateway. Gateway failures leave order state unchanged;
// the caller may retry.
type PaymentService struct {
	orders   paymentOrderStore
	gateways map[models.PaymentProvider]payments.Gateway
	notifier Notifier
	logger   *slog.Logger
}

func NewPaymentService(orders paymentOrderStore, gateways map[models.PaymentProvider]payments.Gateway, notifier Notifier, logger *slog.Logger) *PaymentService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &PaymentService{
		orders:   orders,
		gateways: gateways,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *PaymentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Capture completes a two-phase capture for the order's provider and marks
// the order paid. A redundant capture (webhook already transitioned the
// order) is a no-op.
func (s *PaymentService) Capture(ctx context.Context, orderID uuid.UUID) (*payments.CaptureResult, error) {
	order, gateway, err := s.orderAndGateway(ctx, orderID)
	if err != nil {
		return nil, err
	}

	captureCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	result, err := gateway.Capture(captureCtx, order.ProviderReference())
	if err != nil {
		s.loggerFromContext(ctx).Error("capture failed", "error", err, "order_id", orderID, "provider", order.Provider)
		return nil, fmt.Errorf("%w: capture", checkout.ErrPaymentActionFailed)
	}

	previous := order.Status
	if err := s.orders.MarkPaid(ctx, orderID); err != nil {
		if !errors.Is(err, db.ErrInvalidStatusTransition) {
			return nil, fmt.Errorf("failed to mark order paid after capture: %w", err)
		}
	} else {
		order.Status = models.StatusPaid
		order.PaymentStatus = models.PaymentSucceeded
		s.notifier.OrderStatusChanged(ctx, order, previous)
	}
	return result, nil
}

// Refund refunds the order, fully when amount is zero, and transitions it
// to refunded.
func (s *PaymentService) Refund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, reason string) (*payments.RefundResult, error) {
	order, gateway, err := s.orderAndGateway(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus != models.PaymentSucceeded {
		return nil, fmt.Errorf("%w: order payment has not succeeded", checkout.ErrPaymentActionFailed)
	}
	if amount.IsNegative() || amount.GreaterThan(order.Total) {
		return nil, &checkout.ValidationError{Field: "amount", Message: "refund amount must be between 0 and the order total"}
	}

	refundCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	result, err := gateway.Refund(refundCtx, order.ProviderReference(), amount, order.Currency, reason)
	if err != nil {
		s.loggerFromContext(ctx).Error("refund failed", "error", err, "order_id", orderID, "provider", order.Provider)
		return nil, fmt.Errorf("%w: refund", checkout.ErrPaymentActionFailed)
	}

	// Partial refunds keep the order in its paid state.
	if amount.IsZero() || amount.Equal(order.Total) {
		previous := order.Status
		if err := s.orders.MarkRefunded(ctx, orderID); err != nil {
			s.loggerFromContext(ctx).Error("failed to mark order refunded", "error", err, "order_id", orderID)
		} else {
			order.Status = models.StatusRefunded
			order.PaymentStatus = models.PaymentRefunded
			s.notifier.OrderStatusChanged(ctx, order, previous)
		}
	}
	return result, nil
}

type PaymentStatusReport struct {
	OrderID        uuid.UUID            `json:"order_id"`
	Provider       db.PaymentProvider   `json:"payment_provider"`
	Reference      string               `json:"provider_reference"`
	LocalStatus    models.OrderStatus   `json:"local_status"`
	PaymentStatus  models.PaymentStatus `json:"local_payment_status"`
	ProviderStatus string               `json:"provider_status"`
	CheckedAt      time.Time            `json:"checked_at"`
}

// Status reports the local and live provider-side payment state side by
// side, for reconciliation and debugging.
func (s *PaymentService) Status(ctx context.Context, orderID uuid.UUID) (*PaymentStatusReport, error) {
	order, gateway, err := s.orderAndGateway(ctx, orderID)
	if err != nil {
		return nil, err
	}

	statusCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	defer cancel()

	providerStatus, err := gateway.Status(statusCtx, order.ProviderReference())
	if err != nil {
		s.loggerFromContext(ctx).Warn("failed to fetch provider status", "error", err, "order_id", orderID)
		providerStatus = "unavailable"
	}

	return &PaymentStatusReport{
		OrderID:        order.ID,
		Provider:       order.Provider,
		Reference:      order.ProviderReference(),
		LocalStatus:    order.Status,
		PaymentStatus:  order.PaymentStatus,
		ProviderStatus: providerStatus,
		CheckedAt:      time.Now(),
	}, nil
}

func (s *PaymentService) orderAndGateway(ctx context.Context, orderID uuid.UUID) (*db.Order, payments.Gateway, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, nil, checkout.ErrOrderNotFound
		}
		return nil, nil, err
	}

	gateway, ok := s.gateways[order.Provider]
	if !ok {
		return nil, nil, fmt.Errorf("no gateway configured for provider %q", order.Provider)
	}
	return order, gateway, nil
}
