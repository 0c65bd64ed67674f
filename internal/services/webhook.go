package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/paycartapp/paycart/internal/checkout"
	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/logging"
	"github.com/paycartapp/paycart/internal/observability"
	"github.com/paycartapp/paycart/internal/payments"
)

type transitionStore interface {
	GetByProviderReference(ctx context.Context, provider db.PaymentProvider, reference string) (*db.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error
}

// WebhookProcessor applies idempotent state transitions to orders from
// signature-verified provider events. Idempotency comes from the store's
// conditional updates, not from event-ID deduplication: providers do not
// guarantee unique, non-repeating event IDs across all retry modes.
type WebhookProcessor struct {
	orders   transitionStore
	notifier Notifier
	logger   *slog.Logger
}

func NewWebhookProcessor(orders transitionStore, notifier Notifier, logger *slog.Logger) *WebhookProcessor {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &WebhookProcessor{
		orders:   orders,
		notifier: notifier,
		logger:   logger,
	}
}

func (p *WebhookProcessor) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, p.logger)
}

// Process applies one verified event. Returning checkout.ErrOrderNotFound
// signals the handler to respond non-2xx so the provider redelivers: the
// order may not have committed yet when the first delivery arrives.
func (p *WebhookProcessor) Process(ctx context.Context, event *payments.Event) error {
	span := sentry.StartSpan(
		ctx,
		"service.webhook.process",
		sentry.WithOpName("service.webhook"),
		sentry.WithDescription("Process"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := p.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(
		attribute.String("webhook.provider", string(event.Provider)),
		attribute.String("webhook.event_type", string(event.Type)),
	)
	meter.Count("webhook.received", 1)

	switch event.Type {
	case payments.EventPaymentSucceeded, payments.EventCaptureCompleted:
		return p.transition(ctx, event, func(order *db.Order) error {
			return p.orders.MarkPaid(ctx, order.ID)
		})
	case payments.EventPaymentFailed:
		return p.transition(ctx, event, func(order *db.Order) error {
			return p.orders.MarkFailed(ctx, order.ID, "payment failed")
		})
	case payments.EventPaymentCanceled:
		return p.transition(ctx, event, func(order *db.Order) error {
			return p.orders.MarkFailed(ctx, order.ID, "payment canceled")
		})
	case payments.EventDisputeCreated:
		return p.flagDispute(ctx, event)
	default:
		logger.Info("unhandled webhook event type", "provider", event.Provider, "type", event.Type, "event_id", event.ID)
		meter.Count("webhook.unhandled", 1)
		return nil
	}
}

func (p *WebhookProcessor) transition(ctx context.Context, event *payments.Event, apply func(*db.Order) error) error {
	logger := p.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := p.lookupOrder(ctx, event)
	if err != nil {
		return err
	}
	previous := order.Status

	if err := apply(order); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			// Redelivered event: the target state is already reached.
			logger.Info("webhook transition is a no-op", "order_id", order.ID, "event_id", event.ID, "type", event.Type)
			meter.Count("webhook.noop", 1)
			return nil
		}
		return fmt.Errorf("failed to apply webhook transition: %w", err)
	}
	meter.Count("webhook.processed", 1)

	updated, getErr := p.orders.GetByProviderReference(ctx, event.Provider, event.ProviderReference)
	if getErr != nil {
		logger.Warn("failed to reload order after transition", "error", getErr, "order_id", order.ID)
		return nil
	}
	if updated.Status != previous {
		p.notifier.OrderStatusChanged(ctx, updated, previous)
	}
	return nil
}

// flagDispute logs the dispute for manual review; no automatic transition.
func (p *WebhookProcessor) flagDispute(ctx context.Context, event *payments.Event) error {
	logger := p.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := p.lookupOrder(ctx, event)
	if err != nil {
		return err
	}

	logger.Warn("payment dispute created, flagged for manual review",
		"order_id", order.ID, "provider", event.Provider, "reference", event.ProviderReference, "event_id", event.ID)
	meter.Count("webhook.dispute_flagged", 1)
	return nil
}

func (p *WebhookProcessor) lookupOrder(ctx context.Context, event *payments.Event) (*db.Order, error) {
	logger := p.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	if event.ProviderReference == "" {
		logger.Error("webhook event has no provider reference", "event_id", event.ID, "type", event.Type)
		meter.Count("webhook.invalid", 1)
		return nil, &checkout.ValidationError{Field: "reference", Message: "event has no provider reference"}
	}

	order, err := p.orders.GetByProviderReference(ctx, event.Provider, event.ProviderReference)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			// Delivery can race the local order commit; the provider
			// will redeliver after we respond non-2xx.
			logger.Info("webhook references unknown order, awaiting redelivery",
				"provider", event.Provider, "reference", event.ProviderReference, "event_id", event.ID)
			meter.Count("webhook.order_not_found", 1)
			return nil, checkout.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to look up order by provider reference: %w", err)
	}
	return order, nil
}
