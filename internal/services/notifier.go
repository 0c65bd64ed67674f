package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/paycartapp/paycart/internal/email"
	"github.com/paycartapp/paycart/internal/logging"
	"github.com/paycartapp/paycart/internal/models"
)

// Notifier dispatches customer notifications. Every call is fire-and-forget:
// delivery failures are logged and never fail the operation that triggered
// them, and dispatch never blocks the caller.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus)
}

const notifyTimeout = 30 * time.Second

type EmailNotifier struct {
	provider email.Provider
	logger   *slog.Logger
}

func NewEmailNotifier(provider email.Provider, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{provider: provider, logger: logger}
}

func (n *EmailNotifier) OrderCreated(ctx context.Context, order *models.Order) {
	logger := logging.FromContext(ctx, n.logger)
	info := orderInfo(order)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := email.SendOrderConfirmation(sendCtx, n.provider, info); err != nil {
			logger.Error("failed to send order confirmation email", "error", err, "order_id", order.ID)
		}
	}()
}

func (n *EmailNotifier) OrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	logger := logging.FromContext(ctx, n.logger)
	info := orderInfo(order)
	info.PreviousStatus = string(previous)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := email.SendOrderStatusChanged(sendCtx, n.provider, info); err != nil {
			logger.Error("failed to send status change email", "error", err, "order_id", order.ID)
		}
	}()
}

func orderInfo(order *models.Order) email.OrderInfo {
	items := make([]email.LineItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = email.LineItem{
			Name:      item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
	}
	return email.OrderInfo{
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Currency:      order.Currency,
		Total:         order.Total.StringFixed(2),
		Items:         items,
		Status:        string(order.Status),
	}
}

type noopNotifier struct{}

func (noopNotifier) OrderCreated(context.Context, *models.Order) {}

func (noopNotifier) OrderStatusChanged(context.Context, *models.Order, models.OrderStatus) {}
