package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/checkout"
	"github.com/paycartapp/paycart/internal/currency"
	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/logging"
	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/observability"
	"github.com/paycartapp/paycart/internal/payments"
)

type orderStore interface {
	Create(ctx context.Context, order *db.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	List(ctx context.Context, limit int) ([]*db.Order, error)
	OverrideStatus(ctx context.Context, orderID uuid.UUID, status db.OrderStatus, payment db.PaymentStatus) error
}

type productStore interface {
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*db.Product, error)
}

type discountValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

type amountConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) currency.Result
}

type orphanRecorder interface {
	Record(ctx context.Context, provider db.PaymentProvider, reference, reason string) error
}

// providerCallTimeout bounds every external payment-provider call so
// checkout fails fast instead of hanging.
const providerCallTimeout = 15 * time.Second

type OrderService struct {
	orderStore   orderStore
	productStore productStore
	discounts    discountValidator
	converter    amountConverter
	orphans      orphanRecorder
	gateways     map[models.PaymentProvider]payments.Gateway
	notifier     Notifier
	baseCurrency string
	supported    map[string]bool
	logger       *slog.Logger
}

type OrderServiceConfig struct {
	BaseCurrency        string
	SupportedCurrencies []string
}

func NewOrderService(
	orders orderStore,
	products productStore,
	discounts discountValidator,
	converter amountConverter,
	orphans orphanRecorder,
	gateways map[models.PaymentProvider]payments.Gateway,
	notifier Notifier,
	cfg OrderServiceConfig,
	logger *slog.Logger,
) *OrderService {
	if notifier == nil {
		notifier = noopNotifier{}
	}

	supported := make(map[string]bool, len(cfg.SupportedCurrencies)+1)
	supported[strings.ToUpper(cfg.BaseCurrency)] = true
	for _, code := range cfg.SupportedCurrencies {
		supported[strings.ToUpper(code)] = true
	}

	return &OrderService{
		orderStore:   orders,
		productStore: products,
		discounts:    discounts,
		converter:    converter,
		orphans:      orphans,
		gateways:     gateways,
		notifier:     notifier,
		baseCurrency: strings.ToUpper(cfg.BaseCurrency),
		supported:    supported,
		logger:       logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	CustomerEmail string
	CustomerName  string
	UserID        *uuid.UUID
	Items         []CreateOrderItem
	DiscountCode  string
	Provider      models.PaymentProvider
	Currency      string
}

// CreateOrder runs the checkout: resolves products at snapshot prices,
// validates and prices the discount, converts to the display currency,
// creates the provider intent, and commits order + items + discount
// increment as one transaction. It returns the order and the provider's
// client-facing handle.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, string, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.create",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("CreateOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("provider", string(input.Provider)))
	recordFailure := func(reason string) {
		meter.Count("order.create.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}
	meter.Count("order.create.received", 1)

	if err := s.validateInput(&input); err != nil {
		recordFailure("validation_failed")
		return nil, "", err
	}

	gateway, ok := s.gateways[input.Provider]
	if !ok {
		recordFailure("unknown_provider")
		return nil, "", &checkout.ValidationError{Field: "paymentProvider", Message: fmt.Sprintf("unsupported provider %q", input.Provider)}
	}

	products, subtotal, err := s.resolveProducts(ctx, input.Items)
	if err != nil {
		recordFailure("product_unavailable")
		return nil, "", err
	}

	discountAmount := decimal.Decimal{}
	if input.DiscountCode != "" {
		discountAmount, err = s.discounts.Validate(ctx, input.DiscountCode, subtotal)
		if err != nil {
			recordFailure("discount_rejected")
			return nil, "", err
		}
	}
	baseTotal := subtotal.Sub(discountAmount)

	converted := s.converter.Convert(ctx, baseTotal, s.baseCurrency, input.Currency)
	chargedTotal := converted.Amount

	if chargedTotal.LessThan(gateway.MinimumCharge(input.Currency)) {
		recordFailure("amount_too_low")
		return nil, "", fmt.Errorf("%w: %s %s is below the %s minimum",
			checkout.ErrAmountTooLow, chargedTotal.StringFixed(2), input.Currency, input.Provider)
	}

	order := s.buildOrder(input, products, subtotal, discountAmount, baseTotal, chargedTotal, converted)

	intentCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
	intent, err := gateway.CreateIntent(intentCtx, payments.CreateIntentParams{
		Amount:        chargedTotal,
		Currency:      input.Currency,
		CustomerEmail: input.CustomerEmail,
		Metadata:      map[string]string{"customer_email": input.CustomerEmail},
	})
	cancel()
	if err != nil {
		recordFailure("intent_create_failed")
		logger.Error("payment intent creation failed", "error", err, "provider", input.Provider)
		return nil, "", fmt.Errorf("%w: %v", checkout.ErrPaymentProcessing, err)
	}

	switch input.Provider {
	case models.ProviderPayPal:
		order.PayPalOrderID = intent.Reference
	default:
		order.StripePaymentIntentID = intent.Reference
	}

	if err := s.orderStore.Create(ctx, order); err != nil {
		recordFailure("order_create_failed")
		s.compensateIntent(ctx, gateway, intent.Reference, err)
		if errors.Is(err, db.ErrDiscountExhausted) {
			return nil, "", checkout.ErrDiscountExhausted
		}
		return nil, "", fmt.Errorf("failed to create order: %w", err)
	}
	meter.Count("order.created", 1)

	s.notifier.OrderCreated(ctx, order)

	return order, intent.ClientHandle, nil
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func (s *OrderService) validateInput(input *CreateOrderInput) error {
	if !emailPattern.MatchString(input.CustomerEmail) {
		return &checkout.ValidationError{Field: "customerEmail", Message: "must be a valid email address"}
	}
	if len(input.Items) == 0 {
		return &checkout.ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return &checkout.ValidationError{Field: "items", Message: "quantity must be at least 1"}
		}
	}

	if input.Provider == "" {
		input.Provider = models.ProviderStripe
	}
	if input.Currency == "" {
		input.Currency = s.baseCurrency
	}
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if !s.supported[input.Currency] {
		return &checkout.ValidationError{Field: "currency", Message: fmt.Sprintf("currency %q is not supported", input.Currency)}
	}
	input.DiscountCode = strings.ToUpper(strings.TrimSpace(input.DiscountCode))
	return nil
}

// resolveProducts fetches every requested product and computes the subtotal
// from snapshotted prices, so a concurrent price change cannot alter an
// in-flight order. Any missing or inactive product fails the whole order.
func (s *OrderService) resolveProducts(ctx context.Context, items []CreateOrderItem) (map[uuid.UUID]*db.Product, decimal.Decimal, error) {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.productStore.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Decimal{}, fmt.Errorf("failed to look up products: %w", err)
	}

	var missing []uuid.UUID
	subtotal := decimal.Decimal{}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			missing = append(missing, item.ProductID)
			continue
		}
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if len(missing) > 0 {
		return nil, decimal.Decimal{}, &checkout.ProductUnavailableError{ProductIDs: missing}
	}
	return products, subtotal, nil
}

func (s *OrderService) buildOrder(
	input CreateOrderInput,
	products map[uuid.UUID]*db.Product,
	subtotal, discountAmount, baseTotal, chargedTotal decimal.Decimal,
	converted currency.Result,
) *models.Order {
	order := &models.Order{
		UserID:         input.UserID,
		CustomerEmail:  input.CustomerEmail,
		CustomerName:   input.CustomerName,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		Total:          chargedTotal,
		Currency:       input.Currency,
		ExchangeRate:   converted.Rate,
		DiscountCode:   input.DiscountCode,
		Provider:       input.Provider,
		Status:         models.StatusPending,
		PaymentStatus:  models.PaymentPending,
	}
	if input.Currency != s.baseCurrency {
		order.OriginalAmount = baseTotal
	}

	order.Items = make([]models.OrderItem, len(input.Items))
	for i, item := range input.Items {
		order.Items[i] = models.OrderItem{
			ProductID: item.ProductID,
			UnitPrice: products[item.ProductID].Price,
			Quantity:  item.Quantity,
		}
	}
	return order
}

// compensateIntent voids a provider intent after a failed local commit.
// When the gateway cannot cancel, the reference is recorded for the
// reconciliation sweep instead. The commit may have failed because the
// request context died, so compensation runs detached from it.
func (s *OrderService) compensateIntent(ctx context.Context, gateway payments.Gateway, reference string, cause error) {
	logger := s.loggerFromContext(ctx)
	detached := context.WithoutCancel(ctx)

	cancelCtx, cancel := context.WithTimeout(detached, providerCallTimeout)
	defer cancel()

	err := gateway.CancelIntent(cancelCtx, reference)
	if err == nil {
		logger.Info("canceled provider intent after failed order commit", "provider", gateway.Provider(), "reference", reference)
		return
	}

	logger.Error("failed to cancel provider intent, recording orphan",
		"error", err, "provider", gateway.Provider(), "reference", reference, "cause", cause)
	recordCtx, cancelRecord := context.WithTimeout(detached, providerCallTimeout)
	defer cancelRecord()
	if recordErr := s.orphans.Record(recordCtx, gateway.Provider(), reference, cause.Error()); recordErr != nil {
		logger.Error("failed to record orphaned intent", "error", recordErr, "provider", gateway.Provider(), "reference", reference)
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orderStore.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.orderStore.List(ctx, limit)
}

// OverrideStatus is the explicit admin status update. It enforces the
// status/paymentStatus pair constraint and fires the same notification as a
// webhook-driven transition.
func (s *OrderService) OverrideStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus, payment models.PaymentStatus) (*models.Order, error) {
	if !models.ValidStatusPair(status, payment) {
		return nil, &checkout.ValidationError{Field: "status", Message: fmt.Sprintf("invalid status pair %s/%s", status, payment)}
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	previous := order.Status

	if err := s.orderStore.OverrideStatus(ctx, orderID, status, payment); err != nil {
		if errors.Is(err, db.ErrOrderNotFound) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, err
	}

	order.Status = status
	order.PaymentStatus = payment
	if previous != status {
		s.notifier.OrderStatusChanged(ctx, order, previous)
	}
	return order, nil
}
