package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusCompleted OrderStatus = "completed"
	StatusFailed    OrderStatus = "failed"
	StatusRefunded  OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentProvider identifies which gateway owns reconciliation for an order.
type PaymentProvider string

const (
	ProviderStripe PaymentProvider = "stripe"
	ProviderPayPal PaymentProvider = "paypal"
)

type Order struct {
	ID            uuid.UUID  `json:"id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	CustomerEmail string     `json:"customer_email"`
	CustomerName  string     `json:"customer_name"`

	// Total is the amount charged, denominated in Currency. When Currency
	// differs from the store's base currency, OriginalAmount holds the
	// base-currency total and ExchangeRate the rate applied at checkout.
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	OriginalAmount decimal.Decimal `json:"original_amount"`

	DiscountCode string `json:"discount_code,omitempty"`

	Provider PaymentProvider `json:"payment_provider"`
	// Exactly one of the two provider references is set, depending on Provider.
	StripePaymentIntentID string `json:"stripe_payment_intent_id,omitempty"`
	PayPalOrderID         string `json:"paypal_order_id,omitempty"`

	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	FailureReason string        `json:"failure_reason,omitempty"`

	Items []OrderItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	PaidAt    time.Time `json:"paid_at,omitzero"`
}

// ProviderReference returns the reference owned by the order's gateway.
func (o *Order) ProviderReference() string {
	if o.Provider == ProviderPayPal {
		return o.PayPalOrderID
	}
	return o.StripePaymentIntentID
}

// OrderItem snapshots the product price at purchase time; later product
// price changes never affect an existing order.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID uuid.UUID       `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
}

// validStatusPairs constrains which status/paymentStatus combinations an
// order may hold. PAID requires a succeeded payment; REFUNDED payment
// requires a refunded order.
var validStatusPairs = map[OrderStatus][]PaymentStatus{
	StatusPending:   {PaymentPending},
	StatusPaid:      {PaymentSucceeded},
	StatusCompleted: {PaymentSucceeded},
	StatusFailed:    {PaymentPending, PaymentFailed},
	StatusRefunded:  {PaymentRefunded},
}

func ValidStatusPair(status OrderStatus, payment PaymentStatus) bool {
	allowed, ok := validStatusPairs[status]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == payment {
			return true
		}
	}
	return false
}
