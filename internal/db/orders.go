package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrOrderNotFound           = errors.New("order not found")

	// ErrDiscountExhausted is returned when the conditional usage increment
	// affects no row: the quota was consumed by a concurrent checkout.
	ErrDiscountExhausted = errors.New("discount code usage quota exhausted")
)

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, user_id, customer_email, customer_name, subtotal, discount_amount,
	total, currency, exchange_rate, original_amount, discount_code, payment_provider,
	stripe_payment_intent_id, paypal_order_id, status, payment_status, failure_reason,
	created_at, updated_at, paid_at`

// Create persists the order, its items and the discount usage increment in
// one transaction. The increment is conditional on current_uses < max_uses,
// which is what keeps concurrent checkouts from overrunning the quota.
func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if order.DiscountCode != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE discount_codes
			SET current_uses = current_uses + 1
			WHERE code = $1 AND (max_uses IS NULL OR current_uses < max_uses)
		`, order.DiscountCode)
		if err != nil {
			return fmt.Errorf("failed to increment discount usage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrDiscountExhausted
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, customer_email, customer_name, subtotal, discount_amount,
			total, currency, exchange_rate, original_amount, discount_code, payment_provider,
			stripe_payment_intent_id, paypal_order_id, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`,
		order.UserID, order.CustomerEmail, order.CustomerName, order.Subtotal, order.DiscountAmount,
		order.Total, order.Currency, order.ExchangeRate, order.OriginalAmount,
		textOrNil(order.DiscountCode), string(order.Provider),
		textOrNil(order.StripePaymentIntentID), textOrNil(order.PayPalOrderID),
		string(order.Status), string(order.PaymentStatus),
	)
	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		itemRow := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, unit_price, quantity)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, item.OrderID, item.ProductID, item.UnitPrice, item.Quantity)
		if err := itemRow.Scan(&item.ID, &item.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetByProviderReference resolves the order owning a provider reference.
// Returns ErrOrderNotFound when no order has committed with that reference
// yet; webhook delivery can race the local commit.
func (s *OrderStore) GetByProviderReference(ctx context.Context, provider PaymentProvider, reference string) (*Order, error) {
	column := "stripe_payment_intent_id"
	if provider == ProviderPayPal {
		column = "paypal_order_id"
	}
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1`, reference)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) List(ctx context.Context, limit int) ([]*Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// MarkPaid transitions to paid/succeeded. The payment_status guard makes
// redelivered success events no-ops instead of overwrites.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, failure_reason = NULL, paid_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND payment_status <> $2
	`, StatusPaid, PaymentSucceeded, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment already succeeded", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkFailed(ctx context.Context, orderID uuid.UUID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $4 AND payment_status <> $5
	`, StatusFailed, PaymentFailed, reason, orderID, PaymentSucceeded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment already succeeded", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status = $4
	`, StatusRefunded, PaymentRefunded, orderID, PaymentSucceeded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected succeeded payment", ErrInvalidStatusTransition)
	}
	return nil
}

// OverrideStatus is the explicit admin path around the webhook-driven
// transitions. The status pair is validated by the caller.
func (s *OrderStore) OverrideStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus, payment PaymentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3
	`, status, payment, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) loadItems(ctx context.Context, order *Order) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, unit_price, quantity, created_at
		FROM order_items WHERE order_id = $1 ORDER BY created_at
	`, order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		var created pgtype.Timestamptz
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.UnitPrice, &item.Quantity, &created); err != nil {
			return err
		}
		item.CreatedAt = created.Time
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order          Order
		userID         *uuid.UUID
		discountCode   pgtype.Text
		stripeIntentID pgtype.Text
		paypalOrderID  pgtype.Text
		failureReason  pgtype.Text
		provider       string
		status         string
		payment        string
		createdAt      pgtype.Timestamptz
		updatedAt      pgtype.Timestamptz
		paidAt         pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &userID, &order.CustomerEmail, &order.CustomerName,
		&order.Subtotal, &order.DiscountAmount, &order.Total, &order.Currency,
		&order.ExchangeRate, &order.OriginalAmount, &discountCode, &provider,
		&stripeIntentID, &paypalOrderID, &status, &payment, &failureReason,
		&createdAt, &updatedAt, &paidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order.UserID = userID
	order.Provider = PaymentProvider(provider)
	order.Status = OrderStatus(status)
	order.PaymentStatus = PaymentStatus(payment)
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	if discountCode.Valid {
		order.DiscountCode = discountCode.String
	}
	if stripeIntentID.Valid {
		order.StripePaymentIntentID = stripeIntentID.String
	}
	if paypalOrderID.Valid {
		order.PayPalOrderID = paypalOrderID.String
	}
	if failureReason.Valid {
		order.FailureReason = failureReason.String
	}
	if paidAt.Valid {
		order.PaidAt = paidAt.Time
	}
	return &order, nil
}

func textOrNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
