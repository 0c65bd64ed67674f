// Package discount validates discount codes and computes discount amounts.
// The usage-counter increment is deliberately not done here: it happens
// inside the order-creation transaction so two concurrent checkouts cannot
// both pass the quota check and overrun it.
package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/checkout"
	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/models"
)

type codeStore interface {
	GetByCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

type Validator struct {
	store codeStore
	now   func() time.Time
}

func NewValidator(store codeStore) *Validator {
	return &Validator{store: store, now: time.Now}
}

// Validate checks the code's activity window and usage quota and returns the
// discount amount, clamped so it never exceeds the subtotal.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	dc, err := v.store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, db.ErrDiscountNotFound) {
			return decimal.Decimal{}, checkout.ErrDiscountInvalid
		}
		return decimal.Decimal{}, fmt.Errorf("failed to look up discount code: %w", err)
	}

	now := v.now()
	if dc.ValidFrom != nil && now.Before(*dc.ValidFrom) {
		return decimal.Decimal{}, checkout.ErrDiscountNotYet
	}
	if dc.ValidUntil != nil && now.After(*dc.ValidUntil) {
		return decimal.Decimal{}, checkout.ErrDiscountExpired
	}
	if dc.MaxUses != nil && dc.CurrentUses >= *dc.MaxUses {
		return decimal.Decimal{}, checkout.ErrDiscountExhausted
	}

	return Amount(dc, subtotal), nil
}

// Amount computes the discount for a subtotal, clamped to the subtotal.
func Amount(dc *models.DiscountCode, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch dc.DiscountType {
	case models.DiscountPercentage:
		amount = subtotal.Mul(dc.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case models.DiscountFixed:
		amount = dc.DiscountValue
	default:
		return decimal.Decimal{}
	}

	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	if amount.IsNegative() {
		return decimal.Decimal{}
	}
	return amount
}
