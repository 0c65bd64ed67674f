package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// DiscountCode is keyed by its upper-cased code. CurrentUses is mutated
// only inside the order-creation transaction.
type DiscountCode struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	ValidFrom     *time.Time      `json:"valid_from,omitempty"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	MaxUses       *int            `json:"max_uses,omitempty"`
	CurrentUses   int             `json:"current_uses"`
	CreatedAt     time.Time       `json:"created_at"`
}
