package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DiscountStore struct {
	pool *pgxpool.Pool
}

var ErrDiscountNotFound = errors.New("discount code not found")

func NewDiscountStore(pool *pgxpool.Pool) *DiscountStore {
	return &DiscountStore{pool: pool}
}

// GetByCode looks up a discount code. Codes are stored upper-cased and
// matched case-insensitively.
func (s *DiscountStore) GetByCode(ctx context.Context, code string) (*DiscountCode, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT code, discount_type, discount_value, valid_from, valid_until,
			max_uses, current_uses, created_at
		FROM discount_codes
		WHERE code = $1
	`, strings.ToUpper(strings.TrimSpace(code)))

	var dc DiscountCode
	var discountType string
	var validFrom, validUntil, createdAt pgtype.Timestamptz
	var maxUses pgtype.Int4

	err := row.Scan(&dc.Code, &discountType, &dc.DiscountValue, &validFrom, &validUntil,
		&maxUses, &dc.CurrentUses, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, err
	}

	dc.DiscountType = DiscountType(discountType)
	dc.CreatedAt = createdAt.Time
	if validFrom.Valid {
		t := validFrom.Time
		dc.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		dc.ValidUntil = &t
	}
	if maxUses.Valid {
		m := int(maxUses.Int32)
		dc.MaxUses = &m
	}
	return &dc, nil
}
