package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// GetActiveByIDs returns the active products among the requested IDs,
// keyed by ID. Missing or inactive products are simply absent from the
// result; the caller decides how to report them.
func (s *ProductStore) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, price, active, created_at, updated_at
		FROM products
		WHERE id = ANY($1) AND active
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[uuid.UUID]*Product, len(ids))
	for rows.Next() {
		var p Product
		var createdAt, updatedAt pgtype.Timestamptz
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Active, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = createdAt.Time
		p.UpdatedAt = updatedAt.Time
		products[p.ID] = &p
	}
	return products, rows.Err()
}

// Upsert inserts or updates seed products by their fixed IDs.
func (s *ProductStore) Upsert(ctx context.Context, products []Product) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range products {
		if _, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, price, active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price, active = EXCLUDED.active, updated_at = NOW()
		`, p.ID, p.Name, p.Price, p.Active); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
