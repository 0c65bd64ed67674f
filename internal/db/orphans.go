package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrphanStore records provider-side payment intents whose local order
// commit failed and whose cancellation also failed. A reconciliation sweep
// matches these against the provider later.
type OrphanStore struct {
	pool *pgxpool.Pool
}

type PaymentOrphan struct {
	ID                uuid.UUID       `json:"id"`
	Provider          PaymentProvider `json:"payment_provider"`
	ProviderReference string          `json:"provider_reference"`
	Reason            string          `json:"reason"`
	CreatedAt         time.Time       `json:"created_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
}

func NewOrphanStore(pool *pgxpool.Pool) *OrphanStore {
	return &OrphanStore{pool: pool}
}

func (s *OrphanStore) Record(ctx context.Context, provider PaymentProvider, reference, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_orphans (payment_provider, provider_reference, reason)
		VALUES ($1, $2, $3)
	`, string(provider), reference, reason)
	return err
}

func (s *OrphanStore) ListUnresolved(ctx context.Context) ([]*PaymentOrphan, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, payment_provider, provider_reference, reason, created_at, resolved_at
		FROM payment_orphans
		WHERE resolved_at IS NULL
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []*PaymentOrphan
	for rows.Next() {
		var o PaymentOrphan
		var provider string
		var createdAt, resolvedAt pgtype.Timestamptz
		if err := rows.Scan(&o.ID, &provider, &o.ProviderReference, &o.Reason, &createdAt, &resolvedAt); err != nil {
			return nil, err
		}
		o.Provider = PaymentProvider(provider)
		o.CreatedAt = createdAt.Time
		if resolvedAt.Valid {
			t := resolvedAt.Time
			o.ResolvedAt = &t
		}
		orphans = append(orphans, &o)
	}
	return orphans, rows.Err()
}

func (s *OrphanStore) MarkResolved(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payment_orphans SET resolved_at = NOW() WHERE id = $1 AND resolved_at IS NULL
	`, id)
	return err
}
