package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelcast/betwatch/internal/domain"
)

// LabelStore implements domain.LabelStore using PostgreSQL.
type LabelStore struct {
	pool *pgxpool.Pool
}

// NewLabelStore creates a new LabelStore backed by the given connection pool.
func NewLabelStore(pool *pgxpool.Pool) *LabelStore {
	return &LabelStore{pool: pool}
}

// Get returns the label for a bet, or domain.ErrNotFound when none is stored.
func (s *LabelStore) Get(ctx context.Context, network string, ref domain.BetRef) (string, error) {
	const query = `
		SELECT label FROM bet_labels
		WHERE network = $1 AND variant = $2 AND bet_id = $3`

	var label string
	err := s.pool.QueryRow(ctx, query, network, string(ref.Variant), int64(ref.ID)).Scan(&label)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("postgres: label for %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: label for %s: %w", ref, err)
	}
	return label, nil
}

// Set stores or replaces the label for a bet. An empty label deletes the row.
func (s *LabelStore) Set(ctx context.Context, network string, ref domain.BetRef, label string) error {
	if label == "" {
		const del = `
			DELETE FROM bet_labels
			WHERE network = $1 AND variant = $2 AND bet_id = $3`
		if _, err := s.pool.Exec(ctx, del, network, string(ref.Variant), int64(ref.ID)); err != nil {
			return fmt.Errorf("postgres: delete label for %s: %w", ref, err)
		}
		return nil
	}

	const query = `
		INSERT INTO bet_labels (network, variant, bet_id, label, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (network, variant, bet_id) DO UPDATE SET
			label      = EXCLUDED.label,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, network, string(ref.Variant), int64(ref.ID), label); err != nil {
		return fmt.Errorf("postgres: set label for %s: %w", ref, err)
	}
	return nil
}
