package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CounterRepository hands out monotonic sequence values per key.
type CounterRepository struct {
	db *sql.DB
}

func NewCounterRepository(db *sql.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

// Next atomically increments the counter for key, creating it at 1, and
// returns the new value.
func (r *CounterRepository) Next(ctx context.Context, key string) (int64, error) {
	const query = `
		INSERT INTO counters (key, sequence_value)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET sequence_value = counters.sequence_value + 1
		RETURNING sequence_value`
	var value int64
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		return 0, fmt.Errorf("increment counter %q: %w", key, err)
	}
	return value, nil
}
