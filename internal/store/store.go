// internal/store/store.go
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the pgx-backed persistence layer. Every write is an idempotent
// natural-key upsert so re-running a sync never creates duplicates.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
