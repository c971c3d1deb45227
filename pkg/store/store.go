// Package store is the data access layer over PostgreSQL: mazes,
// experiments, the append-only action log, and the trigger queue. All
// per-experiment write paths go through the advisory lock in
// WithExperimentLock so position accounting stays serialized.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides all database operations for the service
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given connection pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for health checks
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
