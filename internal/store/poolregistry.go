// Package store adapts the shared Postgres/Qdrant persistence layer to the
// Store ports required by internal/config, internal/legs/{vector,sparse,graph}.
// Grounded on internal/persistence/databases/{pool.go,factory.go} — the
// teacher's newPgPool opens a fresh *pgxpool.Pool on every call, which
// violates spec.md §5's "shared connection pools keyed by DSN, created once,
// reused across requests" invariant. PoolRegistry fixes that with a
// DSN-keyed cache so concurrent requests against the same DSN share one pool.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolRegistry caches *pgxpool.Pool instances by DSN. Created once per
// process; only Shutdown closes the underlying pools. A per-request
// Resolve() must never call pool.Close() itself.
type PoolRegistry struct {
	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{pools: map[string]*pgxpool.Pool{}}
}

// Resolve returns the shared pool for dsn, creating and pinging it on first
// use; later calls reuse it. Concurrent first calls for the same DSN may each
// open a pool, and all but the one stored are closed (spec.md §8 invariant: "for any sequence of N requests against the
// same DSN, the pool is created exactly once").
func (r *PoolRegistry) Resolve(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	r.mu.Lock()
	if p, ok := r.pools[dsn]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	pool, err := newPgPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.pools[dsn]; ok {
		// Lost the race to another goroutine resolving the same DSN concurrently;
		// keep the winner, close the redundant pool we just opened.
		pool.Close()
		return existing, nil
	}
	r.pools[dsn] = pool
	return pool, nil
}

// Shutdown closes every pool the registry has ever created. Call exactly
// once, at process shutdown.
func (r *PoolRegistry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for dsn, p := range r.pools {
		p.Close()
		delete(r.pools, dsn)
	}
}

func newPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 16
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
