package config

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrCorpusNotFound is returned when a named corpus has no persisted override
// and the caller required one to exist (§4.1: the resolver never auto-creates
// corpora on read).
var ErrCorpusNotFound = errors.New("config: corpus not found")

// Store persists per-corpus configuration overrides as a KV document. A
// Postgres-backed implementation lives in internal/store; tests use an
// in-memory one.
type Store interface {
	Get(ctx context.Context, corpusID string) (ScopedConfiguration, bool, error)
	Put(ctx context.Context, corpusID string, cfg ScopedConfiguration) error
	Delete(ctx context.Context, corpusID string) error
}

// Resolver is the Config Resolver (C1): per-corpus override over global
// defaults, with a read-through cache invalidated on write.
type Resolver struct {
	store    Store
	defaults ScopedConfiguration
	log      zerolog.Logger

	mu    sync.RWMutex
	cache map[string]ScopedConfiguration
}

// Option configures a Resolver, following the teacher's functional-options
// idiom (internal/rag/service/options.go).
type Option func(*Resolver)

func WithLogger(l zerolog.Logger) Option { return func(r *Resolver) { r.log = l } }

func WithDefaults(d ScopedConfiguration) Option {
	return func(r *Resolver) { r.defaults = d }
}

// NewResolver constructs a Resolver backed by store. Defaults are Defaults()
// unless overridden via WithDefaults.
func NewResolver(store Store, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		store:    store,
		defaults: Defaults(),
		log:      zerolog.Nop(),
		cache:    make(map[string]ScopedConfiguration),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := Normalize(&r.defaults); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve loads the effective configuration for corpusID: a per-corpus
// override if one is persisted, else the global default. requireCorpus, when
// true, surfaces ErrCorpusNotFound if no override exists — used by edges that
// must 404 on an unknown corpus_id (e.g. GET /api/config?corpus_id=...).
func (r *Resolver) Resolve(ctx context.Context, corpusID string, requireCorpus bool) (ScopedConfiguration, error) {
	if corpusID == "" {
		return r.defaults, nil
	}

	r.mu.RLock()
	if cfg, ok := r.cache[corpusID]; ok {
		r.mu.RUnlock()
		return cfg, nil
	}
	r.mu.RUnlock()

	cfg, found, err := r.store.Get(ctx, corpusID)
	if err != nil {
		return ScopedConfiguration{}, err
	}
	if !found {
		if requireCorpus {
			return ScopedConfiguration{}, ErrCorpusNotFound
		}
		cfg = r.defaults
		cfg.CorpusID = corpusID
	}
	if err := Normalize(&cfg); err != nil {
		return ScopedConfiguration{}, err
	}

	r.mu.Lock()
	r.cache[corpusID] = cfg
	r.mu.Unlock()
	return cfg, nil
}

// Save persists a per-corpus override atomically and replaces the cache
// entry with the saved document (§3: "Mutation is atomic per corpus; readers never see partial
// writes" — the store implementation owns the atomicity of the write itself;
// the resolver guarantees readers never observe a stale cache entry after
// Save returns).
func (r *Resolver) Save(ctx context.Context, corpusID string, cfg ScopedConfiguration) error {
	if err := Normalize(&cfg); err != nil {
		return err
	}
	cfg.CorpusID = corpusID
	if err := r.store.Put(ctx, corpusID, cfg); err != nil {
		return err
	}
	r.mu.Lock()
	r.cache[corpusID] = cfg
	r.mu.Unlock()
	return nil
}

// Reset removes a corpus's override, reverting reads to the global default.
func (r *Resolver) Reset(ctx context.Context, corpusID string) error {
	if err := r.store.Delete(ctx, corpusID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.cache, corpusID)
	r.mu.Unlock()
	return nil
}

// Defaults returns the resolver's global fallback document.
func (r *Resolver) Defaults() ScopedConfiguration { return r.defaults }
