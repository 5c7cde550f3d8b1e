package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"photo-quiz-service/internal/domain"
)

// PoolLoader fetches the question pool from a backing store (file, Postgres).
type PoolLoader interface {
	LoadPool(ctx context.Context) (domain.Pool, error)
}

// PoolRepository caches the pool with TTL to avoid re-reading the source on every session.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	pool      domain.Pool
	loaded    bool
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PoolRepository) cached(now time.Time) (domain.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.loaded && r.expiresAt.After(now) {
		return r.pool, true
	}
	return domain.Pool{}, false
}

func (r *PoolRepository) GetPool(ctx context.Context) (domain.Pool, error) {
	if pool, ok := r.cached(r.clock()); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do("pool", func() (interface{}, error) {
		now := r.clock()
		if pool, ok := r.cached(now); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx)
		if err != nil {
			return domain.Pool{}, err
		}

		r.mu.Lock()
		r.pool = pool
		r.loaded = true
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return domain.Pool{}, err
	}
	return result.(domain.Pool), nil
}

// Invalidate forces the next GetPool to hit the loader.
func (r *PoolRepository) Invalidate() {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
}

// StaticPoolLoader is a simple loader backed by in-memory records (useful for tests/demos).
type StaticPoolLoader struct {
	records []domain.Record
}

func NewStaticPoolLoader(records []domain.Record) *StaticPoolLoader {
	return &StaticPoolLoader{records: records}
}

func (l *StaticPoolLoader) LoadPool(_ context.Context) (domain.Pool, error) {
	if len(l.records) == 0 {
		return domain.Pool{}, &domain.LoadError{Source: "static", Err: domain.ErrEmptyPool}
	}
	return domain.NewPool(l.records), nil
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
