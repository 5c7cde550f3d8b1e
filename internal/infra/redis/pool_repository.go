package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"photo-quiz-service/internal/domain"
)

// PoolLoader fetches the question pool from a backing store (file, Postgres).
type PoolLoader interface {
	LoadPool(ctx context.Context) (domain.Pool, error)
}

// PoolRepository caches pool records in Redis and falls back to a loader on cache miss.
// Records are stored as: HSET pool:{name}:records {position} {json record}
type PoolRepository struct {
	client *redis.Client
	loader PoolLoader
	name   string
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPoolRepository(client *redis.Client, loader PoolLoader, name string, ttl time.Duration) *PoolRepository {
	if name == "" {
		name = "default"
	}
	return &PoolRepository{
		client: client,
		loader: loader,
		name:   name,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PoolRepository) GetPool(ctx context.Context) (domain.Pool, error) {
	key := r.recordsKey()

	if pool, ok := r.fromCache(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.fromCache(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx)
		if err != nil {
			return domain.Pool{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, key)
		for i, rec := range pool.Records {
			raw, err := json.Marshal(rec)
			if err != nil {
				return domain.Pool{}, err
			}
			pipe.HSet(ctx, key, strconv.Itoa(i), raw)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// a failed cache write only costs a reload next time
		_, _ = pipe.Exec(ctx)

		return pool, nil
	})
	if err != nil {
		return domain.Pool{}, err
	}
	return result.(domain.Pool), nil
}

// Invalidate drops the cached records so the next GetPool reloads from the source.
func (r *PoolRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, r.recordsKey()).Err()
}

func (r *PoolRepository) recordsKey() string {
	return "pool:" + r.name + ":records"
}

func (r *PoolRepository) fromCache(ctx context.Context, key string) (domain.Pool, bool) {
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.Pool{}, false
	}
	pool, err := buildPoolFromCache(fields)
	if err != nil {
		return domain.Pool{}, false
	}
	return pool, true
}

// buildPoolFromCache restores source order from the hash field positions.
func buildPoolFromCache(fields map[string]string) (domain.Pool, error) {
	type positioned struct {
		pos int
		rec domain.Record
	}
	entries := make([]positioned, 0, len(fields))
	for field, raw := range fields {
		pos, err := strconv.Atoi(field)
		if err != nil {
			return domain.Pool{}, err
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return domain.Pool{}, err
		}
		entries = append(entries, positioned{pos: pos, rec: rec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })

	records := make([]domain.Record, len(entries))
	for i, e := range entries {
		records[i] = e.rec
	}
	return domain.NewPool(records), nil
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
