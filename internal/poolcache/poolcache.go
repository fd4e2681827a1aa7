// Package poolcache publishes Top-K pools to Redis so other services can
// read the current pool without rebuilding the index.
package poolcache

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/topk"
	"github.com/wonny/aegis-signal/pkg/redis"
)

// Pool is the published form of one date's Top-K pool
type Pool struct {
	Date        string             `json:"date"`
	K           string             `json:"k"`
	Codes       []string           `json:"codes"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	PublishedAt time.Time          `json:"published_at"`
}

// Contains reports whether code is a pool member
func (p Pool) Contains(code string) bool {
	code = contracts.NormalizeCode(code)
	for _, c := range p.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// PoolOf builds the published form of date's pool; false if the index lacks the date
func PoolOf(idx *topk.Index, date civil.Date) (Pool, bool) {
	if !idx.HasDate(date) {
		return Pool{}, false
	}
	codes := idx.PoolFor(date)
	p := Pool{
		Date:   date.String(),
		K:      idx.K().String(),
		Codes:  codes,
		Scores: make(map[string]float64, len(codes)),
	}
	for _, c := range codes {
		if s, ok := idx.ScoreOf(c, date); ok {
			p.Scores[c] = s
		}
	}
	return p, true
}

// SizeRecorder receives the size of the latest published pool
type SizeRecorder interface {
	RecordPoolSize(n int)
}

// Publisher writes pools through the redis cache helper
type Publisher struct {
	cache *redis.Cache
	ttl   time.Duration
	log   zerolog.Logger
	rec   SizeRecorder
	now   func() time.Time
}

// NewPublisher creates a publisher; rec may be nil
func NewPublisher(cache *redis.Cache, ttl time.Duration, log zerolog.Logger, rec SizeRecorder) *Publisher {
	if ttl <= 0 {
		ttl = redis.TTLWeek
	}
	return &Publisher{
		cache: cache,
		ttl:   ttl,
		log:   log.With().Str("component", "poolcache").Logger(),
		rec:   rec,
		now:   time.Now,
	}
}

// Enabled reports whether publishing reaches Redis
func (p *Publisher) Enabled() bool {
	return p.cache.Enabled()
}

// Publish stores the pools of dates and moves the latest pointer to the
// newest of them. Dates the index lacks are skipped. Returns the number
// of pools written.
func (p *Publisher) Publish(ctx context.Context, idx *topk.Index, dates []civil.Date) (int, error) {
	values := make(map[string]interface{}, len(dates)+1)
	var latest *Pool
	publishedAt := p.now().UTC()

	for _, d := range dates {
		pool, ok := PoolOf(idx, d)
		if !ok {
			p.log.Debug().Str("date", d.String()).Msg("no pool for date, skipped")
			continue
		}
		pool.PublishedAt = publishedAt
		values[redis.PoolKey(pool.Date)] = pool
		if latest == nil || latest.Date < pool.Date {
			cp := pool
			latest = &cp
		}
	}
	if latest == nil {
		return 0, nil
	}
	n := len(values)
	values[redis.LatestPoolKey()] = *latest

	if err := p.cache.SetMany(ctx, values, p.ttl); err != nil {
		return 0, fmt.Errorf("publish pools: %w", err)
	}
	if p.rec != nil {
		p.rec.RecordPoolSize(len(latest.Codes))
	}

	p.log.Info().
		Int("pools", n).
		Str("latest", latest.Date).
		Int("size", len(latest.Codes)).
		Bool("redis", p.cache.Enabled()).
		Msg("pools published")
	return n, nil
}

// Get reads a published pool
func (p *Publisher) Get(ctx context.Context, date civil.Date) (Pool, bool, error) {
	return p.get(ctx, redis.PoolKey(date.String()))
}

// Latest reads the most recently published pool
func (p *Publisher) Latest(ctx context.Context) (Pool, bool, error) {
	return p.get(ctx, redis.LatestPoolKey())
}

func (p *Publisher) get(ctx context.Context, key string) (Pool, bool, error) {
	var pool Pool
	found, err := p.cache.Get(ctx, key, &pool)
	if err != nil || !found {
		return Pool{}, false, err
	}
	return pool, true, nil
}

// Resolver answers pool queries from the cache, falling back to an index
type Resolver struct {
	pub *Publisher
	idx *topk.Index
}

// NewResolver pub or idx may be nil
func NewResolver(pub *Publisher, idx *topk.Index) *Resolver {
	return &Resolver{pub: pub, idx: idx}
}

// Pool returns date's pool. A cache error falls through to the index.
func (r *Resolver) Pool(ctx context.Context, date civil.Date) (Pool, bool, error) {
	var cacheErr error
	if r.pub != nil && r.pub.Enabled() {
		pool, ok, err := r.pub.Get(ctx, date)
		if err == nil && ok {
			return pool, true, nil
		}
		cacheErr = err
	}
	if r.idx != nil {
		if pool, ok := PoolOf(r.idx, date); ok {
			return pool, true, nil
		}
	}
	return Pool{}, false, cacheErr
}

// Latest returns the newest pool known to the cache or the index
func (r *Resolver) Latest(ctx context.Context) (Pool, bool, error) {
	if r.pub != nil && r.pub.Enabled() {
		if pool, ok, err := r.pub.Latest(ctx); err == nil && ok {
			return pool, true, nil
		}
	}
	if r.idx != nil {
		if dates := r.idx.Dates(); len(dates) > 0 {
			pool, ok := PoolOf(r.idx, dates[len(dates)-1])
			return pool, ok, nil
		}
	}
	return Pool{}, false, nil
}
