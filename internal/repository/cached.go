package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/zhejian/shortlink/internal/model"
)

// notFoundSentinel marks an alias known to be absent.
const notFoundSentinel = "__NOT_FOUND__"

// populateScript writes a link hash only when the key is absent so a late
// cache fill never overwrites a counter advanced by incrementScript.
var populateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], unpack(ARGV, 2))
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// incrementScript mirrors a committed click into the cached hash, if any.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], 'clicks', 1)
end
return 0
`)

// CachedStore decorates a Store with a Redis read-through cache. Writes go
// to the wrapped store first; Redis failures never fail a request, reads
// fall back to the wrapped store and a circuit breaker stops hammering an
// unavailable Redis.
type CachedStore struct {
	next        Store
	cache       *redis.Client
	breaker     *gobreaker.CircuitBreaker
	group       singleflight.Group
	ttl         time.Duration
	negativeTTL time.Duration
}

// NewCachedStore wraps next. A nil cache turns the decorator into a
// pass-through.
func NewCachedStore(next Store, cache *redis.Client, ttl, negativeTTL time.Duration) *CachedStore {
	return &CachedStore{
		next:        next,
		cache:       cache,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis-link-cache",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func aliasKey(alias string) string { return "link:alias:" + alias }

func linkKey(id int64) string { return "link:id:" + strconv.FormatInt(id, 10) }

// Create writes through to the wrapped store and drops any negative entry
// left for the alias.
func (r *CachedStore) Create(ctx context.Context, link *model.Link) error {
	if err := r.next.Create(ctx, link); err != nil {
		return err
	}
	if r.cache != nil && link.CustomAlias != "" {
		_ = r.guard(func() error {
			return r.cache.Del(ctx, aliasKey(link.CustomAlias)).Err()
		})
	}
	return nil
}

// GetByAlias with cache-aside pattern and negative caching
func (r *CachedStore) GetByAlias(ctx context.Context, alias string) (*model.Link, error) {
	if r.cache == nil {
		return r.next.GetByAlias(ctx, alias)
	}

	// 1. Alias index
	if cached, ok := r.getString(ctx, aliasKey(alias)); ok {
		if cached == notFoundSentinel {
			return nil, ErrNotFound
		}
		if id, err := strconv.ParseInt(cached, 10, 64); err == nil {
			return r.GetByID(ctx, id)
		}
	}

	// 2. Wrapped store, one query per alias at a time
	v, err, _ := r.group.Do("alias:"+alias, func() (interface{}, error) {
		link, err := r.next.GetByAlias(ctx, alias)
		if errors.Is(err, ErrNotFound) {
			_ = r.guard(func() error {
				return r.cache.Set(ctx, aliasKey(alias), notFoundSentinel, r.negativeTTL).Err()
			})
			return nil, err
		}
		if err != nil {
			return nil, err
		}
		r.store(ctx, link)
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	link := *v.(*model.Link)
	return &link, nil
}

// GetByID with cache-aside pattern
func (r *CachedStore) GetByID(ctx context.Context, id int64) (*model.Link, error) {
	if r.cache == nil {
		return r.next.GetByID(ctx, id)
	}

	if link, ok := r.getLink(ctx, id); ok {
		return link, nil
	}

	v, err, _ := r.group.Do(linkKey(id), func() (interface{}, error) {
		link, err := r.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.store(ctx, link)
		return link, nil
	})
	if err != nil {
		return nil, err
	}
	link := *v.(*model.Link)
	return &link, nil
}

// IncrementClicks commits to the wrapped store, then advances the cached
// counter when the link is cached.
func (r *CachedStore) IncrementClicks(ctx context.Context, id int64) error {
	if err := r.next.IncrementClicks(ctx, id); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.guard(func() error {
			return incrementScript.Run(ctx, r.cache, []string{linkKey(id)}).Err()
		})
	}
	return nil
}

// Ping reports the wrapped store's health; cache health is checked
// separately by the health endpoint.
func (r *CachedStore) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

// guard runs fn through the circuit breaker.
func (r *CachedStore) guard(fn func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (r *CachedStore) getString(ctx context.Context, key string) (string, bool) {
	var val string
	err := r.guard(func() error {
		v, err := r.cache.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		val = v
		return err
	})
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

func (r *CachedStore) getLink(ctx context.Context, id int64) (*model.Link, bool) {
	var fields map[string]string
	err := r.guard(func() error {
		v, err := r.cache.HGetAll(ctx, linkKey(id)).Result()
		fields = v
		return err
	})
	if err != nil || len(fields) == 0 {
		return nil, false
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, false
	}
	clicks, err := strconv.ParseInt(fields["clicks"], 10, 64)
	if err != nil {
		return nil, false
	}
	return &model.Link{
		ID:          id,
		LongURL:     fields["long_url"],
		CustomAlias: fields["custom_alias"],
		CreatedAt:   createdAt,
		Clicks:      clicks,
	}, true
}

// store caches link and, for aliased links, its alias index entry.
func (r *CachedStore) store(ctx context.Context, link *model.Link) {
	_ = r.guard(func() error {
		pipe := r.cache.Pipeline()
		// Eval rather than Run: EVALSHA fallback does not work inside a pipeline.
		populateScript.Eval(ctx, pipe, []string{linkKey(link.ID)},
			r.ttl.Milliseconds(),
			"long_url", link.LongURL,
			"custom_alias", link.CustomAlias,
			"created_at", link.CreatedAt.Format(time.RFC3339Nano),
			"clicks", link.Clicks,
		)
		if link.CustomAlias != "" {
			pipe.Set(ctx, aliasKey(link.CustomAlias), link.ID, r.ttl)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

var _ Store = (*CachedStore)(nil)
