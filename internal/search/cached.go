package search

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/gap-analysis/internal/analysis"
	"github.com/sells-group/gap-analysis/internal/model"
)

// Cached memoizes a provider's results and throttles the calls that miss.
type Cached struct {
	next    Provider
	cache   *cache.Cache
	limiter *rate.Limiter
	onCall  func(ctx context.Context, provider string)
}

// CachedOption configures a Cached provider.
type CachedOption func(*Cached)

// WithRateLimit caps upstream calls per second. A non-positive value
// disables throttling.
func WithRateLimit(rps float64) CachedOption {
	return func(c *Cached) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithCallHook registers a function invoked once per upstream call, used
// for cost accounting.
func WithCallHook(fn func(ctx context.Context, provider string)) CachedOption {
	return func(c *Cached) { c.onCall = fn }
}

// NewCached wraps next with a TTL cache.
func NewCached(next Provider, ttl time.Duration, opts ...CachedOption) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name implements Provider.
func (c *Cached) Name() string { return c.next.Name() }

// Search implements Provider. Errors are not cached.
func (c *Cached) Search(ctx context.Context, query string, count int) ([]model.RankedResult, error) {
	l := LocaleFrom(ctx, Locale{})
	key := c.next.Name() + "|" + l.Country + "|" + l.Language + "|" + strconv.Itoa(count) + "|" + analysis.NormalizeQuery(query)
	if v, ok := c.cache.Get(key); ok {
		zap.L().Debug("search: cache hit", zap.String("query", query))
		return v.([]model.RankedResult), nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "search: rate limit")
		}
	}
	if c.onCall != nil {
		c.onCall(ctx, c.next.Name())
	}
	results, err := c.next.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, results)
	return results, nil
}
