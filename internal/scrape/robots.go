package scrape

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsChecker answers whether a URL may be fetched under its host's
// robots.txt. Parsed files are cached per host.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	cache     *cache.Cache
}

// NewRobotsChecker creates a RobotsChecker that caches each host's rules for ttl.
func NewRobotsChecker(userAgent string, timeout, ttl time.Duration) *RobotsChecker {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsChecker{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		cache:     cache.New(ttl, 2*ttl),
	}
}

// Allowed reports whether rawURL may be fetched. An unreachable robots.txt
// allows everything.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, eris.Errorf("scrape: invalid url %q", rawURL)
	}

	data := r.rules(ctx, u)
	if data == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, r.userAgent), nil
}

func (r *RobotsChecker) rules(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host
	if v, ok := r.cache.Get(key); ok {
		data, _ := v.(*robotstxt.RobotsData)
		return data
	}

	data, err := r.fetch(ctx, key+"/robots.txt")
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		zap.L().Debug("scrape: robots.txt unavailable, allowing",
			zap.String("host", u.Host),
			zap.Error(err),
		)
	}
	r.cache.SetDefault(key, data)
	return data
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: robots request")
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch robots.txt")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read robots.txt")
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse robots.txt")
	}
	return data, nil
}
