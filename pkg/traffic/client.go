// Package traffic is a client for a domain traffic-estimate API.
package traffic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/gap-analysis/internal/resilience"
)

const defaultBaseURL = "https://api.trafficdata.io"

// ErrNotFound is returned when the API has no estimate for a domain.
var ErrNotFound = eris.New("traffic: domain not found")

// Client fetches traffic estimates.
type Client interface {
	DomainMetrics(ctx context.Context, domain, country string) (*DomainMetrics, error)
}

// DomainMetrics is the monthly estimate for one domain.
type DomainMetrics struct {
	Domain        string  `json:"domain"`
	Period        string  `json:"period"`
	MonthlyVisits float64 `json:"monthly_visits"`
	OrganicShare  float64 `json:"organic_share"`
	BounceRate    float64 `json:"bounce_rate"`
	PagesPerVisit float64 `json:"pages_per_visit"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.retry = p }
}

// WithRateLimit caps requests per second. A non-positive value disables
// throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Policy
	limiter *rate.Limiter
}

// NewClient creates a traffic client limited to 2 requests per second.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		retry:   resilience.NewPolicy(3, 500, 5000),
		limiter: rate.NewLimiter(2, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DomainMetrics(ctx context.Context, domain, country string) (*DomainMetrics, error) {
	if domain == "" {
		return nil, eris.New("traffic: empty domain")
	}
	params := url.Values{}
	if country != "" {
		params.Set("country", country)
	}
	reqURL := c.baseURL + "/v1/domains/" + url.PathEscape(domain) + "/traffic"
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	return resilience.RetryValue(ctx, c.retry, func(ctx context.Context) (*DomainMetrics, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "traffic: rate limit")
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "traffic: create request")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.Transient(eris.Wrap(err, "traffic: send request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "traffic: read response")
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, eris.Wrapf(ErrNotFound, "traffic: %s", domain)
		case resp.StatusCode != http.StatusOK:
			err := eris.Errorf("traffic: unexpected status %d: %s", resp.StatusCode, string(body))
			if resilience.RetryableStatus(resp.StatusCode) {
				return nil, resilience.Transient(err, resp.StatusCode)
			}
			return nil, err
		}

		var m DomainMetrics
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, eris.Wrap(err, "traffic: unmarshal response")
		}
		return &m, nil
	})
}
