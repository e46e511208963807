package scrape

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/internal/resilience"
	"github.com/sells-group/gap-analysis/pkg/jina"
)

// JinaAdapter wraps a Jina Reader client as a Scraper guarded by a circuit
// breaker. Blocked or empty responses count as failures.
type JinaAdapter struct {
	client  jina.Client
	breaker *resilience.Breaker
	onUsage func(ctx context.Context, tokens int)
}

// NewJinaAdapter creates a JinaAdapter. A nil breaker gets the package
// defaults.
func NewJinaAdapter(client jina.Client, breaker *resilience.Breaker) *JinaAdapter {
	if breaker == nil {
		breaker = resilience.NewBreaker("jina", 0, 0)
	}
	return &JinaAdapter{client: client, breaker: breaker}
}

// WithUsageHook registers a function receiving the tokens of each read.
func (j *JinaAdapter) WithUsageHook(fn func(ctx context.Context, tokens int)) *JinaAdapter {
	j.onUsage = fn
	return j
}

func (j *JinaAdapter) Name() string { return "jina" }

// Supports returns true unless the circuit breaker is open.
func (j *JinaAdapter) Supports(_ string) bool {
	return j.breaker.State() != resilience.StateOpen
}

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaAdapter) Scrape(ctx context.Context, targetURL string) (*model.PageText, error) {
	resp, err := resilience.Call(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if j.onUsage != nil {
			j.onUsage(ctx, resp.Data.Usage.Tokens)
		}
		if needsFallback(resp) {
			return nil, eris.New("jina: response needs fallback")
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	pageURL := resp.Data.URL
	if pageURL == "" {
		pageURL = targetURL
	}
	return &model.PageText{
		URL:         pageURL,
		Title:       resp.Data.Title,
		Text:        resp.Data.Content,
		Headings:    MarkdownHeadings(resp.Data.Content),
		HasHeadings: true,
		Source:      "jina",
	}, nil
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// needsFallback reports whether a Jina response is blocked or empty and
// should be retried with a different scraper.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
