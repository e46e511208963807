// Package search looks up the ranked organic results for a query.
package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/model"
	"github.com/sells-group/gap-analysis/pkg/google"
	"github.com/sells-group/gap-analysis/pkg/jina"
)

// Provider returns ranked results for a query.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]model.RankedResult, error)
	Name() string
}

// Locale carries the market a lookup is run for.
type Locale struct {
	Country  string
	Language string
}

// LocaleOf derives the lookup market from a context's locale ("en-US") and
// region ("US").
func LocaleOf(locale, region string) Locale {
	l := Locale{Country: strings.ToUpper(region)}
	lang, country, _ := strings.Cut(locale, "-")
	l.Language = strings.ToLower(lang)
	if l.Country == "" {
		l.Country = strings.ToUpper(country)
	}
	return l
}

type localeKey struct{}

// WithLocale returns a context whose lookups run for l instead of the
// provider's default market.
func WithLocale(ctx context.Context, l Locale) context.Context {
	return context.WithValue(ctx, localeKey{}, l)
}

// LocaleFrom returns the market set on ctx, or def.
func LocaleFrom(ctx context.Context, def Locale) Locale {
	if l, ok := ctx.Value(localeKey{}).(Locale); ok && (l.Country != "" || l.Language != "") {
		return l
	}
	return def
}

// JinaProvider searches with Jina Search.
type JinaProvider struct {
	client jina.Client
	locale Locale
}

// NewJinaProvider creates a Jina-backed provider.
func NewJinaProvider(client jina.Client, locale Locale) *JinaProvider {
	return &JinaProvider{client: client, locale: locale}
}

// Name implements Provider.
func (p *JinaProvider) Name() string { return "jina" }

// Search implements Provider.
func (p *JinaProvider) Search(ctx context.Context, query string, count int) ([]model.RankedResult, error) {
	opts := []jina.SearchOption{jina.WithCount(count)}
	if l := LocaleFrom(ctx, p.locale); l.Country != "" || l.Language != "" {
		opts = append(opts, jina.WithLocale(l.Country, l.Language))
	}
	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "search: jina %q", query)
	}

	out := make([]model.RankedResult, 0, len(resp.Data))
	for _, r := range resp.Data {
		if r.URL == "" {
			continue
		}
		snippet := r.Description
		if snippet == "" {
			snippet = truncate(r.Content, 300)
		}
		out = append(out, model.RankedResult{
			Position: len(out) + 1,
			URL:      r.URL,
			Title:    r.Title,
			Snippet:  snippet,
		})
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

// GoogleProvider searches with Google Programmable Search. Counts above 10
// are capped by the API.
type GoogleProvider struct {
	client google.Client
	locale Locale
}

// NewGoogleProvider creates a Google-backed provider.
func NewGoogleProvider(client google.Client, locale Locale) *GoogleProvider {
	return &GoogleProvider{client: client, locale: locale}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Search implements Provider.
func (p *GoogleProvider) Search(ctx context.Context, query string, count int) ([]model.RankedResult, error) {
	l := LocaleFrom(ctx, p.locale)
	resp, err := p.client.Search(ctx, google.SearchRequest{
		Query:    query,
		Num:      count,
		Country:  l.Country,
		Language: l.Language,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "search: google %q", query)
	}

	out := make([]model.RankedResult, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Link == "" {
			continue
		}
		out = append(out, model.RankedResult{
			Position: len(out) + 1,
			URL:      it.Link,
			Title:    it.Title,
			Snippet:  it.Snippet,
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
