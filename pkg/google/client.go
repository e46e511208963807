// Package google is a client for the Google Custom Search, Knowledge Graph
// Search and Cloud Natural Language APIs. All three authenticate with an
// API key.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gap-analysis/internal/resilience"
)

const (
	defaultSearchURL   = "https://www.googleapis.com/customsearch/v1"
	defaultKGURL       = "https://kgsearch.googleapis.com/v1/entities:search"
	defaultLanguageURL = "https://language.googleapis.com/v1/documents:analyzeEntities"
)

// Client performs Google API operations.
type Client interface {
	// Search runs a Programmable Search Engine query.
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
	// LookupEntity queries the Knowledge Graph for an entity name.
	LookupEntity(ctx context.Context, query, language string, limit int) (*EntitySearchResponse, error)
	// AnalyzeEntities runs entity analysis over plain text.
	AnalyzeEntities(ctx context.Context, text, language string) (*AnalyzeEntitiesResponse, error)
}

// SearchRequest is a Custom Search query. Num is capped at 10 by the API.
type SearchRequest struct {
	Query    string
	Num      int
	Country  string
	Language string
}

// SearchResponse is the Custom Search result envelope.
type SearchResponse struct {
	Items             []SearchItem      `json:"items"`
	SearchInformation SearchInformation `json:"searchInformation"`
}

// SearchItem is one result.
type SearchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchInformation carries the estimated total result count, which the API
// returns as a string.
type SearchInformation struct {
	TotalResults string `json:"totalResults"`
}

// Total parses TotalResults, returning 0 when absent.
func (s SearchInformation) Total() int64 {
	n, err := strconv.ParseInt(s.TotalResults, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// EntitySearchResponse is the Knowledge Graph result list.
type EntitySearchResponse struct {
	ItemListElement []EntityElement `json:"itemListElement"`
}

// EntityElement is one scored entity.
type EntityElement struct {
	Result      KGEntity `json:"result"`
	ResultScore float64  `json:"resultScore"`
}

// KGEntity is a Knowledge Graph entity.
type KGEntity struct {
	ID                  string           `json:"@id"`
	Name                string           `json:"name"`
	Types               []string         `json:"@type"`
	Description         string           `json:"description"`
	DetailedDescription *DetailedSummary `json:"detailedDescription,omitempty"`
	URL                 string           `json:"url"`
}

// DetailedSummary is the article body of an entity.
type DetailedSummary struct {
	ArticleBody string `json:"articleBody"`
	URL         string `json:"url"`
}

// AnalyzeEntitiesResponse is the Natural Language entity analysis result.
type AnalyzeEntitiesResponse struct {
	Entities []NLEntity `json:"entities"`
	Language string     `json:"language"`
}

// NLEntity is one entity with its salience in the document.
type NLEntity struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Salience float64   `json:"salience"`
	Mentions []Mention `json:"mentions"`
}

// Mention is one occurrence of an entity.
type Mention struct {
	Type string `json:"type"`
}

// Option configures the client.
type Option func(*httpClient)

// WithSearchURL overrides the Custom Search endpoint.
func WithSearchURL(u string) Option {
	return func(c *httpClient) { c.searchURL = u }
}

// WithKnowledgeGraphURL overrides the Knowledge Graph endpoint.
func WithKnowledgeGraphURL(u string) Option {
	return func(c *httpClient) { c.kgURL = u }
}

// WithLanguageURL overrides the Natural Language endpoint.
func WithLanguageURL(u string) Option {
	return func(c *httpClient) { c.languageURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.retry = p }
}

type httpClient struct {
	apiKey      string
	engineID    string
	searchURL   string
	kgURL       string
	languageURL string
	http        *http.Client
	retry       resilience.Policy
}

// NewClient creates a Google client. engineID is the Programmable Search
// Engine id (cx) and may be empty when Search is not used.
func NewClient(apiKey, engineID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		engineID:    engineID,
		searchURL:   defaultSearchURL,
		kgURL:       defaultKGURL,
		languageURL: defaultLanguageURL,
		http:        &http.Client{Timeout: 15 * time.Second},
		retry:       resilience.NewPolicy(2, 500, 2000),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	if c.engineID == "" {
		return nil, eris.New("google: search engine id not configured")
	}
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", sr.Query)
	if sr.Num > 0 {
		q.Set("num", strconv.Itoa(min(sr.Num, 10)))
	}
	if sr.Country != "" {
		q.Set("gl", sr.Country)
	}
	if sr.Language != "" {
		q.Set("hl", sr.Language)
	}

	var out SearchResponse
	if err := c.do(ctx, http.MethodGet, c.searchURL+"?"+q.Encode(), nil, &out); err != nil {
		return nil, eris.Wrap(err, "google: custom search")
	}
	return &out, nil
}

func (c *httpClient) LookupEntity(ctx context.Context, query, language string, limit int) (*EntitySearchResponse, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("query", query)
	if language != "" {
		q.Set("languages", language)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out EntitySearchResponse
	if err := c.do(ctx, http.MethodGet, c.kgURL+"?"+q.Encode(), nil, &out); err != nil {
		return nil, eris.Wrap(err, "google: knowledge graph")
	}
	return &out, nil
}

type analyzeRequest struct {
	Document     document `json:"document"`
	EncodingType string   `json:"encodingType"`
}

type document struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

func (c *httpClient) AnalyzeEntities(ctx context.Context, text, language string) (*AnalyzeEntitiesResponse, error) {
	body, err := json.Marshal(analyzeRequest{
		Document:     document{Type: "PLAIN_TEXT", Content: text, Language: language},
		EncodingType: "UTF8",
	})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal analyze request")
	}

	var out AnalyzeEntitiesResponse
	if err := c.do(ctx, http.MethodPost, c.languageURL+"?key="+url.QueryEscape(c.apiKey), body, &out); err != nil {
		return nil, eris.Wrap(err, "google: analyze entities")
	}
	return &out, nil
}

func (c *httpClient) do(ctx context.Context, method, reqURL string, body []byte, out any) error {
	return resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, rd)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.Transient(eris.Wrap(err, "send request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return eris.Wrap(err, "read response")
		}
		if resp.StatusCode != http.StatusOK {
			err := eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
			if resilience.RetryableStatus(resp.StatusCode) {
				return resilience.Transient(err, resp.StatusCode)
			}
			return err
		}
		return eris.Wrap(json.Unmarshal(data, out), "unmarshal response")
	})
}
