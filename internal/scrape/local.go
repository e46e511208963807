package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"

	"github.com/sells-group/gap-analysis/internal/model"
)

// DefaultUserAgent identifies the crawler to sites and robots.txt.
const DefaultUserAgent = "Mozilla/5.0 (compatible; GapAnalysisBot/1.0)"

const maxBodyBytes = 2 << 20

// LocalScraper fetches HTML via net/http, detects blocks, and extracts text
// and headings with goquery. Free, no API calls.
type LocalScraper struct {
	client    *http.Client
	userAgent string
}

// NewLocalScraper creates a LocalScraper. timeout defaults to 15s.
func NewLocalScraper(userAgent string, timeout time.Duration) *LocalScraper {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LocalScraper{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches a URL, detects blocks and extracts readable text.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*model.PageText, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: create request")
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("local_http: status %d", resp.StatusCode)
	}
	if len(body) < 100 {
		return nil, eris.New("local_http: empty page")
	}

	r, err := charset.NewReader(bytes.NewReader(body), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, eris.Wrap(err, "local_http: decode charset")
	}
	title, text, headings, err := parseHTML(r)
	if err != nil {
		return nil, err
	}

	return &model.PageText{
		URL:         resp.Request.URL.String(),
		Title:       title,
		Text:        text,
		Headings:    headings,
		HasHeadings: true,
		Source:      "local_http",
	}, nil
}
