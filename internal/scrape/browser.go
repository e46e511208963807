package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gap-analysis/internal/model"
)

// BrowserScraper renders pages in headless Chrome for sites whose content
// only appears after JavaScript runs. The browser is launched on first use.
type BrowserScraper struct {
	timeout    time.Duration
	controlURL string

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewBrowserScraper creates a BrowserScraper. An empty controlURL launches a
// local headless browser.
func NewBrowserScraper(controlURL string, timeout time.Duration) *BrowserScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserScraper{controlURL: controlURL, timeout: timeout}
}

func (b *BrowserScraper) Name() string { return "browser" }

// Supports returns true for http(s) URLs.
func (b *BrowserScraper) Supports(targetURL string) bool {
	return strings.HasPrefix(targetURL, "http://") || strings.HasPrefix(targetURL, "https://")
}

func (b *BrowserScraper) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	controlURL := b.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, eris.Wrap(err, "browser: launch")
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "browser: connect")
	}
	b.browser = browser
	zap.L().Info("scrape: headless browser connected")
	return browser, nil
}

// Scrape loads a URL, waits for the page to settle, and extracts the
// rendered DOM.
func (b *BrowserScraper) Scrape(ctx context.Context, targetURL string) (*model.PageText, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: targetURL})
	if err != nil {
		return nil, eris.Wrapf(err, "browser: open %s", targetURL)
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return nil, eris.Wrapf(err, "browser: wait load %s", targetURL)
	}
	_ = page.WaitIdle(2 * time.Second)

	raw, err := page.HTML()
	if err != nil {
		return nil, eris.Wrapf(err, "browser: read html %s", targetURL)
	}

	title, text, headings, err := parseHTML(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}
	pageURL := targetURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		pageURL = info.URL
	}
	return &model.PageText{
		URL:         pageURL,
		Title:       title,
		Text:        text,
		Headings:    headings,
		HasHeadings: true,
		Source:      "browser",
	}, nil
}

// Close shuts down the browser if one was started.
func (b *BrowserScraper) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return eris.Wrap(err, "browser: close")
}
