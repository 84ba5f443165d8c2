// Package chromedp_page drives the live search results page through a
// headless browser. It is the only component that touches the third-party
// surface; everything above it works on markup snapshots.
package chromedp_page

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Known layouts of the results pane, tried in order inside the page.
const paneSelectors = `'div[role="feed"]', 'div[data-testid="results-list"]', 'div.results-pane'`

const (
	landmarkJS = `(function() {
		return document.querySelector(` + paneSelectors + `) !== null;
	})()`

	heightJS = `(function() {
		var el = document.querySelector(` + paneSelectors + `) || document.body;
		return el.scrollHeight;
	})()`

	loadMoreJS = `(function() {
		var el = document.querySelector(` + paneSelectors + `) || document.body;
		el.scrollTo(0, el.scrollHeight);
		return true;
	})()`

	listingsJS = `(function() {
		var el = document.querySelector(` + paneSelectors + `) || document.body;
		return el.outerHTML;
	})()`

	detailJS = `(function() {
		var el = document.querySelector('div[role="main"]') || document.body;
		return el.outerHTML;
	})()`
)

// Config bounds one browser session.
type Config struct {
	SearchBaseURL string        // e.g. https://www.google.com/maps/search/
	ActionTimeout time.Duration // per browser action
	NavTimeout    time.Duration // initial navigation
}

// Page implements extract.PageSource over a dedicated headless browser
// session. One Page serves exactly one extraction session.
type Page struct {
	cfg         Config
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
}

// New creates an unopened page session.
func New(cfg Config) *Page {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 15 * time.Second
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 60 * time.Second
	}
	return &Page{cfg: cfg}
}

// Open starts the browser and navigates to the search results for
// query/location. Heavy assets are blocked; only the DOM matters here.
func (p *Page) Open(ctx context.Context, query, location string) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserStop = browserStop

	navCtx, cancel := context.WithTimeout(browserCtx, p.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetBlockedURLs([]string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.mp4", "*.woff", "*.woff2"}),
		chromedp.Navigate(p.searchURL(query, location)),
	)
	if err != nil {
		return fmt.Errorf("navigating to results: %w", err)
	}
	return nil
}

// LandmarkPresent reports whether a known results pane exists yet.
func (p *Page) LandmarkPresent(ctx context.Context) (bool, error) {
	var present bool
	if err := p.run(ctx, chromedp.Evaluate(landmarkJS, &present)); err != nil {
		return false, err
	}
	return present, nil
}

// ContentHeight measures the results pane scroll height.
func (p *Page) ContentHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := p.run(ctx, chromedp.Evaluate(heightJS, &height)); err != nil {
		return 0, err
	}
	return height, nil
}

// LoadMore scrolls the results pane to its bottom, triggering the page's
// incremental loading.
func (p *Page) LoadMore(ctx context.Context) error {
	var ok bool
	return p.run(ctx, chromedp.Evaluate(loadMoreJS, &ok))
}

// ListingsHTML snapshots the current results pane markup.
func (p *Page) ListingsHTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.Evaluate(listingsJS, &html)); err != nil {
		return "", err
	}
	return html, nil
}

// DetailHTML navigates to one listing's detail view and snapshots it.
func (p *Page) DetailHTML(ctx context.Context, externalID string) (string, error) {
	var html string
	err := p.run(ctx,
		chromedp.Navigate(p.detailURL(externalID)),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(detailJS, &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

// Close tears down the browser session.
func (p *Page) Close(ctx context.Context) error {
	if p.browserStop != nil {
		p.browserStop()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	return nil
}

func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.browserCtx == nil {
		return fmt.Errorf("page not opened")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	actionCtx, cancel := context.WithTimeout(p.browserCtx, p.cfg.ActionTimeout)
	defer cancel()
	return chromedp.Run(actionCtx, actions...)
}

func (p *Page) searchURL(query, location string) string {
	terms := strings.TrimSpace(query + " " + location)
	return p.cfg.SearchBaseURL + url.PathEscape(terms)
}

func (p *Page) detailURL(externalID string) string {
	base := strings.Replace(p.cfg.SearchBaseURL, "/search/", "/place/", 1)
	return base + url.PathEscape(externalID)
}
