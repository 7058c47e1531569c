// Package browser renders pages in a headless Chrome controlled by Rod.
// Chrome is only launched on the first fetch, so runs that never need the
// browser engine never start it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/engine"
	"github.com/use-agent/maillage/models"
)

// Browser owns one Chrome process and a pool of reusable tabs.
// It is safe for concurrent use.
type Browser struct {
	cfg       config.BrowserConfig
	proxy     string
	userAgent string
	blocked   map[proto.NetworkResourceType]struct{}

	mu       sync.Mutex
	instance *rod.Browser
	pool     rod.Pool[rod.Page]
}

// New prepares a Browser. Nothing is launched until the first Fetch.
func New(cfg config.BrowserConfig, proxy, userAgent string) *Browser {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	cfg.MaxPages = maxPages
	return &Browser{
		cfg:       cfg,
		proxy:     proxy,
		userAgent: userAgent,
		blocked:   blockedSet(cfg.BlockedResourceTypes),
		pool:      rod.NewPagePool(maxPages),
	}
}

// connect launches and connects to Chrome once.
func (b *Browser) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.instance != nil {
		return b.instance, nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(b.cfg.NoSandbox)
	if b.cfg.Bin != "" {
		l = l.Bin(b.cfg.Bin)
	}
	if b.proxy != "" {
		l = l.Proxy(b.proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewError(models.ErrCodeFetch, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	instance := rod.New().ControlURL(controlURL)
	if err := instance.Connect(); err != nil {
		return nil, models.NewError(models.ErrCodeFetch, "failed to connect to browser", err)
	}
	b.instance = instance
	return instance, nil
}

// Fetch renders req.URL and returns its HTML. It matches engine.RodFetchFunc.
func (b *Browser) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	instance, err := b.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.pool.Get(func() (*rod.Page, error) {
		return instance.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewError(models.ErrCodeFetch, "failed to acquire page from pool", err)
	}
	// The blank navigation uses the page without the request context so it
	// still succeeds after a timeout.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("browser: failed to reset page", "error", navErr)
		}
		b.pool.Put(page)
	}()

	if b.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("browser: stealth injection failed", "error", evalErr)
		}
	}

	headers := map[string]string{}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
	}
	if b.userAgent != "" {
		_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent})
	}

	if router := blockResources(page, b.blocked); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	navCtx := ctx
	if b.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, b.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := page.Context(navCtx).Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("browser: DOM did not settle, using current DOM", "url", req.URL, "error", err)
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read page HTML")
	}

	status := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		status = res.Value.Int()
	}
	if status >= 400 {
		return nil, models.NewError(models.ErrCodeFetch, fmt.Sprintf("HTTP %d for %s", status, req.URL), nil)
	}

	finalURL := evalString(p, `() => window.location.href`)
	if _, err := url.Parse(finalURL); err != nil || finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      evalString(p, `() => document.title`),
		StatusCode: status,
		FinalURL:   finalURL,
	}, nil
}

// Close drains the page pool and kills Chrome if it was launched.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.instance == nil {
		return
	}
	b.pool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if err := b.instance.Close(); err != nil {
		slog.Warn("browser: close failed", "error", err)
	}
	b.instance = nil
	slog.Info("browser closed")
}

// evalString evaluates a JS expression and returns its string result, or ""
// on any error.
func evalString(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw Rod errors into coded errors.
func categorizeError(err error, msg string) *models.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewError(models.ErrCodeFetch, msg, err)
	}
}
