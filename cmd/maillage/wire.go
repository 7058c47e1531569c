package main

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/maillage/browser"
	"github.com/use-agent/maillage/cache"
	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/engine"
	"github.com/use-agent/maillage/linkcheck"
	"github.com/use-agent/maillage/metrics"
	"github.com/use-agent/maillage/runner"
	"github.com/use-agent/maillage/search"
)

// services are the long-lived components built from one configuration.
type services struct {
	cfg        *config.Config
	engine     engine.Engine
	browser    *browser.Browser
	pages      *cache.Pages
	classifier *linkcheck.Classifier
}

// newServices wires the fetch engine, the page cache and the classifier.
// The browser is only created when the configured engine needs it, and
// Chrome itself is only launched on the first browser fetch.
func newServices(cfg *config.Config) (*services, error) {
	s := &services{cfg: cfg}

	httpEngine := engine.NewHTTPEngine(cfg.Fetch.UserAgent, cfg.Fetch.Proxy)
	switch cfg.Fetch.Engine {
	case "browser":
		s.browser = browser.New(cfg.Browser, cfg.Fetch.Proxy, cfg.Fetch.UserAgent)
		s.engine = engine.NewRodEngine(s.browser.Fetch)
	case "auto":
		s.browser = browser.New(cfg.Browser, cfg.Fetch.Proxy, cfg.Fetch.UserAgent)
		s.engine = engine.NewDispatcher(
			[]engine.Engine{httpEngine, engine.NewRodEngine(s.browser.Fetch)},
			engine.NewDomainMemory(cfg.Fetch.DomainMemoryTTL),
		)
	default:
		s.engine = httpEngine
	}

	scope, err := linkcheck.ParseScope(cfg.LinkCheck.Scope)
	if err != nil {
		return nil, err
	}

	s.pages = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	metrics.RegisterCacheSize(s.pages.Len)
	s.classifier = linkcheck.New(s.engine, s.pages, cfg.Fetch.PageTimeout, scope)
	if al := search.AcceptLanguage(cfg.Search.Language, cfg.Search.Country); al != "" {
		s.classifier.WithHeaders(map[string]string{"Accept-Language": al})
	}

	slog.Debug("services ready",
		"engine", s.engine.Name(),
		"scope", scope,
		"cache_entries", cfg.Cache.MaxEntries,
	)
	return s, nil
}

// newRunner builds a Runner restricted to site.
func (s *services) newRunner(site string, logger *slog.Logger, onProgress func(runner.Progress)) (*runner.Runner, error) {
	searchCfg := s.cfg.Search
	searchCfg.Site = site
	fetcher, err := search.NewFetcher(searchCfg, s.engine)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return runner.New(fetcher, s.classifier, runner.Options{
		Delay:      s.cfg.Search.Delay,
		Logger:     logger,
		OnProgress: onProgress,
	}), nil
}

func (s *services) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
}
