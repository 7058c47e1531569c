// Package search runs one site-restricted query per keyword and returns the
// ranked result URLs.
package search

import (
	"context"

	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/engine"
	"github.com/use-agent/maillage/models"
)

// Fetcher issues site-restricted searches. It never sleeps: pacing between
// keywords is the caller's job.
type Fetcher struct {
	cfg       config.SearchConfig
	engine    engine.Engine
	extractor Extractor
}

// NewFetcher builds a Fetcher from cfg, fetching results pages through eng.
func NewFetcher(cfg config.SearchConfig, eng engine.Engine) (*Fetcher, error) {
	ext, err := NewExtractor(cfg.Extraction, cfg.ResultSelector, cfg.Site)
	if err != nil {
		return nil, err
	}
	return &Fetcher{cfg: cfg, engine: eng, extractor: ext}, nil
}

// WithExtractor returns a copy of f using ext.
func (f *Fetcher) WithExtractor(ext Extractor) *Fetcher {
	c := *f
	c.extractor = ext
	return &c
}

// Site returns the site every query is restricted to.
func (f *Fetcher) Site() string { return f.cfg.Site }

// Fetch runs the search for keyword. Every failure is reported in the
// outcome's Err with no URLs.
func (f *Fetcher) Fetch(ctx context.Context, keyword string) models.SearchOutcome {
	out := models.SearchOutcome{
		Keyword: keyword,
		Query:   BuildQuery(keyword, f.cfg.Site),
	}

	req := &engine.FetchRequest{
		URL:     SearchURL(f.cfg, keyword),
		Timeout: f.cfg.Timeout,
	}
	if al := AcceptLanguage(f.cfg.Language, f.cfg.Country); al != "" {
		req.Headers = map[string]string{"Accept-Language": al}
	}

	res, err := f.engine.Fetch(ctx, req)
	if err != nil {
		out.Err = models.NewError(models.ErrCodeSearch, "search request failed", err)
		return out
	}

	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = req.URL
	}
	links, err := f.extractor.Extract(res.HTML, pageURL)
	if err != nil {
		out.Err = models.NewError(models.ErrCodeSearch, "could not read results page", err)
		return out
	}
	out.URLs = links
	return out
}
