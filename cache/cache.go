// Package cache keeps recently fetched candidate pages in memory so that a
// page ranking for several keywords is downloaded once per TTL.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Page is a cached page body with the URL it was finally served from.
type Page struct {
	HTML      string
	FinalURL  string
	FetchedAt time.Time
}

// Pages is a bounded, TTL-limited LRU of page bodies keyed by request URL.
// Only successful fetches are stored. A nil *Pages is a valid, always-empty
// cache. It is safe for concurrent use.
type Pages struct {
	lru *expirable.LRU[string, Page]
}

// New creates a page cache. It returns nil (caching disabled) when
// maxEntries <= 0.
func New(maxEntries int, ttl time.Duration) *Pages {
	if maxEntries <= 0 {
		return nil
	}
	return &Pages{lru: expirable.NewLRU[string, Page](maxEntries, nil, ttl)}
}

// Get returns the cached page for url.
func (c *Pages) Get(url string) (Page, bool) {
	if c == nil {
		return Page{}, false
	}
	return c.lru.Get(url)
}

// Set stores a successfully fetched page.
func (c *Pages) Set(url string, p Page) {
	if c == nil {
		return
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now()
	}
	c.lru.Add(url, p)
}

// Len returns the number of live entries.
func (c *Pages) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Pages) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
