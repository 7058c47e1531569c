package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Extractor reads the ordered organic result links out of a results page.
// Result markup differs between engines, locales and over time, so the rule
// is swappable without touching the classifier.
type Extractor interface {
	Extract(markup, pageURL string) ([]string, error)
}

// Extraction policy names accepted by NewExtractor.
const (
	PolicyContainer = "container"
	PolicyRedirect  = "redirect"
	PolicyPrefix    = "prefix"
)

// NewExtractor returns the extractor for policy. selector is used by the
// container policy, site by the prefix policy.
func NewExtractor(policy, selector, site string) (Extractor, error) {
	switch policy {
	case PolicyContainer, "":
		return NewContainerExtractor(selector)
	case PolicyRedirect:
		return RedirectExtractor{}, nil
	case PolicyPrefix:
		return NewPrefixExtractor(site)
	default:
		return nil, fmt.Errorf("search: unknown extraction policy %q", policy)
	}
}

var anchorSel = cascadia.MustCompile("a[href]")

// ContainerExtractor takes the first a[href] inside every element matching
// a result-container selector, href verbatim.
type ContainerExtractor struct {
	container cascadia.Sel
}

// NewContainerExtractor compiles selector (e.g. "div.tF2Cxc").
func NewContainerExtractor(selector string) (*ContainerExtractor, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("search: invalid result selector %q: %w", selector, err)
	}
	return &ContainerExtractor{container: sel}, nil
}

func (e *ContainerExtractor) Extract(markup, _ string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("search: parse results page: %w", err)
	}

	var links []string
	for _, block := range cascadia.QueryAll(doc, e.container) {
		a := cascadia.Query(block, anchorSel)
		if a == nil {
			continue
		}
		if href := attr(a, "href"); href != "" {
			links = append(links, href)
		}
	}
	return links, nil
}

// RedirectExtractor keeps every anchor whose href is a "/url?q=<target>"
// redirect and returns the decoded target.
type RedirectExtractor struct{}

func (RedirectExtractor) Extract(markup, _ string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("search: parse results page: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(href, "/url?q=") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		target := u.Query().Get("q")
		if isAbsoluteHTTP(target) {
			links = append(links, target)
		}
	})
	return links, nil
}

// PrefixExtractor keeps every anchor that, resolved against the results
// page, points into the site: same host and a path under the site's path.
type PrefixExtractor struct {
	host string
	path string
}

// NewPrefixExtractor parses site, which may omit its scheme ("webloom.fr/blog").
func NewPrefixExtractor(site string) (*PrefixExtractor, error) {
	if site == "" {
		return nil, fmt.Errorf("search: prefix extraction needs a site")
	}
	raw := site
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("search: invalid site %q", site)
	}
	return &PrefixExtractor{
		host: strings.ToLower(u.Hostname()),
		path: strings.ToLower(u.Path),
	}, nil
}

func (e *PrefixExtractor) Extract(markup, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("search: invalid results page URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("search: parse results page: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, err := base.Parse(href)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		if !sameHost(resolved.Hostname(), e.host) {
			return
		}
		if strings.HasPrefix(strings.ToLower(resolved.Path), e.path) {
			links = append(links, resolved.String())
		}
	})
	return links, nil
}

// sameHost compares hosts case-insensitively, ignoring a leading "www.".
func sameHost(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
