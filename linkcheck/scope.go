package linkcheck

import (
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Scope selects which anchors of a candidate page are considered.
type Scope string

const (
	// ScopePage scans every anchor of the document.
	ScopePage Scope = "page"
	// ScopeContent scans only anchors inside the readable main content,
	// ignoring menus, footers and sidebars.
	ScopeContent Scope = "content"
)

// minContentLength is the shortest main-content text accepted from
// readability; anything shorter falls back to the whole page.
const minContentLength = 50

// ParseScope validates a scope name. Empty means ScopePage.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopePage:
		return ScopePage, nil
	case ScopeContent:
		return ScopeContent, nil
	default:
		return "", fmt.Errorf("linkcheck: unknown scope %q", s)
	}
}

// narrow returns the markup to scan for the given scope. The content scope
// falls back to the full markup whenever readability cannot find a body.
func narrow(markup, pageURL string, scope Scope) string {
	if scope != ScopeContent {
		return markup
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return markup
	}
	article, err := readability.FromReader(strings.NewReader(markup), u)
	if err != nil || len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return markup
	}
	return article.Content
}
