package linkcheck

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/maillage/models"
)

// TargetPath is the comparison key of a target page: its lower-cased path.
// Scheme, host, query and fragment are ignored. The path is percent-decoded,
// so /caf%C3%A9 and /café name the same page.
func TargetPath(targetURL string) (string, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "", fmt.Errorf("linkcheck: invalid target URL %q: %w", targetURL, err)
	}
	return strings.ToLower(u.Path), nil
}

// MatchAnchor scans the anchors of a candidate page in document order for a
// link to targetURL. Each href is cleaned of surrounding whitespace and
// embedded tabs and newlines, then resolved against candidateURL; its
// decoded, lower-cased path is compared with TargetPath(targetURL). The scan stops at the
// first match, whose trimmed, lower-cased text is compared with the
// lower-cased keyword.
//
// MatchAnchor does no I/O. A non-nil error means the inputs could not be
// parsed; the returned outcome then reports no link.
func MatchAnchor(markup, candidateURL, targetURL, keyword string) (models.LinkCheckOutcome, error) {
	base, err := url.Parse(candidateURL)
	if err != nil {
		return models.LinkCheckOutcome{}, fmt.Errorf("linkcheck: invalid candidate URL %q: %w", candidateURL, err)
	}
	targetPath, err := TargetPath(targetURL)
	if err != nil {
		return models.LinkCheckOutcome{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return models.LinkCheckOutcome{}, fmt.Errorf("linkcheck: parse %s: %w", candidateURL, err)
	}

	keywordLower := strings.ToLower(keyword)
	var out models.LinkCheckOutcome
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		resolved, err := base.Parse(cleanHref(href))
		if err != nil {
			return true
		}
		if strings.ToLower(resolved.Path) != targetPath {
			return true
		}

		text := strings.TrimSpace(s.Text())
		out = models.LinkCheckOutcome{
			LinkExists:      true,
			AnchorOptimized: strings.ToLower(text) == keywordLower,
			AnchorText:      text,
			Href:            resolved.String(),
			Position:        linkPosition(s),
		}
		return false
	})
	return out, nil
}

// cleanHref strips what browsers ignore in an href before parsing it:
// leading and trailing control characters and spaces, and every tab, CR
// and LF.
func cleanHref(href string) string {
	href = strings.TrimFunc(href, func(r rune) bool { return r <= ' ' })
	return hrefNewlines.Replace(href)
}

var hrefNewlines = strings.NewReplacer("\t", "", "\r", "", "\n", "")
