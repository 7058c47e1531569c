package linkcheck

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link positions reported for an existing link.
const (
	PositionContent     = "content"
	PositionNavigation  = "navigation"
	PositionHeader      = "header"
	PositionFooter      = "footer"
	PositionSidebar     = "sidebar"
	PositionBreadcrumbs = "breadcrumbs"
	PositionPagination  = "pagination"
	PositionUnknown     = "unknown"
)

// linkPosition classifies where an anchor sits by walking its ancestors.
// The nearest ancestor carrying a recognisable tag, role, class or id wins.
func linkPosition(a *goquery.Selection) string {
	for cur := a.Parent(); cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "body" || name == "html" {
			break
		}
		role, _ := cur.Attr("role")
		class, _ := cur.Attr("class")
		id, _ := cur.Attr("id")
		attrs := strings.ToLower(role + " " + class + " " + id)

		switch {
		case name == "main" || name == "article" || role == "main" || role == "article":
			return PositionContent
		case strings.Contains(attrs, "breadcrumb"):
			return PositionBreadcrumbs
		case strings.Contains(attrs, "pagination") || strings.Contains(attrs, "pager"):
			return PositionPagination
		case name == "nav" || role == "navigation" || strings.Contains(attrs, "nav") || strings.Contains(attrs, "menu"):
			return PositionNavigation
		case name == "header" || role == "banner" || strings.Contains(attrs, "header") || strings.Contains(attrs, "masthead"):
			return PositionHeader
		case name == "footer" || role == "contentinfo" || strings.Contains(attrs, "footer"):
			return PositionFooter
		case name == "aside" || role == "complementary" || strings.Contains(attrs, "sidebar") || strings.Contains(attrs, "widget"):
			return PositionSidebar
		case strings.Contains(attrs, "content") || strings.Contains(attrs, "post") || strings.Contains(attrs, "entry"):
			return PositionContent
		}
	}
	return PositionUnknown
}
