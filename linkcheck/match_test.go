package linkcheck

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAnchor_NoAnchorToTarget(t *testing.T) {
	out, err := MatchAnchor(page(`<a href="/ailleurs">chaussures rouges</a>`), article1, target, keyword)
	require.NoError(t, err)
	assert.False(t, out.LinkExists)
	assert.False(t, out.AnchorOptimized)
}

func TestMatchAnchor_CaseInsensitivePath(t *testing.T) {
	out, err := MatchAnchor(page(`<a href="/fr/produits">Produits</a>`), "https://x.fr/blog/post", "https://x.fr/Fr/Produits", "produits")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
	assert.True(t, out.AnchorOptimized)
}

func TestMatchAnchor_CaseInsensitiveKeyword(t *testing.T) {
	out, err := MatchAnchor(page(`<a href="/produits">PRODUITS</a>`), "https://x.fr/blog/post", "https://x.fr/produits", "Produits")
	require.NoError(t, err)
	assert.True(t, out.AnchorOptimized)
}

func TestMatchAnchor_ResolvesAgainstCandidate(t *testing.T) {
	// Root-relative: resolves to /produits, not /blog/produits.
	out, err := MatchAnchor(page(`<a href="/produits">x</a>`), "https://x.fr/blog/post", "https://x.fr/produits", "x")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
	assert.Equal(t, "https://x.fr/produits", out.Href)

	// Document-relative: resolves under /blog/.
	out, err = MatchAnchor(page(`<a href="produits">x</a>`), "https://x.fr/blog/post", "https://x.fr/produits", "x")
	require.NoError(t, err)
	assert.False(t, out.LinkExists)

	out, err = MatchAnchor(page(`<a href="produits">x</a>`), "https://x.fr/blog/post", "https://x.fr/blog/produits", "x")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
}

func TestMatchAnchor_HrefWhitespace(t *testing.T) {
	hrefs := []string{
		" /produits/chaussures-rouges",
		"\n/produits/chaussures-rouges",
		"/produits/\nchaussures-rouges",
		"\t/produits/chaussures-\r\nrouges  ",
	}
	for _, href := range hrefs {
		out, err := MatchAnchor(page(`<a href="`+href+`">voir</a>`), article1, target, keyword)
		require.NoError(t, err)
		assert.True(t, out.LinkExists, "%q", href)
		assert.Equal(t, target, out.Href, "%q", href)
	}
}

func TestMatchAnchor_PercentEncodedPath(t *testing.T) {
	out, err := MatchAnchor(page(`<a href="/caf%C3%A9">café</a>`), "https://x.fr/blog/post", "https://x.fr/café", "café")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
	assert.True(t, out.AnchorOptimized)

	out, err = MatchAnchor(page(`<a href="/Caf%c3%a9">x</a>`), "https://x.fr/blog/post", "https://x.fr/caf%C3%A9", "café")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
}

func TestMatchAnchor_IgnoresHostQueryAndFragment(t *testing.T) {
	out, err := MatchAnchor(page(`<a href="http://cdn.other.fr/produits?ref=1#top">x</a>`), "https://x.fr/blog/post", "https://x.fr/produits", "x")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
}

func TestMatchAnchor_FirstMatchWins(t *testing.T) {
	markup := page(`
		<a href="/produits">voir</a>
		<a href="/produits">produits</a>`)
	out, err := MatchAnchor(markup, "https://x.fr/blog/post", "https://x.fr/produits", "produits")
	require.NoError(t, err)
	assert.True(t, out.LinkExists)
	assert.False(t, out.AnchorOptimized, "a later optimized anchor must not override the first match")
	assert.Equal(t, "voir", out.AnchorText)
}

func TestMatchAnchor_TrimsNestedText(t *testing.T) {
	out, err := MatchAnchor(page("<a href=\"/produits\">\n  <span>Chaussures</span> <b>rouges</b>\n</a>"), article1, "https://s.fr/produits", keyword)
	require.NoError(t, err)
	assert.True(t, out.AnchorOptimized)
	assert.Equal(t, "Chaussures rouges", out.AnchorText)
}

func TestMatchAnchor_SkipsAnchorsWithoutHref(t *testing.T) {
	out, err := MatchAnchor(page(`<a name="produits">produits</a>`), article1, "https://s.fr/blog/article-1", "produits")
	require.NoError(t, err)
	assert.False(t, out.LinkExists)
}

func TestMatchAnchor_InvalidCandidateURL(t *testing.T) {
	_, err := MatchAnchor(page(""), "http://[::1", target, keyword)
	assert.Error(t, err)
}

func TestMatchAnchor_Position(t *testing.T) {
	markup := page(`<footer><ul><li><a href="/produits">x</a></li></ul></footer>`)
	out, err := MatchAnchor(markup, "https://x.fr/a", "https://x.fr/produits", "y")
	require.NoError(t, err)
	assert.Equal(t, PositionFooter, out.Position)
}

func TestLinkPosition(t *testing.T) {
	cases := map[string]string{
		`<article><p><a id="l" href="/">x</a></p></article>`:            PositionContent,
		`<div class="site-header"><a id="l" href="/">x</a></div>`:       PositionHeader,
		`<ol class="breadcrumb"><li><a id="l" href="/">x</a></li></ol>`: PositionBreadcrumbs,
		`<aside><a id="l" href="/">x</a></aside>`:                       PositionSidebar,
		`<div role="navigation"><a id="l" href="/">x</a></div>`:         PositionNavigation,
		`<div><a id="l" href="/">x</a></div>`:                           PositionUnknown,
	}
	for markup, want := range cases {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page(markup)))
		require.NoError(t, err)
		assert.Equal(t, want, linkPosition(doc.Find("#l")), markup)
	}
}

func TestTargetPath(t *testing.T) {
	p, err := TargetPath("https://S.fr/Produits/Chaussures?x=1")
	require.NoError(t, err)
	assert.Equal(t, "/produits/chaussures", p)

	p, err = TargetPath("https://s.fr/Caf%C3%A9")
	require.NoError(t, err)
	assert.Equal(t, "/café", p)
}

func TestCleanHref(t *testing.T) {
	assert.Equal(t, "/a/b", cleanHref(" \x00/a/b\x1f "))
	assert.Equal(t, "/a/b", cleanHref("/a/\r\n\tb"))
	assert.Equal(t, "/a b", cleanHref("/a b"))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopePage, s)

	s, err = ParseScope("content")
	require.NoError(t, err)
	assert.Equal(t, ScopeContent, s)

	_, err = ParseScope("body")
	assert.Error(t, err)
}

func TestNarrow_ContentScopeFallsBackOnShortPages(t *testing.T) {
	markup := page(`<nav><a href="/produits">x</a></nav>`)
	assert.Equal(t, markup, narrow(markup, "https://x.fr/a", ScopeContent))
	assert.Equal(t, markup, narrow(markup, "https://x.fr/a", ScopePage))
}
