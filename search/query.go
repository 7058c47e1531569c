package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/use-agent/maillage/config"
)

// BuildQuery combines a keyword with a site restriction clause.
func BuildQuery(keyword, site string) string {
	if site == "" {
		return keyword
	}
	return keyword + " site:" + site
}

// SearchURL builds the results-page URL for one keyword. Language and
// country are omitted when empty.
func SearchURL(cfg config.SearchConfig, keyword string) string {
	params := url.Values{}
	params.Set("q", BuildQuery(keyword, cfg.Site))
	params.Set("num", strconv.Itoa(cfg.NumResults))
	if cfg.Language != "" {
		params.Set("hl", cfg.Language)
	}
	if cfg.Country != "" {
		params.Set("gl", cfg.Country)
	}
	return strings.TrimRight(cfg.BaseURL, "/") + "/search?" + params.Encode()
}

// AcceptLanguage derives an Accept-Language header from the locale
// parameters, e.g. "fr-FR,fr;q=0.9".
func AcceptLanguage(language, country string) string {
	if language == "" {
		return ""
	}
	if country == "" {
		return language
	}
	return language + "-" + strings.ToUpper(country) + "," + language + ";q=0.9"
}
