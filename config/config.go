package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	LinkCheck LinkCheckConfig `mapstructure:"linkcheck"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Output    OutputConfig    `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
}

// SearchConfig controls the site-restricted search queries.
type SearchConfig struct {
	// Site is the website every query is restricted to (e.g. "webloom.fr").
	Site string `mapstructure:"site"`

	// BaseURL is the search engine origin; the locale variant of the
	// engine is selected here (e.g. "https://www.google.fr").
	BaseURL string `mapstructure:"base_url"` // default: "https://www.google.com"

	// Language and Country are sent as hl and gl. Empty values are omitted.
	Language string `mapstructure:"language"` // default: "fr"
	Country  string `mapstructure:"country"`  // default: "fr"

	// NumResults is the result-count hint sent as num.
	NumResults int `mapstructure:"num_results"` // default: 10

	// Extraction selects how result links are read from the results page:
	// "container", "redirect" or "prefix".
	Extraction string `mapstructure:"extraction"` // default: "container"

	// ResultSelector is the CSS selector of one organic result container
	// (container extraction only).
	ResultSelector string `mapstructure:"result_selector"` // default: "div.tF2Cxc"

	// Delay is the pause after every search before the next keyword.
	Delay time.Duration `mapstructure:"delay"` // default: 2s

	// Timeout bounds a single search request.
	Timeout time.Duration `mapstructure:"timeout"` // default: 15s
}

// FetchConfig controls how candidate pages and result pages are fetched.
type FetchConfig struct {
	// Engine is "http", "browser" or "auto" (http first, then browser).
	Engine string `mapstructure:"engine"` // default: "http"

	// PageTimeout bounds a single candidate page fetch.
	PageTimeout time.Duration `mapstructure:"page_timeout"` // default: 10s

	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`

	// Proxy is an optional http(s) or socks5 proxy URL.
	Proxy string `mapstructure:"proxy"`

	// DomainMemoryTTL is how long the dispatcher remembers which engine
	// worked for a domain.
	DomainMemoryTTL time.Duration `mapstructure:"domain_memory_ttl"` // default: 24h
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `mapstructure:"headless"` // default: true

	// MaxPages is the page pool capacity.
	MaxPages int `mapstructure:"max_pages"` // default: 2

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `mapstructure:"no_sandbox"`

	// Bin overrides the Chromium binary path.
	Bin string `mapstructure:"bin"`

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool `mapstructure:"stealth"` // default: true

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"` // default: 15s

	// BlockedResourceTypes lists resource types that are never loaded.
	BlockedResourceTypes []string `mapstructure:"blocked_resource_types"`
}

// LinkCheckConfig controls anchor scanning on candidate pages.
type LinkCheckConfig struct {
	// Scope is "page" (every anchor of the document) or "content"
	// (anchors inside the readable main content only).
	Scope string `mapstructure:"scope"` // default: "page"
}

// CacheConfig controls the candidate page cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached pages; <= 0 disables caching.
	MaxEntries int `mapstructure:"max_entries"` // default: 1000

	// TTL is how long a fetched page is reused.
	TTL time.Duration `mapstructure:"ttl"` // default: 1h
}

// OutputConfig controls the exported table.
type OutputConfig struct {
	Path      string `mapstructure:"path"`      // default: "opportunites_maillage.csv"
	Format    string `mapstructure:"format"`    // "csv", "json" or "markdown"; default: "csv"
	Locale    string `mapstructure:"locale"`    // "en" or "fr"; default: "en"
	Delimiter string `mapstructure:"delimiter"` // default: ","
	BOM       bool   `mapstructure:"bom"`       // default: true
	Colors    bool   `mapstructure:"colors"`    // default: true
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // default: "info"
	Format string `mapstructure:"format"` // "json" or "text"; default: "text"

	// File is the diagnostic log, truncated at the start of every run.
	// Empty disables it.
	File string `mapstructure:"file"` // default: "maillage_debug.log"
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host string `mapstructure:"host"` // default: "0.0.0.0"
	Port int    `mapstructure:"port"` // default: 8080
	Mode string `mapstructure:"mode"` // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `mapstructure:"enabled"` // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string `mapstructure:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting of the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // default: 5
	Burst             int     `mapstructure:"burst"`               // default: 10
}

// WebhookConfig controls run completion notifications.
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// DefaultUserAgent is a realistic desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from defaults, an optional YAML file and
// MAILLAGE_* environment variables, in increasing order of precedence.
// cfgFile may be empty, in which case maillage.yaml is searched for in the
// working directory and in $HOME/.config/maillage.
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.New(), cfgFile)
}

// LoadWith is Load on a caller-supplied viper instance, so that command-line
// flags bound to v take precedence over everything else.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("maillage")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/maillage")
	}

	v.SetEnvPrefix("MAILLAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.site", "")
	v.SetDefault("search.base_url", "https://www.google.com")
	v.SetDefault("search.language", "fr")
	v.SetDefault("search.country", "fr")
	v.SetDefault("search.num_results", 10)
	v.SetDefault("search.extraction", "container")
	v.SetDefault("search.result_selector", "div.tF2Cxc")
	v.SetDefault("search.delay", 2*time.Second)
	v.SetDefault("search.timeout", 15*time.Second)

	v.SetDefault("fetch.engine", "http")
	v.SetDefault("fetch.page_timeout", 10*time.Second)
	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.proxy", "")
	v.SetDefault("fetch.domain_memory_ttl", 24*time.Hour)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.max_pages", 2)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.navigation_timeout", 15*time.Second)
	v.SetDefault("browser.blocked_resource_types", []string{"Image", "Stylesheet", "Font", "Media"})

	v.SetDefault("linkcheck.scope", "page")

	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("output.path", "opportunites_maillage.csv")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.locale", "en")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("output.bom", true)
	v.SetDefault("output.colors", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "maillage_debug.log")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	switch c.Search.Extraction {
	case "container", "redirect", "prefix":
	default:
		return fmt.Errorf("config: search.extraction %q: must be container, redirect or prefix", c.Search.Extraction)
	}
	if c.Search.Extraction == "container" && strings.TrimSpace(c.Search.ResultSelector) == "" {
		return errors.New("config: search.result_selector is required for container extraction")
	}
	if _, err := url.ParseRequestURI(c.Search.BaseURL); err != nil {
		return fmt.Errorf("config: search.base_url: %w", err)
	}
	if c.Search.NumResults <= 0 {
		return fmt.Errorf("config: search.num_results must be positive, got %d", c.Search.NumResults)
	}
	if c.Search.Delay < 0 {
		return fmt.Errorf("config: search.delay must not be negative, got %s", c.Search.Delay)
	}
	if c.Search.Timeout <= 0 || c.Fetch.PageTimeout <= 0 {
		return errors.New("config: search.timeout and fetch.page_timeout must be positive")
	}
	switch c.Fetch.Engine {
	case "http", "browser", "auto":
	default:
		return fmt.Errorf("config: fetch.engine %q: must be http, browser or auto", c.Fetch.Engine)
	}
	switch c.LinkCheck.Scope {
	case "page", "content":
	default:
		return fmt.Errorf("config: linkcheck.scope %q: must be page or content", c.LinkCheck.Scope)
	}
	switch c.Output.Format {
	case "csv", "json", "markdown":
	default:
		return fmt.Errorf("config: output.format %q: must be csv, json or markdown", c.Output.Format)
	}
	switch c.Output.Locale {
	case "en", "fr":
	default:
		return fmt.Errorf("config: output.locale %q: must be en or fr", c.Output.Locale)
	}
	if len([]rune(c.Output.Delimiter)) != 1 {
		return fmt.Errorf("config: output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	return nil
}
