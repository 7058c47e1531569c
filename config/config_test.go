package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://www.google.com", cfg.Search.BaseURL)
	assert.Equal(t, 10, cfg.Search.NumResults)
	assert.Equal(t, "container", cfg.Search.Extraction)
	assert.Equal(t, 2*time.Second, cfg.Search.Delay)
	assert.Equal(t, 15*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Fetch.PageTimeout)
	assert.Equal(t, "http", cfg.Fetch.Engine)
	assert.Equal(t, DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, "page", cfg.LinkCheck.Scope)
	assert.Equal(t, "opportunites_maillage.csv", cfg.Output.Path)
	assert.True(t, cfg.Output.BOM)
	assert.Equal(t, "maillage_debug.log", cfg.Log.File)
	assert.Equal(t, []string{"Image", "Stylesheet", "Font", "Media"}, cfg.Browser.BlockedResourceTypes)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maillage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  site: webloom.fr
  delay: 500ms
output:
  locale: fr
  delimiter: ";"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "webloom.fr", cfg.Search.Site)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.Delay)
	assert.Equal(t, "fr", cfg.Output.Locale)
	assert.Equal(t, ";", cfg.Output.Delimiter)
	assert.Equal(t, 10, cfg.Search.NumResults, "unset keys keep their defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maillage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  site: from-file.fr\n"), 0o644))
	t.Setenv("MAILLAGE_SEARCH_SITE", "from-env.fr")
	t.Setenv("MAILLAGE_FETCH_ENGINE", "auto")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.fr", cfg.Search.Site)
	assert.Equal(t, "auto", cfg.Fetch.Engine)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWith_OverridesTakePrecedence(t *testing.T) {
	t.Chdir(t.TempDir())
	v := viper.New()
	v.Set("output.format", "json")

	cfg, err := LoadWith(v, "")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		SetDefaults(v)
		var cfg Config
		require.NoError(t, v.Unmarshal(&cfg))
		return &cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"extraction":      func(c *Config) { c.Search.Extraction = "xpath" },
		"empty selector":  func(c *Config) { c.Search.ResultSelector = " " },
		"base url":        func(c *Config) { c.Search.BaseURL = "not a url" },
		"num results":     func(c *Config) { c.Search.NumResults = 0 },
		"negative delay":  func(c *Config) { c.Search.Delay = -time.Second },
		"zero timeout":    func(c *Config) { c.Fetch.PageTimeout = 0 },
		"engine":          func(c *Config) { c.Fetch.Engine = "curl" },
		"scope":           func(c *Config) { c.LinkCheck.Scope = "body" },
		"format":          func(c *Config) { c.Output.Format = "xlsx" },
		"locale":          func(c *Config) { c.Output.Locale = "de" },
		"long delimiter":  func(c *Config) { c.Output.Delimiter = ";;" },
		"empty delimiter": func(c *Config) { c.Output.Delimiter = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := valid()
	cfg.Search.Delay = 0
	assert.NoError(t, cfg.Validate(), "zero delay is allowed")
}
