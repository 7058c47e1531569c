package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/models"
)

const keyword = "chaussures rouges"

// newSite serves a results page for every search and a few candidate
// pages linking (or not) to the top result.
func newSite(t *testing.T, results ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<html><body><div id=\"search\">")
		for _, p := range results {
			fmt.Fprintf(&b, `<div class="g"><div class="tF2Cxc"><a href="%s%s">%s</a></div></div>`, srv.URL, p, p)
		}
		b.WriteString("</div></body></html>")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(b.String()))
	})

	pages := map[string]string{
		"/produits/chaussures-rouges": `<p>Nos chaussures</p>`,
		"/blog/article-1":             `<p>Voir <a href="/produits/chaussures-rouges">ici</a></p>`,
		"/blog/article-2":             `<p>Aucun lien</p>`,
		"/blog/article-3":             `<p><a href="/Produits/Chaussures-Rouges">Chaussures Rouges</a></p>`,
	}
	for path, body := range pages {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "fr-FR,fr;q=0.9", r.Header.Get("Accept-Language"), "pages are fetched in the search locale")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><head><title>t</title></head><body>" + body + "</body></html>"))
		})
	}

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// setupCLI runs the command in a fresh directory with the search engine
// pointed at srv.
func setupCLI(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	if srv != nil {
		t.Setenv("MAILLAGE_SEARCH_BASE_URL", srv.URL)
	}
	t.Setenv("MAILLAGE_OUTPUT_COLORS", "false")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{}
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	err := root.Execute()
	a.close()
	slog.SetDefault(slog.New(slog.NewTextHandler(new(bytes.Buffer), nil)))
	return out.String(), err
}

func writeKeywords(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "motscles.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))
	return path
}

func siteHost(srv *httptest.Server) string {
	u, _ := url.Parse(srv.URL)
	return u.Host
}

func TestRun_WritesLocalizedCSV(t *testing.T) {
	srv := newSite(t, "/produits/chaussures-rouges", "/blog/article-1", "/blog/article-2", "/blog/article-3")
	dir := setupCLI(t, srv)
	writeKeywords(t, dir, keyword, "")

	out, err := execute(t, "run", "--site", siteHost(srv), "--delay", "0s", "--locale", "fr")
	require.NoError(t, err)

	assert.Contains(t, out, "[1/1] "+keyword+" (2)")
	assert.Contains(t, out, "Links to add:       1")
	assert.Contains(t, out, "Anchors to fix:     1")

	data, err := os.ReadFile(filepath.Join(dir, "opportunites_maillage.csv"))
	require.NoError(t, err)
	target := srv.URL + "/produits/chaussures-rouges"
	want := "\ufeffMot-Clé,Page Source,Page Cible,Action Requise,Anchor Optimisé\n" +
		keyword + "," + srv.URL + "/blog/article-1," + target + ",Optimiser l'ancre,Non\n" +
		keyword + "," + srv.URL + "/blog/article-2," + target + ",Ajouter un lien,Non Applicable\n"
	assert.Equal(t, want, string(data))

	_, err = os.Stat(filepath.Join(dir, "maillage_debug.log"))
	assert.NoError(t, err)
}

func TestRun_JSONFormatChangesDefaultExtension(t *testing.T) {
	srv := newSite(t, "/produits/chaussures-rouges", "/blog/article-2")
	dir := setupCLI(t, srv)
	kw := writeKeywords(t, dir, keyword)

	out, err := execute(t, "run", "--keywords", kw, "--site", siteHost(srv), "--delay", "0s", "--format", "json", "--table")
	require.NoError(t, err)
	assert.Contains(t, out, "AddLink")

	data, err := os.ReadFile(filepath.Join(dir, "opportunites_maillage.json"))
	require.NoError(t, err)
	var records []models.OpportunityRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionAddLink, records[0].Action)
	assert.Equal(t, srv.URL+"/blog/article-2", records[0].SourceURL)
}

func TestRun_NoRecordsSkipsExport(t *testing.T) {
	srv := newSite(t, "/produits/chaussures-rouges")
	dir := setupCLI(t, srv)
	writeKeywords(t, dir, keyword)

	out, err := execute(t, "run", "--site", siteHost(srv), "--delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "No linking opportunities found")

	_, err = os.Stat(filepath.Join(dir, "opportunites_maillage.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_InputErrors(t *testing.T) {
	srv := newSite(t)
	dir := setupCLI(t, srv)

	_, err := execute(t, "run", "--site", "s.fr", "--keywords", filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInput, models.CodeOf(err))

	writeKeywords(t, dir, keyword)
	_, err = execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInput, models.CodeOf(err))
	assert.Contains(t, err.Error(), "no site configured")
}

func TestRun_InvalidFlagValue(t *testing.T) {
	setupCLI(t, nil)
	_, err := execute(t, "run", "--site", "s.fr", "--format", "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
}

func TestRun_ExportFailureKeepsRecords(t *testing.T) {
	srv := newSite(t, "/produits/chaussures-rouges", "/blog/article-2")
	dir := setupCLI(t, srv)
	writeKeywords(t, dir, keyword)

	out, err := execute(t, "run", "--site", siteHost(srv), "--delay", "0s",
		"--output", filepath.Join(dir, "missing", "out.csv"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeExport, models.CodeOf(err))
	assert.Contains(t, out, srv.URL+"/blog/article-2")
}

func TestCheck(t *testing.T) {
	srv := newSite(t)
	setupCLI(t, srv)
	target := srv.URL + "/produits/chaussures-rouges"

	out, err := execute(t, "check", "--keyword", keyword, "--target", target,
		"--candidate", srv.URL+"/blog/article-1", "--json")
	require.NoError(t, err)
	var resp models.CheckResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.LinkExists)
	assert.False(t, resp.AnchorOptimized)
	assert.Equal(t, models.ActionOptimizeAnchor, resp.Action)
	assert.Equal(t, "ici", resp.AnchorText)

	out, err = execute(t, "check", "--keyword", keyword, "--target", target,
		"--candidate", srv.URL+"/blog/article-3")
	require.NoError(t, err)
	assert.Contains(t, out, "Link found with the keyword as anchor text.")

	out, err = execute(t, "check", "--keyword", keyword, "--target", target,
		"--candidate", srv.URL+"/nowhere")
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeFetch, models.CodeOf(err))
	assert.Contains(t, out, "Page could not be checked")
}

func TestCheck_RequiresFlags(t *testing.T) {
	setupCLI(t, nil)
	_, err := execute(t, "check", "--keyword", keyword)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	for _, key := range []string{"version", "commit", "built", "goVersion", "platform"} {
		assert.Contains(t, info, key)
	}

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "maillage version "+version)
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
		out  config.OutputConfig
		want string
	}{
		{"default csv", nil, config.OutputConfig{Path: "opportunites_maillage.csv", Format: "csv"}, "opportunites_maillage.csv"},
		{"markdown", nil, config.OutputConfig{Path: "opportunites_maillage.csv", Format: "markdown"}, "opportunites_maillage.md"},
		{"explicit output kept", []string{"--output", "report.txt"}, config.OutputConfig{Path: "report.txt", Format: "json"}, "report.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().String("output", "", "")
			require.NoError(t, cmd.ParseFlags(tt.args))
			assert.Equal(t, tt.want, outputPath(cmd, tt.out))
		})
	}
}

func TestReportOptions(t *testing.T) {
	opts := reportOptions(config.OutputConfig{Format: "csv", Locale: "fr", Delimiter: ";", BOM: true})
	assert.Equal(t, ';', opts.Delimiter)
	assert.Equal(t, "fr", opts.Locale)
	assert.True(t, opts.BOM)

	assert.Equal(t, ',', reportOptions(config.OutputConfig{}).Delimiter)
}

func TestNewLogger_FileReceivesDebug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.log")
	var stderr bytes.Buffer

	logger, closer, err := newLogger(config.LogConfig{Level: "warn", Format: "text", File: path}, false, &stderr)
	require.NoError(t, err)
	logger.Debug("page fetched", "url", "https://s.fr/a")
	logger.Warn("page check failed", "url", "https://s.fr/b")
	require.NoError(t, closer.Close())

	assert.NotContains(t, stderr.String(), "page fetched")
	assert.Contains(t, stderr.String(), "page check failed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page fetched")
	assert.Contains(t, string(data), "page check failed")
}

func TestNewLogger_NoFile(t *testing.T) {
	var stderr bytes.Buffer
	logger, closer, err := newLogger(config.LogConfig{Level: "info", Format: "json"}, true, &stderr)
	require.NoError(t, err)
	logger.Debug("verbose enabled")
	require.NoError(t, closer.Close())
	assert.Contains(t, stderr.String(), `"msg":"verbose enabled"`)
}
