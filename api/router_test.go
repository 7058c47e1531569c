package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/maillage/api/handler"
	"github.com/use-agent/maillage/cache"
	"github.com/use-agent/maillage/config"
	"github.com/use-agent/maillage/engine"
	"github.com/use-agent/maillage/linkcheck"
	"github.com/use-agent/maillage/models"
	"github.com/use-agent/maillage/runner"
)

const (
	target  = "https://s.fr/produits/chaussures-rouges"
	article = "https://s.fr/blog/article-1"
)

type pageEngine map[string]string

func (p pageEngine) Name() string { return "fake" }

func (p pageEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	body, ok := p[req.URL]
	if !ok {
		return nil, fmt.Errorf("fake: unreachable %s", req.URL)
	}
	return &engine.FetchResult{HTML: "<html><body>" + body + "</body></html>", FinalURL: req.URL}, nil
}

type fakeSearcher struct {
	site    string
	results []string
	block   chan struct{}
}

func (f *fakeSearcher) Site() string { return f.site }

func (f *fakeSearcher) Fetch(ctx context.Context, keyword string) models.SearchOutcome {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	return models.SearchOutcome{Keyword: keyword, Query: keyword + " site:" + f.site, URLs: f.results}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))
	cfg.Server.Mode = "test"
	cfg.Search.Site = "s.fr"
	cfg.Auth.Enabled = false
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	return &cfg
}

type testServer struct {
	router   http.Handler
	searcher *fakeSearcher
	sites    []string
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pages := pageEngine{article: `<article><p><a href="/produits/chaussures-rouges">ici</a></p></article>`}
	cl := linkcheck.New(pages, cache.New(10, time.Hour), time.Second, linkcheck.ScopePage)
	ts := &testServer{searcher: &fakeSearcher{results: []string{target, article}}}

	deps := Deps{
		Classifier: cl,
		Pages:      cache.New(10, time.Hour),
		Runs:       handler.NewRunStore(ctx, time.Hour),
		Version:    "test",
		NewRunner: func(site string, onProgress func(runner.Progress)) (*runner.Runner, error) {
			ts.sites = append(ts.sites, site)
			ts.searcher.site = site
			return runner.New(ts.searcher, cl, runner.Options{OnProgress: onProgress}), nil
		},
	}
	ts.router = NewRouter(ctx, deps, cfg, time.Now())
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (ts *testServer) waitRun(t *testing.T, id string) models.RunStatusResponse {
	t.Helper()
	var st models.RunStatusResponse
	require.Eventually(t, func() bool {
		st = decode[models.RunStatusResponse](t, ts.do(t, http.MethodGet, "/api/v1/runs/"+id, nil))
		return st.Status != models.RunQueued && st.Status != models.RunProcessing
	}, 5*time.Second, 10*time.Millisecond)
	return st
}

func TestHealthAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	ts := newTestServer(t, cfg)

	w := ts.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)

	w = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	ts := newTestServer(t, cfg)

	w := ts.do(t, http.MethodGet, "/api/v1/runs/x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeUnauthorized)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/x", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/x", nil, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeNotFound)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.RequestsPerSecond = 0.001
	cfg.RateLimit.Burst = 1
	ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/runs/x", nil).Code)
	w := ts.do(t, http.MethodGet, "/api/v1/runs/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	w := ts.do(t, http.MethodPost, "/api/v1/runs", models.RunRequest{
		Keywords: []string{" chaussures rouges ", ""},
		Site:     "webloom.fr",
		Locale:   "fr",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[models.RunResponse](t, w)
	assert.True(t, strings.HasPrefix(created.ID, "run-"))
	assert.Equal(t, 1, created.Total)

	st := ts.waitRun(t, created.ID)
	assert.Equal(t, models.RunCompleted, st.Status)
	assert.Equal(t, "webloom.fr", st.Site)
	assert.Equal(t, []string{"webloom.fr"}, ts.sites)
	assert.Equal(t, 1, st.Completed)
	require.Len(t, st.Records, 1)
	assert.Equal(t, "chaussures rouges", st.Records[0].Keyword)
	assert.Equal(t, models.ActionOptimizeAnchor, st.Records[0].Action)
	require.NotNil(t, st.Stats)
	assert.Equal(t, 1, st.Stats.OptimizeAnchor)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+created.ID+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.ID+".csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "\ufeffMot-Clé,Page Source"), w.Body.String())
	assert.Contains(t, w.Body.String(), "Optimiser l'ancre,Non")

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+created.ID+"/export?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]models.OpportunityRecord](t, w)
	assert.Len(t, records, 1)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+created.ID+"/export?format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunUsesConfiguredSite(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	w := ts.do(t, http.MethodPost, "/api/v1/runs", models.RunRequest{Keywords: []string{"k"}})
	require.Equal(t, http.StatusOK, w.Code)
	ts.waitRun(t, decode[models.RunResponse](t, w).ID)
	assert.Equal(t, []string{"s.fr"}, ts.sites)
}

func TestPostRun_Invalid(t *testing.T) {
	cfg := testConfig(t)
	ts := newTestServer(t, cfg)

	cases := map[string]any{
		"no keywords":    map[string]any{"keywords": []string{}},
		"blank keywords": models.RunRequest{Keywords: []string{"  "}},
		"bad locale":     models.RunRequest{Keywords: []string{"k"}, Locale: "de"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/runs", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput)
		})
	}

	cfg.Search.Site = ""
	w := ts.do(t, http.MethodPost, "/api/v1/runs", models.RunRequest{Keywords: []string{"k"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "site is required")
}

func TestExportUnfinishedRun(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	ts.searcher.block = make(chan struct{})
	defer close(ts.searcher.block)

	w := ts.do(t, http.MethodPost, "/api/v1/runs", models.RunRequest{Keywords: []string{"k"}})
	require.Equal(t, http.StatusOK, w.Code)
	id := decode[models.RunResponse](t, w).ID

	w = ts.do(t, http.MethodGet, "/api/v1/runs/"+id+"/export", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/runs/nope/export", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheck(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	w := ts.do(t, http.MethodPost, "/api/v1/check", models.CheckRequest{
		Keyword:      "chaussures rouges",
		TargetURL:    target,
		CandidateURL: article,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.CheckResponse](t, w)
	assert.True(t, resp.Success)
	assert.True(t, resp.LinkExists)
	assert.False(t, resp.AnchorOptimized)
	assert.Equal(t, models.AnchorNotOptimized, resp.AnchorState)
	assert.Equal(t, models.ActionOptimizeAnchor, resp.Action)
	assert.Equal(t, "ici", resp.AnchorText)
	assert.Equal(t, "content", resp.Position)

	w = ts.do(t, http.MethodPost, "/api/v1/check", models.CheckRequest{
		Keyword:      "chaussures rouges",
		TargetURL:    target,
		CandidateURL: "https://s.fr/down",
	})
	require.Equal(t, http.StatusBadGateway, w.Code)
	resp = decode[models.CheckResponse](t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, models.ActionAddLink, resp.Action)
	assert.Equal(t, models.ErrCodeFetch, resp.Error.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/check", map[string]string{"keyword": "k", "target_url": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
