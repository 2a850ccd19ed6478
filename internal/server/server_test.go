package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

type fakeArchive struct {
	runs    []archive.Run
	bundles map[string]*site.Bundle
	loads   atomic.Int32
}

func (f *fakeArchive) List(_ context.Context, limit int) ([]archive.Run, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeArchive) Latest(context.Context) (archive.Run, error) {
	if len(f.runs) == 0 {
		return archive.Run{}, errors.NotFoundError("no archived runs").Build()
	}
	return f.runs[0], nil
}

func (f *fakeArchive) Bundle(_ context.Context, runID string) (*site.Bundle, error) {
	f.loads.Add(1)
	b, ok := f.bundles[runID]
	if !ok {
		return nil, errors.NotFoundError("run not found").WithContext("run_id", runID).Build()
	}
	return b, nil
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		runs: []archive.Run{
			{RunID: "run-2", Keyword: "coffee", CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Files: 3},
			{RunID: "run-1", Keyword: "tea", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Files: 1},
		},
		bundles: map[string]*site.Bundle{
			"run-2": {Files: map[string]string{
				"index.html":        "<h1>Coffee</h1>",
				"pillars/brew.html": "<h1>Brewing</h1>",
				"sitemap.xml":       "<urlset></urlset>",
			}},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := New(Options{Archive: newFakeArchive(), Logger: quietLogger()})
	rr := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[healthResponse](t, rr)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "archive", body.Source)
}

func TestServesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, site.FileIndex), []byte("<h1>Home</h1>"), 0o644))

	s := New(Options{Dir: dir, Logger: quietLogger()})
	rr := get(t, s, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Home</h1>")
}

func TestServesLatestArchivedBundle(t *testing.T) {
	fa := newFakeArchive()
	s := New(Options{Archive: fa, Logger: quietLogger()})

	rr := get(t, s, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<h1>Coffee</h1>", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	rr = get(t, s, "/pillars/brew.html")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<h1>Brewing</h1>", rr.Body.String())

	assert.Equal(t, int32(1), fa.loads.Load(), "bundle is loaded once per run")

	rr = get(t, s, "/articles/missing.html")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decode[errors.HTTPErrorResponse](t, rr).Code)
}

func TestArchivedBundleFollowsNewRuns(t *testing.T) {
	fa := newFakeArchive()
	s := New(Options{Archive: fa, Logger: quietLogger()})
	require.Equal(t, http.StatusOK, get(t, s, "/").Code)

	fa.runs = append([]archive.Run{{RunID: "run-3", CreatedAt: time.Now()}}, fa.runs...)
	fa.bundles["run-3"] = &site.Bundle{Files: map[string]string{"index.html": "<h1>New</h1>"}}

	rr := get(t, s, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<h1>New</h1>", rr.Body.String())
	assert.Equal(t, int32(2), fa.loads.Load())
}

func TestNoSite(t *testing.T) {
	s := New(Options{Logger: quietLogger()})
	assert.Equal(t, http.StatusNotFound, get(t, s, "/").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/status").Code)
}

func TestRunsAPI(t *testing.T) {
	s := New(Options{Archive: newFakeArchive(), Logger: quietLogger()})

	rr := get(t, s, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Runs  []archive.Run `json:"runs"`
		Count int           `json:"count"`
	}](t, rr)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "run-2", body.Runs[0].RunID)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/runs?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/runs?limit=abc").Code)

	rr = get(t, s, "/api/runs/latest")
	require.Equal(t, http.StatusOK, rr.Code)
	files := decode[runFiles](t, rr)
	assert.Equal(t, "run-2", files.RunID)
	assert.Equal(t, []string{"index.html", "pillars/brew.html", "sitemap.xml"}, files.Files)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/nope").Code)
}

func TestStatusAPI(t *testing.T) {
	s := New(Options{Logger: quietLogger(), Status: func() any {
		return map[string]string{"state": "idle"}
	}})
	rr := get(t, s, "/api/status?pretty=1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "\n  \"state\": \"idle\"")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := metrics.NewRegistry()
	metrics.NewPrometheusRecorder(reg).IncPlaceholder()

	s := New(Options{Registry: reg, MetricsPath: "/prom", Logger: quietLogger()})
	rr := get(t, s, "/prom")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestStartStop(t *testing.T) {
	s := New(Options{Archive: newFakeArchive(), Logger: quietLogger()})
	require.NoError(t, s.Start(context.Background(), "127.0.0.1:0"))
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Error(t, s.Start(context.Background(), "127.0.0.1:0"), "second start fails")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Addr())
	require.NoError(t, s.Stop(ctx), "stop is idempotent")
}

func TestBundlePath(t *testing.T) {
	cases := map[string]string{
		"/":                  "index.html",
		"":                   "index.html",
		"/pillars/a.html":    "pillars/a.html",
		"/pillars/":          "pillars/index.html",
		"/../../etc/passwd":  "etc/passwd",
		"/articles/./b.html": "articles/b.html",
	}
	for in, want := range cases {
		assert.Equal(t, want, bundlePath(in), in)
	}
}
