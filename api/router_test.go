package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/scrapedeck/cleaner"
	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/engine"
	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/scraper"
)

const page = `<html><body><p class="x">alpha</p><p class="y">beta</p></body></html>`

func newTestRouter(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *scraper.Board, string) {
	t.Helper()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(site.Close)

	cfg := config.Load()
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}
	cfg.Board.ConfigPath = filepath.Join(t.TempDir(), "config.json")
	if mutate != nil {
		mutate(cfg)
	}

	fetcher := engine.NewFetcher(engine.NewHTTPEngine(config.EngineConfig{
		UserAgent:    "scrapedeck-test",
		MaxBodyBytes: 1 << 20,
	}))
	board := scraper.NewBoard(fetcher, cleaner.NewCleaner(), 0)
	return NewRouter(board, cfg, time.Now(), fetcher.EngineName()), board, site.URL
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	r, board, _ := newTestRouter(t, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"k"}}
	})
	board.Add()

	w := do(t, r, http.MethodGet, "/api/v1/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Entities)
	assert.Equal(t, "http", resp.Engine)
	assert.Equal(t, models.Version, resp.Version)
}

func TestEntityLifecycle(t *testing.T) {
	r, _, site := newTestRouter(t, nil)

	w := do(t, r, http.MethodPost, "/api/v1/entities", models.SourceRequest{URL: site + "/", Filter: "x", Fetch: true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.EntityResponse](t, w)
	require.NotNil(t, created.Entity)
	assert.Equal(t, "0", created.Entity.ID)
	assert.Equal(t, "fetched", created.Entity.State)
	assert.Contains(t, created.Entity.Text, "alpha")
	assert.NotContains(t, created.Entity.Text, "beta")

	w = do(t, r, http.MethodPut, "/api/v1/entities/0/output", models.OutputRequest{Mode: "clean"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", decode[models.EntityResponse](t, w).Entity.Text)

	w = do(t, r, http.MethodPut, "/api/v1/entities/0/transform", models.TransformRequest{
		Source:  `func f(s string) string { return strings.ToUpper(s) }`,
		Enabled: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/entities/0/text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	text := decode[models.TextResponse](t, w)
	assert.Equal(t, "ALPHA", text.Text)
	assert.Equal(t, "clean", text.Mode)

	w = do(t, r, http.MethodGet, "/api/v1/entities/0/text?mode=raw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "raw", decode[models.TextResponse](t, w).Mode)

	w = do(t, r, http.MethodDelete, "/api/v1/entities/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/v1/entities/0", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetchErrorsMapToStatus(t *testing.T) {
	r, _, site := newTestRouter(t, nil)

	tests := []struct {
		name   string
		url    string
		status int
		code   string
	}{
		{"invalid url", "example.com", http.StatusBadRequest, models.ErrCodeInvalidURL},
		{"not found", site + "/missing", http.StatusBadGateway, models.ErrCodeNonSuccessStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/entities", models.SourceRequest{URL: tt.url})
			require.Equal(t, http.StatusCreated, w.Code)
			id := decode[models.EntityResponse](t, w).Entity.ID

			w = do(t, r, http.MethodPost, "/api/v1/entities/"+id+"/fetch", nil)

			assert.Equal(t, tt.status, w.Code)
			resp := decode[models.FetchResponse](t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestBadRequests(t *testing.T) {
	r, board, _ := newTestRouter(t, nil)
	board.Add()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown filter mode", http.MethodPost, "/api/v1/entities", map[string]string{"filter_mode": "xpath"}, http.StatusBadRequest},
		{"unknown output mode", http.MethodPut, "/api/v1/entities/0/output", models.OutputRequest{Mode: "pdf"}, http.StatusBadRequest},
		{"missing output mode", http.MethodPut, "/api/v1/entities/0/output", map[string]string{}, http.StatusBadRequest},
		{"unknown text mode", http.MethodGet, "/api/v1/entities/0/text?mode=9", nil, http.StatusBadRequest},
		{"malformed transform", http.MethodPut, "/api/v1/entities/0/transform", models.TransformRequest{Source: "bad code", Enabled: true}, http.StatusUnprocessableEntity},
		{"unknown entity", http.MethodPut, "/api/v1/entities/42/source", models.SourceRequest{}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[models.ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.NotNil(t, resp.Error)
		})
	}
}

func TestBoardEndpoints(t *testing.T) {
	r, board, site := newTestRouter(t, nil)

	for _, f := range []string{"x", "y"} {
		w := do(t, r, http.MethodPost, "/api/v1/entities", models.SourceRequest{URL: site + "/", Filter: f})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/v1/fetch-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[models.FetchAllResponse](t, w)
	require.Len(t, all.Results, 2)
	assert.Nil(t, all.Results[0].Error)
	assert.False(t, all.Results[0].Changed, "first fetch has no baseline")
	assert.Equal(t, "Fetched 2 entities (0 failed)", all.Status)

	w = do(t, r, http.MethodPost, "/api/v1/config/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodDelete, "/api/v1/entities/last", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, board.Len())

	w = do(t, r, http.MethodPost, "/api/v1/config/load", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	loaded := decode[models.StatusResponse](t, w)
	assert.Equal(t, 2, loaded.Count)
	assert.Equal(t, "Load config succeeded.", loaded.Status)

	w = do(t, r, http.MethodPost, "/api/v1/config/load", models.ConfigFileRequest{Path: "nope.json"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Zero(t, board.Len())

	w = do(t, r, http.MethodDelete, "/api/v1/entities/last", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/entities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[models.EntityListResponse](t, w).Entities)
}

func TestConfigPathStaysInBoardDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "boards")
	require.NoError(t, os.Mkdir(dir, 0o755))
	r, board, site := newTestRouter(t, func(c *config.Config) {
		c.Board.ConfigPath = filepath.Join(dir, "config.json")
	})
	w := do(t, r, http.MethodPost, "/api/v1/entities", models.SourceRequest{URL: site + "/", Filter: "x"})
	require.Equal(t, http.StatusCreated, w.Code)

	for _, p := range []string{"../escape.json", "/etc/passwd", `..\escape.json`, "..", "board.txt", ".hidden.json"} {
		t.Run(p, func(t *testing.T) {
			for _, endpoint := range []string{"/api/v1/config/save", "/api/v1/config/load"} {
				w := do(t, r, http.MethodPost, endpoint, models.ConfigFileRequest{Path: p})
				assert.Equal(t, http.StatusBadRequest, w.Code, endpoint)
				assert.Equal(t, models.ErrCodeInvalidInput, decode[models.ErrorResponse](t, w).Error.Code)
			}
		})
	}
	_, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, board.Len(), "rejected loads leave the board alone")

	w = do(t, r, http.MethodPost, "/api/v1/config/save", models.ConfigFileRequest{Path: "other.yaml"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.FileExists(t, filepath.Join(dir, "other.yaml"))

	w = do(t, r, http.MethodPost, "/api/v1/config/load", models.ConfigFileRequest{Path: "other.yaml"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, board.Len())
}

func TestAuthProtectsEntities(t *testing.T) {
	r, _, _ := newTestRouter(t, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}}
	})

	w := do(t, r, http.MethodGet, "/api/v1/entities", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
