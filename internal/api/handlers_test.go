package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"estatemerge/internal/cache"
	"estatemerge/internal/database"
	"estatemerge/internal/integration"
	"estatemerge/internal/models"
	"estatemerge/internal/queue"
)

// MockStore is a mock implementation of CatalogStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) LatestCatalog(ctx context.Context) (*models.Catalog, error) {
	args := m.Called(ctx)
	catalog, _ := args.Get(0).(*models.Catalog)
	return catalog, args.Error(1)
}

func (m *MockStore) Catalog(ctx context.Context, runID string) (*models.Catalog, error) {
	args := m.Called(ctx, runID)
	catalog, _ := args.Get(0).(*models.Catalog)
	return catalog, args.Error(1)
}

func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]models.RunSummary)
	return runs, args.Error(1)
}

const naverJSON = `[
  {"article_id": "1001", "type": "아파트", "trade_type": "매매", "title": "강남파크뷰",
   "address": "서울 강남구 삼성동 1", "price": "5억", "area": "84.5㎡",
   "lat": 37.5145, "lon": 127.0565, "collected_at": "2024-01-15T10:00:00"},
  {"article_id": "1003", "type": "오피스텔", "trade_type": "전세", "title": "삼성 오피스텔",
   "address": "서울 강남구 삼성동 20", "price": "2억 5,000", "area": "33㎡",
   "lat": 37.5102, "lon": 127.0601}
]`

const zigbangJSON = `{"items": [
  {"id": "2002", "type": "아파트", "trade_type": "매매", "title": "강남파크뷰",
   "address": "서울 강남구 삼성동1", "price": "5억 500", "area": 84.3,
   "lat": 37.5146, "lng": 127.0566, "collected_at": "2024-01-15T11:00:00"}
]}`

func writeManifest(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "naver.json"), []byte(naverJSON), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zigbang.json"), []byte(zigbangJSON), 0644))
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))
	return path
}

const validManifest = `area: 강남구 삼성1동
sources:
  - platform: naver
    path: naver.json
  - platform: zigbang
    path: zigbang.json
`

type testServer struct {
	router  *gin.Engine
	handler *Handler
	store   *MockStore
	queue   *queue.CatalogQueue
}

func setupServer(t *testing.T, manifestPath string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := &MockStore{}
	catalogQueue := queue.NewCatalogQueue(4, logger)
	handler := NewHandler(
		store,
		integration.New(integration.Options{}, logger),
		cache.NewTTLCache[*models.Catalog](5*time.Minute, nil),
		catalogQueue,
		Options{ManifestPath: manifestPath, DefaultArea: "강남구"},
		logger,
	)

	router := gin.New()
	SetupRoutes(router, handler)
	return &testServer{router: router, handler: handler, store: store, queue: catalogQueue}
}

func (s *testServer) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := setupServer(t, "")
	w := s.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestIntegrateThenQuery(t *testing.T) {
	s := setupServer(t, writeManifest(t, validManifest))

	w := s.do(t, http.MethodPost, "/api/integrate")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode(t, w)
	assert.Equal(t, float64(2), summary["total_properties"])
	assert.Equal(t, float64(1), summary["duplicates"])
	assert.Equal(t, "강남구 삼성1동", summary["area"])
	assert.Equal(t, 1, s.queue.Len(), "catalog queued for persistence")

	// Served from the cache, the store is never asked
	w = s.do(t, http.MethodGet, "/api/catalog")
	require.Equal(t, http.StatusOK, w.Code)
	var catalog models.Catalog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &catalog))
	assert.Equal(t, summary["run_id"], catalog.RunID)
	assert.Len(t, catalog.Properties, 2)

	w = s.do(t, http.MethodGet, "/api/catalog/stats")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, map[string]any{"naver": float64(2), "zigbang": float64(1)}, stats["platform_stats"])

	w = s.do(t, http.MethodGet, "/api/catalog/geojson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FeatureCollection", decode(t, w)["type"])

	s.store.AssertNotCalled(t, "LatestCatalog", mock.Anything)
}

func TestGetProperties_Filters(t *testing.T) {
	s := setupServer(t, writeManifest(t, validManifest))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/integrate").Code)

	tests := []struct {
		name  string
		query string
		code  int
		total float64
	}{
		{"all", "", http.StatusOK, 2},
		{"by type", "?type=officetel", http.StatusOK, 1},
		{"by korean trade", "?trade=%EB%A7%A4%EB%A7%A4", http.StatusOK, 1},
		{"by platform", "?platform=naver,zigbang", http.StatusOK, 2},
		{"price range", "?min_price=30000&max_price=60000", http.StatusOK, 1},
		{"area range", "?max_area=40", http.StatusOK, 1},
		{"pagination", "?limit=1&offset=5", http.StatusOK, 2},
		{"bad platform", "?platform=craigslist", http.StatusBadRequest, 0},
		{"bad price", "?min_price=abc", http.StatusBadRequest, 0},
		{"bad trade", "?trade=barter", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/properties"+tt.query)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			assert.Equal(t, tt.total, decode(t, w)["total"])
		})
	}

	w := s.do(t, http.MethodGet, "/api/properties?limit=1&offset=5")
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestGetProperties_HugePagingValues(t *testing.T) {
	s := setupServer(t, writeManifest(t, validManifest))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/integrate").Code)

	tests := []struct {
		name  string
		query string
		count float64
	}{
		{"max int limit", "?offset=1&limit=9223372036854775807", 1},
		{"max int offset", "?offset=9223372036854775807&limit=9223372036854775807", 0},
		{"limit beyond int", "?limit=99999999999999999999", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/properties"+tt.query)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			body := decode(t, w)
			assert.Equal(t, float64(2), body["total"])
			assert.Equal(t, tt.count, body["count"])
		})
	}
}

func TestGetCatalog_FallsBackToStore(t *testing.T) {
	s := setupServer(t, "")

	stored := &models.Catalog{RunID: "run-1", Area: "강남구", TotalProperties: 0}
	s.store.On("LatestCatalog", mock.Anything).Return(stored, nil).Once()

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodGet, "/api/catalog")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "run-1", decode(t, w)["run_id"])
	}
	s.store.AssertExpectations(t)

	s.store.On("Catalog", mock.Anything, "run-0").Return(nil, database.ErrNoCatalog).Once()
	w := s.do(t, http.MethodGet, "/api/catalog?run_id=run-0")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCatalog_NotFound(t *testing.T) {
	s := setupServer(t, "")
	s.store.On("LatestCatalog", mock.Anything).Return(nil, database.ErrNoCatalog)

	w := s.do(t, http.MethodGet, "/api/catalog/stats")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIntegrate_Errors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		s := setupServer(t, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/integrate").Code)
	})

	t.Run("invalid manifest", func(t *testing.T) {
		s := setupServer(t, writeManifest(t, "sources: []\n"))
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/integrate").Code)
	})

	t.Run("every source unavailable", func(t *testing.T) {
		s := setupServer(t, writeManifest(t, "sources:\n  - platform: kb\n    path: kb.json\n"))
		w := s.do(t, http.MethodPost, "/api/integrate")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, decode(t, w)["error"], "every source is unavailable")
	})
}

func TestCacheEndpoints(t *testing.T) {
	s := setupServer(t, writeManifest(t, validManifest))
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/integrate").Code)

	w := s.do(t, http.MethodGet, "/api/cache/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["size"])

	w = s.do(t, http.MethodDelete, "/api/cache")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["cleared"])

	s.store.On("LatestCatalog", mock.Anything).Return(nil, database.ErrNoCatalog)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/catalog").Code)
}

func TestGetRuns(t *testing.T) {
	s := setupServer(t, "")
	runs := []models.RunSummary{{RunID: "run-2"}, {RunID: "run-1"}}
	s.store.On("ListRuns", mock.Anything, 5).Return(runs, nil)

	w := s.do(t, http.MethodGet, "/api/runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)

	var got []models.RunSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, runs, got)
}
