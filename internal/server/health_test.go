package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"common-addresses/internal/staging"
)

type checkFailStore struct{ *staging.MemoryStore }

func (checkFailStore) Check(context.Context) error { return errors.New("read-only file system") }

func TestHandleHealth(t *testing.T) {
	dir := t.TempDir()
	disk, err := staging.NewDiskStore(dir+"/uploads", dir+"/formatted")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Version = "1.0.0"
	s, _ := newTestServer(t, cfg, Deps{Store: disk})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeHealth, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h := decode[Health](t, w)
	assert.Equal(t, HealthStatusHealthy, h.Status)
	assert.Equal(t, EnvDevelopment, h.Environment)
	assert.Equal(t, dir+"/uploads", h.UploadDir)
	assert.Equal(t, dir+"/formatted", h.FormattedDir)
	assert.Equal(t, "1.0.0", h.Version)
	assert.False(t, h.Timestamp.IsZero())
	assert.Equal(t, ComponentStatusUp, h.Components["staging"].Status)
	_, hasDB := h.Components["database"]
	assert.False(t, hasDB)
}

func TestHandleHealth_StagingDown(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), Deps{Store: checkFailStore{staging.NewMemoryStore()}})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeHealth, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	h := decode[Health](t, w)
	assert.Equal(t, HealthStatusUnhealthy, h.Status)
	assert.Contains(t, h.Components["staging"].Message, "read-only")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeReady, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleHealth_Database(t *testing.T) {
	runs := &fakeRuns{}
	s, _ := newTestServer(t, testConfig(), Deps{Runs: runs})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeHealth, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ComponentStatusUp, decode[Health](t, w).Components["database"].Status)

	runs.pingErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeHealth, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ComponentStatusDown, decode[Health](t, w).Components["database"].Status)
}

func TestHandleHealth_Method(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), Deps{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, routeHealth, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestProbes(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), Deps{})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeLive, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", decode[map[string]string](t, w)["status"])

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, routeReady, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, w)["status"])
}

func TestDetermineOverallHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]ComponentHealth
		want       HealthStatus
	}{
		{"empty", map[string]ComponentHealth{}, HealthStatusHealthy},
		{"all up", map[string]ComponentHealth{"a": {Status: ComponentStatusUp}}, HealthStatusHealthy},
		{"degraded", map[string]ComponentHealth{
			"a": {Status: ComponentStatusUp},
			"b": {Status: ComponentStatusDegraded},
		}, HealthStatusDegraded},
		{"down wins", map[string]ComponentHealth{
			"a": {Status: ComponentStatusDegraded},
			"b": {Status: ComponentStatusDown},
		}, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineOverallHealth(tt.components))
		})
	}
}
