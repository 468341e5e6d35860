package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliamunaev/highway-simulator/internal/apperr"
	"github.com/iliamunaev/highway-simulator/internal/config"
	"github.com/iliamunaev/highway-simulator/internal/service/counter"
)

func testConfig() config.Config {
	return config.Config{
		Workers:         2,
		MaxFuel:         4,
		StepDistance:    1,
		ConsumptionRate: 1,
		TickInterval:    time.Millisecond,
		UnsyncDelay:     0,
		StopTimeout:     time.Second,
		Mode:            counter.Synchronized,
		RequestTimeout:  time.Second,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	a, err := New(testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = a.Simulation.StopAll(context.Background()) })
	return a
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Workers = 0
	_, err := New(cfg, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidConfig)
}

func TestNew_AppliesMode(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)
	assert.Equal(t, counter.Synchronized, a.Simulation.Mode())
	assert.Equal(t, time.Second, a.RequestTimeout)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestApp(t).Handler, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMetricsAfterRun(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)
	require.Equal(t, http.StatusOK, do(t, a.Handler, http.MethodPost, "/simulation/start").Code)

	require.Eventually(t, func() bool {
		return a.Simulation.ExpectedTotal() == 8
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, http.StatusOK, do(t, a.Handler, http.MethodPost, "/simulation/stop").Code)

	rec := do(t, a.Handler, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	for _, want := range []string{
		"highway_expected_distance 8",
		"highway_counter_distance 8",
		"highway_discrepancy 0",
		"highway_synchronized_mode 1",
		`highway_worker_mileage{worker="vehicle-1"} 4`,
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(text, want), "metrics output missing %q", want)
	}
}

func TestSimulationRoutesMounted(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)

	rec := do(t, a.Handler, http.MethodGet, "/simulation")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mode":"synchronized"`)

	assert.Equal(t, http.StatusNotFound, do(t, a.Handler, http.MethodGet, "/simulation/unknown").Code)
}

func TestMetricsAfterReset(t *testing.T) {
	t.Parallel()

	a := newTestApp(t)
	require.Equal(t, http.StatusOK, do(t, a.Handler, http.MethodPost, "/simulation/start").Code)
	require.Eventually(t, func() bool {
		return a.Simulation.ExpectedTotal() == 8
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, http.StatusOK, do(t, a.Handler, http.MethodPost, "/simulation/stop").Code)
	require.Equal(t, http.StatusOK, do(t, a.Handler, http.MethodPost, "/simulation/reset").Code)

	text := do(t, a.Handler, http.MethodGet, "/metrics").Body.String()

	for _, want := range []string{
		`highway_worker_mileage{worker="vehicle-1"} 0`,
		`highway_worker_fuel_level{worker="vehicle-1"} 4`,
		`highway_worker_status{status="paused",worker="vehicle-1"} 1`,
		`highway_worker_status{status="stopped",worker="vehicle-1"} 0`,
		"highway_expected_distance 0",
		"highway_peak_active_workers 0",
	} {
		assert.Contains(t, text, want)
	}
}

func TestMetricsBeforeStart(t *testing.T) {
	t.Parallel()

	text := do(t, newTestApp(t).Handler, http.MethodGet, "/metrics").Body.String()
	assert.Contains(t, text, `highway_worker_fuel_level{worker="vehicle-2"} 4`)
	assert.Contains(t, text, `highway_worker_status{status="paused",worker="vehicle-2"} 1`)
}
