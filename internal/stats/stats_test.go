package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.deltas, "expected delta queue to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")

	assert.NotPanics(t, func() { NewStatsUpdater(http.NewServeMux()) }, "expected a second updater not to collide")
}

func TestStatsUpdater_IncrDecr(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(NumActiveRooms)
	su.Run()
	defer su.Stop()

	su.Incr(NumActiveRooms)
	su.Incr(NumActiveRooms)
	su.Decr(NumActiveRooms)

	read := func() map[string]any {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			return nil
		}
		return body
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	assert.Eventually(t, func() bool {
		return read()[NumActiveRooms] == float64(1)
	}, time.Second, 10*time.Millisecond, "expected counter to settle at 1")
	assert.Contains(t, read(), "Uptime")
}

func TestStatsUpdater_RegisterAndUnknown(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(NumMutations)
	assert.Equal(t, int64(0), su.Value(NumMutations))
	assert.Equal(t, int64(0), su.Value("missing"))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body[NumMutations], "expected registered counter to be published at zero")

	su.Run()
	su.Incr("Unregistered")
	su.Incr(NumMutations)
	su.Incr(NumMutations)

	assert.Eventually(t, func() bool {
		return su.Value("Unregistered") == 1 && su.Value(NumMutations) == 2
	}, time.Second, 10*time.Millisecond, "expected counters to be created and updated")

	su.Stop()
	assert.NotPanics(t, su.Stop, "expected Stop to be idempotent")
}
