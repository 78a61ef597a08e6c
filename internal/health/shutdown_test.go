package health_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/health"
)

// During a drain the load balancer must see the readiness probe fail before
// the listener closes, even though the database and Redis are still healthy.
func TestReadinessGateDuringDrain(t *testing.T) {
	h := health.Handler{Checker: &fakePinger{}, DBTimeout: 50 * time.Millisecond, RedisTimeout: 50 * time.Millisecond}
	t.Cleanup(func() { health.SetReady(true) })

	health.SetReady(true)
	code, status := readiness(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", status["db"])

	health.SetReady(false)
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	// Liveness stays green during the drain so the orchestrator does not
	// kill the process mid-request.
	rr = httptest.NewRecorder()
	h.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	health.SetReady(true)
	code, _ = readiness(t, h)
	require.Equal(t, http.StatusOK, code)
}
