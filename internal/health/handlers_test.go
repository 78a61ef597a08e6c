package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/health"
)

type fakePinger struct {
	dbErr    error
	redisErr error

	dbTimeout    time.Duration
	redisTimeout time.Duration
}

func (f *fakePinger) PingDB(_ context.Context, timeout time.Duration) error {
	f.dbTimeout = timeout
	return f.dbErr
}

func (f *fakePinger) PingRedis(_ context.Context, timeout time.Duration) error {
	f.redisTimeout = timeout
	return f.redisErr
}

func readiness(t *testing.T, h health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &status)
	}
	return rr.Code, status
}

func TestLiveAlwaysOK(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyReportsPerDependency(t *testing.T) {
	pinger := &fakePinger{}
	h := health.Handler{Checker: pinger, DBTimeout: 250 * time.Millisecond, RedisTimeout: 100 * time.Millisecond}

	code, status := readiness(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", status["db"])
	require.Equal(t, "ok", status["redis"])
	require.Equal(t, 250*time.Millisecond, pinger.dbTimeout)
	require.Equal(t, 100*time.Millisecond, pinger.redisTimeout)
}

func TestReadyDegradedDatabase(t *testing.T) {
	pinger := &fakePinger{dbErr: errors.New("pgx: connection refused")}
	code, status := readiness(t, health.Handler{Checker: pinger})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "pgx: connection refused", status["db"])
	require.Equal(t, "ok", status["redis"])
}

func TestReadyDegradedRedis(t *testing.T) {
	pinger := &fakePinger{redisErr: errors.New("redis: i/o timeout")}
	code, status := readiness(t, health.Handler{Checker: pinger})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", status["db"])
	require.Equal(t, "redis: i/o timeout", status["redis"])
}

func TestReadyWithoutChecker(t *testing.T) {
	code, _ := readiness(t, health.Handler{})
	require.Equal(t, http.StatusServiceUnavailable, code)
}
