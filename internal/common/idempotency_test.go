package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestIdemMiddlewareRejectsReplay(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	idem := Idem{R: client, TTL: time.Minute}
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	req.Header.Set("Idempotency-Key", "abc-123")

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(req.Context()))
	if rr1.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(req.Context()))
	if rr2.Code != http.StatusConflict {
		t.Fatalf("expected replay to be rejected, got %d", rr2.Code)
	}
}

func TestIdemMiddlewareScopesKeyToEndpoint(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	idem := Idem{R: client, TTL: time.Minute}
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	checkout := httptest.NewRequest(http.MethodPost, "/checkout", nil)
	checkout.Header.Set("Idempotency-Key", "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkout)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected checkout to pass, got %d", rr.Code)
	}

	// The same client key against a different endpoint is a new operation.
	payDown := httptest.NewRequest(http.MethodPost, "/financing/lines/1/pay", nil)
	payDown.Header.Set("Idempotency-Key", "abc-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, payDown)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected pay-down with reused key to pass, got %d", rr.Code)
	}
}

func TestIdemMiddlewarePassesWithoutHeader(t *testing.T) {
	idem := Idem{}
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected pass-through without header, got %d", rr.Code)
	}
}
