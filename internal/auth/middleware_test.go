package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sellsi/backend-sellsi/internal/common"
)

func issueToken(t *testing.T, svc *Service, email, role string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "User", email, "supersecret", role); err != nil {
		t.Fatalf("register: %v", err)
	}
	result, err := svc.Login(ctx, email, "supersecret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return result.AccessToken
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	svc, _ := newTestService(t)
	mw := Middleware{Service: svc}
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAuthInjectsIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	token := issueToken(t, svc, "ana@example.com", "supplier")
	mw := Middleware{Service: svc}

	var gotRole string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = common.Role(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotRole != RoleSupplier {
		t.Fatalf("expected supplier role in context, got %q", gotRole)
	}
}

func TestRequireRole(t *testing.T) {
	svc, _ := newTestService(t)
	buyerToken := issueToken(t, svc, "buyer@example.com", "buyer")
	supplierToken := issueToken(t, svc, "supplier@example.com", "supplier")
	mw := Middleware{Service: svc}

	handler := mw.RequireRole(RoleSupplier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+supplierToken)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for supplier, got %d", rr.Code)
	}
}

func TestAuthenticateIsOptional(t *testing.T) {
	svc, _ := newTestService(t)
	mw := Middleware{Service: svc}
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.UserID(r.Context()); ok {
			t.Fatal("expected no identity without token")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
