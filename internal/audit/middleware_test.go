package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/obs"
)

func TestMiddlewareRecordsAdminAction(t *testing.T) {
	st := &stubStore{}
	svc := &Service{Store: st, Enabled: true, SamplingRate: 1}
	recorder := HTTPRecorder{Service: svc}

	handler := recorder.Middleware(HTTPConfig{
		ResourceType:    "financing.request",
		ResourceIDParam: "id",
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	requestID := uuid.NewString()
	adminID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/financing/requests/"+requestID+"/approve", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", requestID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = common.WithUser(ctx, adminID, "admin")
	ctx = obs.WithRoutePattern(ctx, "/api/v1/admin/financing/requests/{id}/approve")
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !st.called {
		t.Fatal("expected an audit entry")
	}
	if st.lastInsert.Action != "POST /api/v1/admin/financing/requests/{id}/approve" {
		t.Fatalf("unexpected action: %s", st.lastInsert.Action)
	}
	if !st.lastInsert.ResourceID.Valid || st.lastInsert.ResourceID.String != requestID {
		t.Fatalf("unexpected resource id: %+v", st.lastInsert.ResourceID)
	}
	if st.lastInsert.ActorKind != string(ActorKindUser) {
		t.Fatalf("unexpected actor kind: %s", st.lastInsert.ActorKind)
	}
	if st.lastInsert.Status != int32(http.StatusCreated) {
		t.Fatalf("unexpected status: %d", st.lastInsert.Status)
	}
}

func TestMiddlewareSkipsWhenDisabled(t *testing.T) {
	st := &stubStore{}
	svc := &Service{Store: st, Enabled: false}
	recorder := HTTPRecorder{Service: svc}

	handler := recorder.Middleware(HTTPConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/audit-logs", nil))

	if st.called {
		t.Fatal("expected no audit entry while disabled")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rr.Code)
	}
}
