package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sellsi/backend-sellsi/internal/store"
)

type listStore struct {
	stubStore
	receivedLimit  int32
	receivedOffset int32
}

func (l *listStore) ListAuditLogs(_ context.Context, arg store.ListAuditLogsParams) ([]store.AuditLog, error) {
	l.receivedLimit = arg.Limit
	l.receivedOffset = arg.Offset
	return []store.AuditLog{{Action: "TEST", Method: "GET"}}, nil
}

func TestHandlerList(t *testing.T) {
	st := &listStore{}
	h := Handler{Store: st}
	req := httptest.NewRequest(http.MethodGet, "/audit?limit=25&offset=10", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if st.receivedLimit != 25 || st.receivedOffset != 10 {
		t.Fatalf("unexpected pagination params: %d/%d", st.receivedLimit, st.receivedOffset)
	}
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Data) != 1 {
		t.Fatalf("expected one log entry, got %d", len(payload.Data))
	}
}
