package financing

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// AdminHandler exposes the back-office financing endpoints.
type AdminHandler struct {
	Svc *Service
	Q   *store.Queries
}

// ListRequests returns financing applications, optionally filtered by status.
func (h *AdminHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	limit := int32(common.AtoiDefault(r.URL.Query().Get("limit"), 50))
	offset := int32(common.AtoiDefault(r.URL.Query().Get("offset"), 0))
	rows, err := h.Q.ListFinancingRequests(r.Context(), store.ListFinancingRequestsParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list requests", nil)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, req := range rows {
		item := map[string]any{
			"id":          store.UUIDString(req.ID),
			"supplier_id": store.UUIDString(req.SupplierID),
			"amount":      req.Amount,
			"term_days":   req.TermDays,
			"status":      string(req.Status),
			"created_at":  req.CreatedAt.Time,
		}
		if req.DecidedAt.Valid {
			item["decided_at"] = req.DecidedAt.Time
		}
		out = append(out, item)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Approve activates a financing line from a pending request.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	line, err := h.Svc.ApproveRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"line_id":     store.UUIDString(line.ID),
			"supplier_id": store.UUIDString(line.SupplierID),
			"granted":     line.Granted,
			"term_days":   line.TermDays,
			"expires_at":  line.ExpiresAt.Time,
		},
	})
}

// Reject declines a pending financing request.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	if err := h.Svc.RejectRequest(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPaused pauses or resumes online payments on a line.
func (h *AdminHandler) SetPaused(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	var payload struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.SetPaused(r.Context(), chi.URLParam(r, "id"), payload.Paused); err != nil {
		common.RenderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
