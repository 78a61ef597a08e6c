package financing

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// Handler exposes the supplier-facing financing endpoints.
type Handler struct {
	Svc *Service
}

// RequestLine files a new financing application for the authenticated supplier.
func (h *Handler) RequestLine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	supplierID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(supplierID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var payload struct {
		Amount   int64 `json:"amount"`
		TermDays int32 `json:"term_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	req, err := h.Svc.RequestLine(r.Context(), supplierID, payload.Amount, payload.TermDays)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"id":        store.UUIDString(req.ID),
			"amount":    req.Amount,
			"term_days": req.TermDays,
			"status":    string(req.Status),
		},
	})
}

// ListLines returns the supplier's financing lines with derived availability.
func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	supplierID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(supplierID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	lines, err := h.Svc.ListLines(r.Context(), supplierID)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": lines})
}

// PayDown opens a payment intent against a line's outstanding balance.
func (h *Handler) PayDown(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "financing not configured", nil)
		return
	}
	supplierID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(supplierID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	lineID := chi.URLParam(r, "id")
	var payload struct {
		Amount int64  `json:"amount"`
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	fp, err := h.Svc.PayDown(r.Context(), supplierID, lineID, payload.Amount, payload.Method)
	if err != nil {
		common.RenderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"payment_id":   store.UUIDString(fp.ID),
			"amount":       fp.Amount,
			"provider":     fp.Provider.String,
			"status":       string(fp.Status),
			"redirect_url": fp.RedirectURL.String,
		},
	})
}
