package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Q *store.Queries
}

type patchStatusRequest struct {
	Status string `json:"status"`
}

// PatchStatus updates the order status with state-machine validation.
// PENDING_PAYMENT may move to PAID or CANCELED; everything else is terminal.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	oID, err := store.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	target := store.OrderStatus(req.Status)
	if target != store.OrderStatusPaid && target != store.OrderStatusCanceled {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
		return
	}
	ord, err := h.Q.GetOrderByID(r.Context(), oID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if ord.Status != store.OrderStatusPendingPayment {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order is no longer pending", nil)
		return
	}
	if err := h.Q.UpdateOrderStatus(r.Context(), store.UpdateOrderStatusParams{ID: oID, Status: target}); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order status", nil)
		return
	}
	if target == store.OrderStatusCanceled {
		_ = h.Q.RestockOrderItems(r.Context(), oID)
	}
	w.WriteHeader(http.StatusNoContent)
}
