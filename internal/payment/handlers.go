package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// Handler exposes HTTP endpoints for payment intents and status polling.
type Handler struct {
	Svc *Service
	Q   *store.Queries
}

type intentReq struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

type intentResp struct {
	Provider    string     `json:"provider"`
	Token       string     `json:"token,omitempty"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	Amount      int64      `json:"amount"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Intent creates (or reuses) a payment intent for the authenticated user's order.
func (h *Handler) Intent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var req intentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.OrderID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order_id is required", nil)
		return
	}
	orderUUID, err := store.ToUUID(req.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order_id", nil)
		return
	}
	userUUID, err := store.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user", nil)
		return
	}
	order, err := h.Q.GetOrderByIDForUser(r.Context(), store.GetOrderByIDForUserParams{ID: orderUUID, UserID: userUUID})
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	method := req.Method
	if strings.TrimSpace(method) == "" && order.PaymentMethod.Valid {
		method = order.PaymentMethod.String
	}
	payment, err := h.Svc.CreateIntent(r.Context(), req.OrderID, order.Total, method)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusGatewayTimeout
		}
		common.JSONError(w, status, "INTENT_FAILED", err.Error(), nil)
		return
	}
	resp := intentResp{
		Provider:    payment.Provider.String,
		Token:       payment.IntentToken.String,
		RedirectURL: payment.RedirectURL.String,
	}
	if payment.Amount.Valid {
		resp.Amount = payment.Amount.Int64
	}
	if payment.ExpiresAt.Valid {
		t := payment.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	common.JSON(w, http.StatusOK, resp)
}

// Status reports the consolidated payment status for an order belonging to the authenticated user.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderId is required", nil)
		return
	}
	orderUUID, err := store.ToUUID(orderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid orderId", nil)
		return
	}
	userUUID, err := store.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user", nil)
		return
	}
	if _, err := h.Q.GetOrderByIDForUser(r.Context(), store.GetOrderByIDForUserParams{ID: orderUUID, UserID: userUUID}); err != nil {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	status, err := h.Svc.ConsolidatedStatus(r.Context(), orderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "STATUS_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{"status": status})
}
