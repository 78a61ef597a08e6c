package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type Handler struct {
	Q      *store.Queries
	Events *events.Bus
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	offset := int32((page - 1) * perPage)
	uID, err := store.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	total, err := h.Q.CountOrdersByUser(r.Context(), uID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Q.ListOrdersByUser(r.Context(), store.ListOrdersByUserParams{UserID: uID, Limit: int32(perPage), Offset: offset})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	response := make([]map[string]any, 0, len(orders))
	for _, ord := range orders {
		response = append(response, map[string]any{
			"id":             store.UUIDString(ord.ID),
			"status":         ord.Status,
			"currency":       ord.Currency,
			"subtotal":       ord.Subtotal,
			"shipping":       ord.Shipping,
			"fee":            ord.Fee,
			"total":          ord.Total,
			"payment_method": nullableText(ord.PaymentMethod),
			"created_at":     ord.CreatedAt.Time,
		})
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": response,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	oID, err := store.ToUUID(orderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	uID, err := store.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	ord, err := h.Q.GetOrderByIDForUser(r.Context(), store.GetOrderByIDForUserParams{ID: oID, UserID: uID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), ord.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	responseItems := make([]map[string]any, 0, len(items))
	for _, it := range items {
		responseItems = append(responseItems, map[string]any{
			"id":         store.UUIDString(it.ID),
			"product_id": store.UUIDString(it.ProductID),
			"title":      it.Title,
			"slug":       it.Slug,
			"qty":        it.Qty,
			"unit_price": it.UnitPrice,
			"subtotal":   it.Subtotal,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":               store.UUIDString(ord.ID),
			"status":           ord.Status,
			"currency":         ord.Currency,
			"subtotal":         ord.Subtotal,
			"shipping":         ord.Shipping,
			"fee":              ord.Fee,
			"total":            ord.Total,
			"payment_method":   nullableText(ord.PaymentMethod),
			"created_at":       ord.CreatedAt.Time,
			"items":            responseItems,
			"notes":            nullableText(ord.Notes),
			"shipping_address": jsonValue(ord.ShippingAddr),
		},
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	oID, err := store.ToUUID(orderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	uID, err := store.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	ord, err := h.Q.GetOrderByIDForUser(r.Context(), store.GetOrderByIDForUserParams{ID: oID, UserID: uID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order lookup failed", nil)
		return
	}
	if ord.Status != store.OrderStatusPendingPayment {
		common.JSONError(w, http.StatusBadRequest, "INVALID_STATE", "only pending orders can be canceled", nil)
		return
	}
	if err := h.Q.UpdateOrderStatus(r.Context(), store.UpdateOrderStatusParams{ID: ord.ID, Status: store.OrderStatusCanceled}); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		return
	}
	_ = h.Q.RestockOrderItems(r.Context(), ord.ID)
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicOrderCanceled, ord.ID, map[string]any{
			"order_id": store.UUIDString(ord.ID),
			"user_id":  userID,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": string(store.OrderStatusCanceled)}})
}

func nullableText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func jsonValue(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return json.RawMessage(clone)
}
