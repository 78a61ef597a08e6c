package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Q        *store.Queries
	Svc      *Service
	Currency string
}

// Create creates or returns a guest cart identifier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anon_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	cart, err := h.Svc.EnsureCart(r.Context(), nil, &anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cart_id": store.UUIDString(cart.ID),
			"anon_id": anonID,
		},
	})
}

// Get returns cart contents and the running subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart queries not configured", nil)
		return
	}
	idParam := chi.URLParam(r, "id")
	cID, err := store.ToUUID(idParam)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	cart, err := h.Q.GetCartByID(r.Context(), cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart", nil)
		return
	}
	now := time.Now()
	if h.Svc != nil {
		now = h.Svc.now()
	}
	if cart.ExpiresAt.Valid && cart.ExpiresAt.Time.Before(now) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart expired", nil)
		return
	}
	items, err := h.Q.ListCartItems(r.Context(), cID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart items", nil)
		return
	}
	responseItems := make([]map[string]any, 0, len(items))
	var subtotal int64
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
		subtotal += it.Subtotal
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":       store.UUIDString(cart.ID),
			"anon_id":  nullableText(cart.AnonID),
			"items":    responseItems,
			"subtotal": subtotal,
			"currency": h.Currency,
		},
	})
}

// GetActive resolves the current active cart for the user or anon ID.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	ctx := r.Context()

	var userID *string
	if uID, ok := common.UserID(ctx); ok && strings.TrimSpace(uID) != "" {
		userID = &uID
	}

	var anonID *string
	if aID := r.URL.Query().Get("anon_id"); strings.TrimSpace(aID) != "" {
		anonID = &aID
	}

	if userID == nil && anonID == nil {
		common.JSONError(w, http.StatusOK, "NO_CONTENT", "no active cart context", nil)
		return
	}

	cart, err := h.Svc.EnsureCart(ctx, userID, anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":      store.UUIDString(cart.ID),
			"anon_id": nullableText(cart.AnonID),
		},
	})
}

// AddItem adds or merges a cart line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	var payload struct {
		ProductID string `json:"product_id"`
		Qty       int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.ProductID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "product_id is required", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, payload.ProductID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// UpdateItem updates the quantity for a cart line item.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	itemID := chi.URLParam(r, "itemId")
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// RemoveItem deletes a cart item.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// Merge merges a guest cart into the authenticated user's cart.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload struct {
		CartID string `json:"cart_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.CartID = strings.TrimSpace(payload.CartID)
	if payload.CartID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart_id is required", nil)
		return
	}
	mergedID, err := h.Svc.Merge(r.Context(), payload.CartID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cart_id": mergedID}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func nullableText(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
