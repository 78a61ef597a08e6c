package favorites

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// Handler exposes the buyer favorites endpoints.
type Handler struct {
	Svc *Service
}

// List returns the authenticated buyer's favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "favorites not configured", nil)
		return
	}
	userIDStr, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	userID, err := store.ToUUID(userIDStr)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	favs, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list favorites", nil)
		return
	}
	if favs == nil {
		favs = []store.FavoriteProduct{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": favs})
}

// Toggle adds or removes a product from the buyer's favorites.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "favorites not configured", nil)
		return
	}
	userIDStr, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	userID, err := store.ToUUID(userIDStr)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var payload struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	productID, err := store.ToUUID(payload.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	favorited, err := h.Svc.Toggle(r.Context(), userID, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update favorites", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": favorited}})
}

// Check reports whether a product is among the buyer's favorites. Anonymous
// callers always get false.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "favorites not configured", nil)
		return
	}
	productID, err := store.ToUUID(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	userIDStr, ok := common.UserID(r.Context())
	if !ok {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": false}})
		return
	}
	userID, err := store.ToUUID(userIDStr)
	if err != nil {
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": false}})
		return
	}
	favorited, err := h.Svc.Check(r.Context(), userID, productID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to check favorite", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]bool{"favorited": favorited}})
}
