package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// SupplierHandler exposes product management for supplier accounts.
type SupplierHandler struct {
	Q        *store.Queries
	Pool     *pgxpool.Pool
	Validate *validator.Validate
}

type tierInput struct {
	MinQty    int32 `json:"min_qty" validate:"required,min=1"`
	UnitPrice int64 `json:"unit_price" validate:"required,min=0"`
}

type createProductRequest struct {
	Slug        string      `json:"slug"`
	Title       string      `json:"title" validate:"required,min=3"`
	Description string      `json:"description"`
	BasePrice   int64       `json:"base_price" validate:"required,min=0"`
	Stock       int32       `json:"stock" validate:"min=0"`
	Tiers       []tierInput `json:"tiers" validate:"dive"`
}

// CreateProduct handles POST /api/v1/supplier/products, inserting the listing
// and its volume tiers in one transaction.
func (h *SupplierHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil || h.Pool == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	supplierIDStr, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	supplierID, err := store.ToUUID(supplierIDStr)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = Slugify(req.Title)
	}
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "slug could not be derived from title", nil)
		return
	}
	for i := 1; i < len(req.Tiers); i++ {
		if req.Tiers[i].MinQty <= req.Tiers[i-1].MinQty {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "tiers must have strictly increasing min_qty", nil)
			return
		}
	}

	tx, err := h.Pool.BeginTx(r.Context(), pgx.TxOptions{})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create product", nil)
		return
	}
	defer func() {
		_ = tx.Rollback(r.Context())
	}()

	qtx := h.Q.WithTx(tx)
	description := pgtype.Text{}
	if trimmed := strings.TrimSpace(req.Description); trimmed != "" {
		description = pgtype.Text{String: trimmed, Valid: true}
	}
	product, err := qtx.CreateProduct(r.Context(), store.CreateProductParams{
		SupplierID:  supplierID,
		Slug:        slug,
		Title:       strings.TrimSpace(req.Title),
		Description: description,
		BasePrice:   req.BasePrice,
		Stock:       req.Stock,
		Active:      true,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "slug already in use", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create product", nil)
		return
	}
	for i, tier := range req.Tiers {
		if err := qtx.CreatePriceTier(r.Context(), store.CreatePriceTierParams{
			ProductID: product.ID,
			MinQty:    tier.MinQty,
			UnitPrice: tier.UnitPrice,
			Position:  int32(i),
		}); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create product", nil)
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create product", nil)
		return
	}

	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"id":         store.UUIDString(product.ID),
			"slug":       product.Slug,
			"title":      product.Title,
			"base_price": product.BasePrice,
			"stock":      product.Stock,
			"tiers":      len(req.Tiers),
		},
	})
}

func (h *SupplierHandler) validate(payload any) error {
	v := h.Validate
	if v == nil {
		v = validator.New()
	}
	return v.Struct(payload)
}

var slugStripper = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowers a title into a URL-safe slug.
func Slugify(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")
	lowered = replacer.Replace(lowered)
	return strings.Trim(slugStripper.ReplaceAllString(lowered, "-"), "-")
}
