package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/pricing"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type queryProvider interface {
	ListProducts(ctx context.Context, limit, offset int32) ([]store.Product, error)
	CountProducts(ctx context.Context) (int64, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
	ListTiersByProduct(ctx context.Context, productID pgtype.UUID) ([]store.PriceTier, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures pagination for product listing.
type ListParams struct {
	Page  int
	Limit int
}

// PriceTier is the public shape of a volume-discount tier.
type PriceTier struct {
	MinQty    int32 `json:"min_qty"`
	UnitPrice int64 `json:"unit_price"`
}

// ProductListItem represents an entry in list responses.
type ProductListItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	BasePrice int64  `json:"base_price"`
	InStock   bool   `json:"in_stock"`
}

// ProductDetail aggregates the full detail payload including tiers.
type ProductDetail struct {
	ID          string      `json:"id"`
	SupplierID  string      `json:"supplier_id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description,omitempty"`
	BasePrice   int64       `json:"base_price"`
	Stock       int32       `json:"stock"`
	InStock     bool        `json:"in_stock"`
	Tiers       []PriceTier `json:"tiers"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductListItem
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into pagination parameters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit
	return params, nil
}

// ListProducts returns the active product list with pagination metadata.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, shouldUseCache := s.listCacheKey(params)
	if shouldUseCache && s.cache != nil {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	total, err := s.queries.CountProducts(ctx)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	offset := int32((params.Page - 1) * params.Limit)
	if offset < 0 {
		offset = 0
	}
	rows, err := s.queries.ListProducts(ctx, int32(params.Limit), offset)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ProductListItem{
			ID:        store.UUIDString(row.ID),
			Title:     row.Title,
			Slug:      row.Slug,
			BasePrice: row.BasePrice,
			InStock:   row.Stock > 0,
		})
	}
	result := ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if shouldUseCache && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return result, nil
}

// GetProductDetail returns the product with its volume-discount tiers.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductDetail{}, badRequest("slug", "slug is required", nil)
	}
	cacheKey := detailCacheKey(slug)
	if s.cache != nil {
		var cached ProductDetail
		ok, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	product, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductDetail{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return ProductDetail{}, fmt.Errorf("get product by slug: %w", err)
	}
	if !product.Active {
		return ProductDetail{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound}
	}
	tiers, err := s.queries.ListTiersByProduct(ctx, product.ID)
	if err != nil {
		return ProductDetail{}, fmt.Errorf("list price tiers: %w", err)
	}
	detail := ProductDetail{
		ID:         store.UUIDString(product.ID),
		SupplierID: store.UUIDString(product.SupplierID),
		Title:      product.Title,
		Slug:       product.Slug,
		BasePrice:  product.BasePrice,
		Stock:      product.Stock,
		InStock:    product.Stock > 0,
		Tiers:      make([]PriceTier, 0, len(tiers)),
	}
	if product.Description.Valid {
		detail.Description = product.Description.String
	}
	if product.CreatedAt.Valid {
		detail.CreatedAt = product.CreatedAt.Time
	}
	for _, tier := range tiers {
		detail.Tiers = append(detail.Tiers, PriceTier{MinQty: tier.MinQty, UnitPrice: tier.UnitPrice})
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cacheKey, detail)
	}
	return detail, nil
}

// QuoteUnitPrice resolves the effective unit price for a quantity against the
// product's tier ladder.
func (s *Service) QuoteUnitPrice(ctx context.Context, slug string, qty int32) (pricing.Money, error) {
	detail, err := s.GetProductDetail(ctx, slug)
	if err != nil {
		return 0, err
	}
	tiers := make([]pricing.Tier, 0, len(detail.Tiers))
	for _, t := range detail.Tiers {
		tiers = append(tiers, pricing.Tier{MinQty: t.MinQty, UnitPrice: t.UnitPrice})
	}
	return pricing.ResolveUnitPrice(qty, tiers, detail.BasePrice), nil
}

type cachedList struct {
	Items []ProductListItem `json:"items"`
	Total int64             `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != s.defaultPage || params.Limit != s.defaultLimit {
		return "", false
	}
	return "catalog:products:list:front", true
}

func detailCacheKey(slug string) string {
	return "catalog:products:detail:" + slug
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
