package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/catalog"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type productsResponse struct {
	Data       []catalog.ProductListItem `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalItems int `json:"total_items"`
	} `json:"pagination"`
}

type productDetailResponse struct {
	Data catalog.ProductDetail `json:"data"`
}

type quoteResponse struct {
	Data struct {
		Qty       int   `json:"qty"`
		UnitPrice int64 `json:"unit_price"`
		Subtotal  int64 `json:"subtotal"`
	} `json:"data"`
}

func TestCatalogHandlers(t *testing.T) {
	queries := newFakeCatalogQueries(t)
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		DefaultPage:  1,
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)

	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})

	t.Run("products list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=1", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

		var resp productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Polera Corporativa", resp.Data[0].Title)
		require.Equal(t, int64(5000), resp.Data[0].BasePrice)
		require.Equal(t, 1, resp.Pagination.Page)
		require.Equal(t, 1, resp.Pagination.PerPage)
		require.Equal(t, 2, resp.Pagination.TotalItems)
	})

	t.Run("product detail includes tiers", func(t *testing.T) {
		req := requestWithSlug(http.MethodGet, "/api/v1/products/polera-corporativa", "polera-corporativa")
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp productDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Polera Corporativa", resp.Data.Title)
		require.Len(t, resp.Data.Tiers, 2)
		require.Equal(t, int32(10), resp.Data.Tiers[0].MinQty)
		require.Equal(t, int64(4500), resp.Data.Tiers[0].UnitPrice)
	})

	t.Run("detail of inactive product is not found", func(t *testing.T) {
		req := requestWithSlug(http.MethodGet, "/api/v1/products/descontinuado", "descontinuado")
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("quote resolves tiered price", func(t *testing.T) {
		req := requestWithSlug(http.MethodGet, "/api/v1/products/polera-corporativa/quote?qty=25", "polera-corporativa")
		rec := httptest.NewRecorder()
		handler.Quote(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp quoteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 25, resp.Data.Qty)
		require.Equal(t, int64(4000), resp.Data.UnitPrice)
		require.Equal(t, int64(100000), resp.Data.Subtotal)
	})

	t.Run("quote below every tier falls back to base price", func(t *testing.T) {
		req := requestWithSlug(http.MethodGet, "/api/v1/products/polera-corporativa/quote?qty=3", "polera-corporativa")
		rec := httptest.NewRecorder()
		handler.Quote(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp quoteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(5000), resp.Data.UnitPrice)
	})
}

func requestWithSlug(method, target, slug string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("slug", slug)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type fakeCatalogQueries struct {
	products map[string]store.Product
	order    []string
	tiers    map[string][]store.PriceTier
}

func newFakeCatalogQueries(t *testing.T) *fakeCatalogQueries {
	t.Helper()
	supplierID := mustUUID(t, "11111111-1111-1111-1111-111111111111")
	poleraID := mustUUID(t, "22222222-2222-2222-2222-222222222222")
	tazaID := mustUUID(t, "33333333-3333-3333-3333-333333333333")
	inactiveID := mustUUID(t, "44444444-4444-4444-4444-444444444444")
	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}

	return &fakeCatalogQueries{
		order: []string{"polera-corporativa", "taza-logo"},
		products: map[string]store.Product{
			"polera-corporativa": {
				ID: poleraID, SupplierID: supplierID,
				Slug: "polera-corporativa", Title: "Polera Corporativa",
				BasePrice: 5000, Stock: 120, Active: true, CreatedAt: now,
			},
			"taza-logo": {
				ID: tazaID, SupplierID: supplierID,
				Slug: "taza-logo", Title: "Taza con Logo",
				BasePrice: 2500, Stock: 0, Active: true, CreatedAt: now,
			},
			"descontinuado": {
				ID: inactiveID, SupplierID: supplierID,
				Slug: "descontinuado", Title: "Descontinuado",
				BasePrice: 1000, Stock: 5, Active: false, CreatedAt: now,
			},
		},
		tiers: map[string][]store.PriceTier{
			store.UUIDString(poleraID): {
				{ProductID: poleraID, MinQty: 10, UnitPrice: 4500, Position: 0},
				{ProductID: poleraID, MinQty: 20, UnitPrice: 4000, Position: 1},
			},
		},
	}
}

func (f *fakeCatalogQueries) ListProducts(_ context.Context, limit, offset int32) ([]store.Product, error) {
	var out []store.Product
	for _, slug := range f.order {
		out = append(out, f.products[slug])
	}
	start := int(offset)
	if start > len(out) {
		start = len(out)
	}
	end := start + int(limit)
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

func (f *fakeCatalogQueries) CountProducts(context.Context) (int64, error) {
	return int64(len(f.order)), nil
}

func (f *fakeCatalogQueries) GetProductBySlug(_ context.Context, slug string) (store.Product, error) {
	p, ok := f.products[slug]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeCatalogQueries) ListTiersByProduct(_ context.Context, productID pgtype.UUID) ([]store.PriceTier, error) {
	return append([]store.PriceTier(nil), f.tiers[store.UUIDString(productID)]...), nil
}

func mustUUID(t *testing.T, value string) pgtype.UUID {
	t.Helper()
	parsed, err := uuid.Parse(value)
	require.NoError(t, err)
	var id pgtype.UUID
	id.Bytes = parsed
	id.Valid = true
	return id
}
