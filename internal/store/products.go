package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listProductsSQL = `
SELECT id, supplier_id, slug, title, description, base_price, stock, active, created_at
FROM products
WHERE active
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

func (q *Queries) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProductsSQL, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.Slug, &p.Title, &p.Description, &p.BasePrice, &p.Stock, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const countProductsSQL = `SELECT count(*) FROM products WHERE active`

func (q *Queries) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countProductsSQL).Scan(&n)
	return n, err
}

const getProductBySlugSQL = `
SELECT id, supplier_id, slug, title, description, base_price, stock, active, created_at
FROM products WHERE slug = $1`

func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := q.db.QueryRow(ctx, getProductBySlugSQL, slug)
	var p Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Slug, &p.Title, &p.Description, &p.BasePrice, &p.Stock, &p.Active, &p.CreatedAt)
	return p, err
}

const getProductByIDSQL = `
SELECT id, supplier_id, slug, title, description, base_price, stock, active, created_at
FROM products WHERE id = $1`

func (q *Queries) GetProductByID(ctx context.Context, id pgtype.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProductByIDSQL, id)
	var p Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Slug, &p.Title, &p.Description, &p.BasePrice, &p.Stock, &p.Active, &p.CreatedAt)
	return p, err
}

const listTiersByProductSQL = `
SELECT id, product_id, min_qty, unit_price, position
FROM price_tiers
WHERE product_id = $1
ORDER BY position ASC`

// ListTiersByProduct returns the product's volume-discount tiers in the order
// the supplier listed them. Tie-breaks in price resolution depend on this order.
func (q *Queries) ListTiersByProduct(ctx context.Context, productID pgtype.UUID) ([]PriceTier, error) {
	rows, err := q.db.Query(ctx, listTiersByProductSQL, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PriceTier
	for rows.Next() {
		var t PriceTier
		if err := rows.Scan(&t.ID, &t.ProductID, &t.MinQty, &t.UnitPrice, &t.Position); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const createProductSQL = `
INSERT INTO products (supplier_id, slug, title, description, base_price, stock, active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, supplier_id, slug, title, description, base_price, stock, active, created_at`

type CreateProductParams struct {
	SupplierID  pgtype.UUID
	Slug        string
	Title       string
	Description pgtype.Text
	BasePrice   int64
	Stock       int32
	Active      bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProductSQL,
		arg.SupplierID, arg.Slug, arg.Title, arg.Description, arg.BasePrice, arg.Stock, arg.Active)
	var p Product
	err := row.Scan(&p.ID, &p.SupplierID, &p.Slug, &p.Title, &p.Description, &p.BasePrice, &p.Stock, &p.Active, &p.CreatedAt)
	return p, err
}

const createPriceTierSQL = `
INSERT INTO price_tiers (product_id, min_qty, unit_price, position)
VALUES ($1, $2, $3, $4)`

type CreatePriceTierParams struct {
	ProductID pgtype.UUID
	MinQty    int32
	UnitPrice int64
	Position  int32
}

func (q *Queries) CreatePriceTier(ctx context.Context, arg CreatePriceTierParams) error {
	_, err := q.db.Exec(ctx, createPriceTierSQL, arg.ProductID, arg.MinQty, arg.UnitPrice, arg.Position)
	return err
}
