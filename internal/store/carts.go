package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createCartSQL = `
INSERT INTO carts (user_id, anon_id, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, anon_id, expires_at, created_at, updated_at`

type CreateCartParams struct {
	UserID    pgtype.UUID
	AnonID    pgtype.Text
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) CreateCart(ctx context.Context, arg CreateCartParams) (Cart, error) {
	row := q.db.QueryRow(ctx, createCartSQL, arg.UserID, arg.AnonID, arg.ExpiresAt)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getCartByIDSQL = `
SELECT id, user_id, anon_id, expires_at, created_at, updated_at
FROM carts WHERE id = $1`

func (q *Queries) GetCartByID(ctx context.Context, id pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, getCartByIDSQL, id)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getActiveCartByUserSQL = `
SELECT id, user_id, anon_id, expires_at, created_at, updated_at
FROM carts
WHERE user_id = $1 AND expires_at > now()
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetActiveCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	row := q.db.QueryRow(ctx, getActiveCartByUserSQL, userID)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getActiveCartByAnonSQL = `
SELECT id, user_id, anon_id, expires_at, created_at, updated_at
FROM carts
WHERE anon_id = $1 AND expires_at > now()
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetActiveCartByAnon(ctx context.Context, anonID pgtype.Text) (Cart, error) {
	row := q.db.QueryRow(ctx, getActiveCartByAnonSQL, anonID)
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const transferCartToUserSQL = `
UPDATE carts SET user_id = $2, anon_id = NULL, updated_at = now() WHERE id = $1`

type TransferCartToUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) TransferCartToUser(ctx context.Context, arg TransferCartToUserParams) error {
	_, err := q.db.Exec(ctx, transferCartToUserSQL, arg.ID, arg.UserID)
	return err
}

const touchCartSQL = `
UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`

type TouchCartParams struct {
	ID        pgtype.UUID
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) TouchCart(ctx context.Context, arg TouchCartParams) error {
	_, err := q.db.Exec(ctx, touchCartSQL, arg.ID, arg.ExpiresAt)
	return err
}

const listCartItemsSQL = `
SELECT id, cart_id, product_id, title, slug, qty, unit_price, subtotal
FROM cart_items WHERE cart_id = $1
ORDER BY id`

func (q *Queries) ListCartItems(ctx context.Context, cartID pgtype.UUID) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const findCartItemByProductSQL = `
SELECT id, cart_id, product_id, title, slug, qty, unit_price, subtotal
FROM cart_items WHERE cart_id = $1 AND product_id = $2`

type FindCartItemByProductParams struct {
	CartID    pgtype.UUID
	ProductID pgtype.UUID
}

func (q *Queries) FindCartItemByProduct(ctx context.Context, arg FindCartItemByProductParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, findCartItemByProductSQL, arg.CartID, arg.ProductID)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal)
	return it, err
}

const getCartItemByIDSQL = `
SELECT id, cart_id, product_id, title, slug, qty, unit_price, subtotal
FROM cart_items WHERE id = $1`

func (q *Queries) GetCartItemByID(ctx context.Context, id pgtype.UUID) (CartItem, error) {
	row := q.db.QueryRow(ctx, getCartItemByIDSQL, id)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal)
	return it, err
}

const createCartItemSQL = `
INSERT INTO cart_items (cart_id, product_id, title, slug, qty, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, cart_id, product_id, title, slug, qty, unit_price, subtotal`

type CreateCartItemParams struct {
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

func (q *Queries) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, createCartItemSQL,
		arg.CartID, arg.ProductID, arg.Title, arg.Slug, arg.Qty, arg.UnitPrice, arg.Subtotal)
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal)
	return it, err
}

const updateCartItemQtySQL = `
UPDATE cart_items SET qty = $2, unit_price = $3, subtotal = $4 WHERE id = $1`

type UpdateCartItemQtyParams struct {
	ID        pgtype.UUID
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

func (q *Queries) UpdateCartItemQty(ctx context.Context, arg UpdateCartItemQtyParams) error {
	_, err := q.db.Exec(ctx, updateCartItemQtySQL, arg.ID, arg.Qty, arg.UnitPrice, arg.Subtotal)
	return err
}

const deleteCartItemSQL = `
DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

type DeleteCartItemParams struct {
	ID     pgtype.UUID
	CartID pgtype.UUID
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	_, err := q.db.Exec(ctx, deleteCartItemSQL, arg.ID, arg.CartID)
	return err
}
