package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOrderSQL = `
INSERT INTO orders (user_id, cart_id, status, currency, subtotal, shipping, fee, total, payment_method, shipping_address, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, user_id, cart_id, status, currency, subtotal, shipping, fee, total, payment_method, shipping_address, notes, created_at, updated_at`

type CreateOrderParams struct {
	UserID        pgtype.UUID
	CartID        pgtype.UUID
	Status        OrderStatus
	Currency      string
	Subtotal      int64
	Shipping      int64
	Fee           int64
	Total         int64
	PaymentMethod pgtype.Text
	ShippingAddr  []byte
	Notes         pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrderSQL,
		arg.UserID, arg.CartID, arg.Status, arg.Currency,
		arg.Subtotal, arg.Shipping, arg.Fee, arg.Total,
		arg.PaymentMethod, arg.ShippingAddr, arg.Notes)
	return scanOrder(row)
}

const getOrderByIDSQL = `
SELECT id, user_id, cart_id, status, currency, subtotal, shipping, fee, total, payment_method, shipping_address, notes, created_at, updated_at
FROM orders WHERE id = $1`

func (q *Queries) GetOrderByID(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByIDSQL, id))
}

const getOrderByIDForUserSQL = `
SELECT id, user_id, cart_id, status, currency, subtotal, shipping, fee, total, payment_method, shipping_address, notes, created_at, updated_at
FROM orders WHERE id = $1 AND user_id = $2`

type GetOrderByIDForUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) GetOrderByIDForUser(ctx context.Context, arg GetOrderByIDForUserParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByIDForUserSQL, arg.ID, arg.UserID))
}

const listOrdersByUserSQL = `
SELECT id, user_id, cart_id, status, currency, subtotal, shipping, fee, total, payment_method, shipping_address, notes, created_at, updated_at
FROM orders WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUserSQL, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const countOrdersByUserSQL = `
SELECT count(*) FROM orders WHERE user_id = $1`

func (q *Queries) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&total)
	return total, err
}

const updateOrderStatusSQL = `
UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

type UpdateOrderStatusParams struct {
	ID     pgtype.UUID
	Status OrderStatus
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error {
	_, err := q.db.Exec(ctx, updateOrderStatusSQL, arg.ID, arg.Status)
	return err
}

const createOrderItemSQL = `
INSERT INTO order_items (order_id, product_id, title, slug, qty, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

type CreateOrderItemParams struct {
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, createOrderItemSQL,
		arg.OrderID, arg.ProductID, arg.Title, arg.Slug, arg.Qty, arg.UnitPrice, arg.Subtotal)
	return err
}

const listOrderItemsSQL = `
SELECT id, order_id, product_id, title, slug, qty, unit_price, subtotal
FROM order_items WHERE order_id = $1
ORDER BY id`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.Slug, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const decrementProductStockSQL = `
UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

type DecrementProductStockParams struct {
	ID  pgtype.UUID
	Qty int32
}

func (q *Queries) DecrementProductStock(ctx context.Context, arg DecrementProductStockParams) error {
	_, err := q.db.Exec(ctx, decrementProductStockSQL, arg.ID, arg.Qty)
	return err
}

const restockOrderItemsSQL = `
UPDATE products p SET stock = p.stock + oi.qty
FROM order_items oi
WHERE oi.order_id = $1 AND oi.product_id = p.id`

// RestockOrderItems returns reserved stock to the catalog when an order is
// canceled before settlement.
func (q *Queries) RestockOrderItems(ctx context.Context, orderID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, restockOrderItemsSQL, orderID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency,
		&o.Subtotal, &o.Shipping, &o.Fee, &o.Total,
		&o.PaymentMethod, &o.ShippingAddr, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
