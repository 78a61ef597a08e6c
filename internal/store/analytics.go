package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// SalesDailyRow aggregates order volume and paid revenue for one day.
type SalesDailyRow struct {
	Day        pgtype.Timestamptz `json:"day"`
	PaidOrders int64              `json:"paid_orders"`
	AllOrders  int64              `json:"all_orders"`
	Revenue    int64              `json:"revenue"`
}

const getSalesDailyRangeSQL = `
SELECT date_trunc('day', created_at) AS day,
    count(*) FILTER (WHERE status = 'PAID') AS paid_orders,
    count(*) AS all_orders,
    coalesce(sum(total) FILTER (WHERE status = 'PAID'), 0) AS revenue
FROM orders
WHERE created_at >= $1 AND created_at < $2
GROUP BY 1
ORDER BY 1`

type GetSalesDailyRangeParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

func (q *Queries) GetSalesDailyRange(ctx context.Context, arg GetSalesDailyRangeParams) ([]SalesDailyRow, error) {
	rows, err := q.db.Query(ctx, getSalesDailyRangeSQL, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesDailyRow
	for rows.Next() {
		var r SalesDailyRow
		if err := rows.Scan(&r.Day, &r.PaidOrders, &r.AllOrders, &r.Revenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopProductRow ranks a product by units sold across paid orders.
type TopProductRow struct {
	ProductID pgtype.UUID `json:"product_id"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	UnitsSold int64       `json:"units_sold"`
	Revenue   int64       `json:"revenue"`
}

const getTopProductsSQL = `
SELECT oi.product_id, oi.slug, oi.title,
    coalesce(sum(oi.qty), 0) AS units_sold,
    coalesce(sum(oi.subtotal), 0) AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id AND o.status = 'PAID'
GROUP BY oi.product_id, oi.slug, oi.title
ORDER BY units_sold DESC, revenue DESC
LIMIT $1 OFFSET $2`

type GetTopProductsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) GetTopProducts(ctx context.Context, arg GetTopProductsParams) ([]TopProductRow, error) {
	rows, err := q.db.Query(ctx, getTopProductsSQL, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductID, &r.Slug, &r.Title, &r.UnitsSold, &r.Revenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
