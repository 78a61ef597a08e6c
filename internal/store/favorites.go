package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// FavoriteProduct is a favorited product joined with its listing data.
type FavoriteProduct struct {
	ProductID pgtype.UUID        `json:"product_id"`
	Slug      string             `json:"slug"`
	Title     string             `json:"title"`
	BasePrice int64              `json:"base_price"`
	Stock     int32              `json:"stock"`
	Active    bool               `json:"active"`
	AddedAt   pgtype.Timestamptz `json:"added_at"`
}

const addFavoriteSQL = `
INSERT INTO favorites (user_id, product_id)
VALUES ($1, $2)
ON CONFLICT (user_id, product_id) DO NOTHING`

func (q *Queries) AddFavorite(ctx context.Context, userID, productID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, addFavoriteSQL, userID, productID)
	return err
}

const removeFavoriteSQL = `
DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`

func (q *Queries) RemoveFavorite(ctx context.Context, userID, productID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, removeFavoriteSQL, userID, productID)
	return err
}

const isFavoriteSQL = `
SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`

func (q *Queries) IsFavorite(ctx context.Context, userID, productID pgtype.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, isFavoriteSQL, userID, productID).Scan(&exists)
	return exists, err
}

const listFavoritesSQL = `
SELECT f.product_id, p.slug, p.title, p.base_price, p.stock, p.active, f.created_at
FROM favorites f
JOIN products p ON p.id = f.product_id
WHERE f.user_id = $1
ORDER BY f.created_at DESC`

func (q *Queries) ListFavorites(ctx context.Context, userID pgtype.UUID) ([]FavoriteProduct, error) {
	rows, err := q.db.Query(ctx, listFavoritesSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FavoriteProduct
	for rows.Next() {
		var f FavoriteProduct
		if err := rows.Scan(&f.ProductID, &f.Slug, &f.Title, &f.BasePrice, &f.Stock, &f.Active, &f.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
