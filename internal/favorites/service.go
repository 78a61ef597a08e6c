package favorites

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/store"
)

type queries interface {
	AddFavorite(ctx context.Context, userID, productID pgtype.UUID) error
	RemoveFavorite(ctx context.Context, userID, productID pgtype.UUID) error
	IsFavorite(ctx context.Context, userID, productID pgtype.UUID) (bool, error)
	ListFavorites(ctx context.Context, userID pgtype.UUID) ([]store.FavoriteProduct, error)
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.Product, error)
}

// Service manages a buyer's favorite products.
type Service struct {
	Q queries
}

// Toggle flips the favorite state for a product and reports the new state.
func (s *Service) Toggle(ctx context.Context, userID, productID pgtype.UUID) (bool, error) {
	if _, err := s.Q.GetProductByID(ctx, productID); err != nil {
		return false, err
	}
	exists, err := s.Q.IsFavorite(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, s.Q.RemoveFavorite(ctx, userID, productID)
	}
	return true, s.Q.AddFavorite(ctx, userID, productID)
}

// List returns the user's favorites, newest first.
func (s *Service) List(ctx context.Context, userID pgtype.UUID) ([]store.FavoriteProduct, error) {
	return s.Q.ListFavorites(ctx, userID)
}

// Check reports whether the product is in the user's favorites.
func (s *Service) Check(ctx context.Context, userID, productID pgtype.UUID) (bool, error) {
	return s.Q.IsFavorite(ctx, userID, productID)
}
