package favorites

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/store"
)

type fakeQueries struct {
	products map[string]store.Product
	favs     map[string]bool
}

func favKey(userID, productID pgtype.UUID) string {
	return store.UUIDString(userID) + "/" + store.UUIDString(productID)
}

func (f *fakeQueries) AddFavorite(_ context.Context, userID, productID pgtype.UUID) error {
	f.favs[favKey(userID, productID)] = true
	return nil
}

func (f *fakeQueries) RemoveFavorite(_ context.Context, userID, productID pgtype.UUID) error {
	delete(f.favs, favKey(userID, productID))
	return nil
}

func (f *fakeQueries) IsFavorite(_ context.Context, userID, productID pgtype.UUID) (bool, error) {
	return f.favs[favKey(userID, productID)], nil
}

func (f *fakeQueries) ListFavorites(_ context.Context, _ pgtype.UUID) ([]store.FavoriteProduct, error) {
	return nil, nil
}

func (f *fakeQueries) GetProductByID(_ context.Context, id pgtype.UUID) (store.Product, error) {
	p, ok := f.products[store.UUIDString(id)]
	if !ok {
		return store.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func TestToggleAddsThenRemoves(t *testing.T) {
	userID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	productID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	q := &fakeQueries{
		products: map[string]store.Product{store.UUIDString(productID): {ID: productID}},
		favs:     map[string]bool{},
	}
	svc := &Service{Q: q}

	favorited, err := svc.Toggle(context.Background(), userID, productID)
	require.NoError(t, err)
	require.True(t, favorited)

	favorited, err = svc.Toggle(context.Background(), userID, productID)
	require.NoError(t, err)
	require.False(t, favorited)
	require.Empty(t, q.favs)
}

func TestToggleRejectsUnknownProduct(t *testing.T) {
	userID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	q := &fakeQueries{products: map[string]store.Product{}, favs: map[string]bool{}}
	svc := &Service{Q: q}

	_, err := svc.Toggle(context.Background(), userID, pgtype.UUID{Bytes: uuid.New(), Valid: true})
	require.ErrorIs(t, err, pgx.ErrNoRows)
}
