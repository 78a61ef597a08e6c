package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/pricing"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Service encapsulates cart domain operations.
type Service struct {
	Q   *store.Queries
	TTL time.Duration
	Now func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// EnsureCart loads or creates a cart for the provided identifiers.
func (s *Service) EnsureCart(ctx context.Context, userID *string, anonID *string) (store.Cart, error) {
	if s == nil || s.Q == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}

	if userID != nil && *userID != "" {
		uid, err := store.ToUUID(*userID)
		if err != nil {
			return store.Cart{}, fmt.Errorf("parse user id: %w", err)
		}
		cart, err := s.Q.GetActiveCartByUser(ctx, uid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, store.CreateCartParams{
					UserID:    uid,
					AnonID:    pgtype.Text{},
					ExpiresAt: expires,
				})
			}
			return store.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
		return cart, nil
	}

	if anonID != nil && *anonID != "" {
		cart, err := s.Q.GetActiveCartByAnon(ctx, pgtype.Text{String: *anonID, Valid: true})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.Q.CreateCart(ctx, store.CreateCartParams{
					UserID:    pgtype.UUID{},
					AnonID:    pgtype.Text{String: *anonID, Valid: true},
					ExpiresAt: expires,
				})
			}
			return store.Cart{}, err
		}
		_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cart.ID, ExpiresAt: expires})
		return cart, nil
	}

	return store.Cart{}, ErrInvalidInput
}

// AddItem inserts a cart line or merges quantities into an existing line for
// the same product. The unit price is re-resolved against the product's tier
// ladder at the merged quantity, so crossing a tier boundary reprices the
// whole line.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	cID, err := store.ToUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	pID, err := store.ToUUID(productID)
	if err != nil {
		return fmt.Errorf("parse product id: %w", err)
	}

	product, err := s.Q.GetProductByID(ctx, pID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !product.Active {
		return fmt.Errorf("product not available: %w", ErrInvalidInput)
	}
	if product.Stock <= 0 {
		return fmt.Errorf("product out of stock: %w", ErrInvalidInput)
	}
	tiers, err := s.tiersFor(ctx, pID)
	if err != nil {
		return err
	}

	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	item, err := s.Q.FindCartItemByProduct(ctx, store.FindCartItemByProductParams{
		CartID:    cID,
		ProductID: pID,
	})
	if err == nil {
		newQty := item.Qty + int32(qty)
		unitPrice := pricing.ResolveUnitPrice(newQty, tiers, product.BasePrice)
		if err := s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
			ID:        item.ID,
			Qty:       newQty,
			UnitPrice: unitPrice,
			Subtotal:  int64(newQty) * unitPrice,
		}); err != nil {
			return err
		}
		_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	unitPrice := pricing.ResolveUnitPrice(int32(qty), tiers, product.BasePrice)
	if _, err := s.Q.CreateCartItem(ctx, store.CreateCartItemParams{
		CartID:    cID,
		ProductID: pID,
		Title:     product.Title,
		Slug:      product.Slug,
		Qty:       int32(qty),
		UnitPrice: unitPrice,
		Subtotal:  int64(qty) * unitPrice,
	}); err != nil {
		return err
	}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
	return nil
}

// UpdateQty sets an absolute quantity for a cart line, repricing it against
// the product's tiers.
func (s *Service) UpdateQty(ctx context.Context, itemID string, qty int) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	id, err := store.ToUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	item, err := s.Q.GetCartItemByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	product, err := s.Q.GetProductByID(ctx, item.ProductID)
	if err != nil {
		return err
	}
	tiers, err := s.tiersFor(ctx, item.ProductID)
	if err != nil {
		return err
	}
	unitPrice := pricing.ResolveUnitPrice(int32(qty), tiers, product.BasePrice)
	if err := s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
		ID:        item.ID,
		Qty:       int32(qty),
		UnitPrice: unitPrice,
		Subtotal:  int64(qty) * unitPrice,
	}); err != nil {
		return err
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: item.CartID, ExpiresAt: expires})
	return nil
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID string) error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	cID, err := store.ToUUID(cartID)
	if err != nil {
		return fmt.Errorf("parse cart id: %w", err)
	}
	iID, err := store.ToUUID(itemID)
	if err != nil {
		return fmt.Errorf("parse item id: %w", err)
	}
	if err := s.Q.DeleteCartItem(ctx, store.DeleteCartItemParams{ID: iID, CartID: cID}); err != nil {
		return err
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: cID, ExpiresAt: expires})
	return nil
}

// Merge moves guest cart items into the user's active cart returning the
// resulting cart identifier. Quantities are summed per product and each
// merged line is repriced at the combined quantity.
func (s *Service) Merge(ctx context.Context, guestCartID, userID string) (string, error) {
	if s == nil || s.Q == nil {
		return "", errors.New("cart service not configured")
	}
	gID, err := store.ToUUID(guestCartID)
	if err != nil {
		return "", fmt.Errorf("parse guest cart id: %w", err)
	}
	guestCart, err := s.Q.GetCartByID(ctx, gID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	userIDCopy := userID
	userCart, err := s.EnsureCart(ctx, &userIDCopy, nil)
	if err != nil {
		return "", err
	}
	guestItems, err := s.Q.ListCartItems(ctx, gID)
	if err != nil {
		return "", err
	}
	for _, item := range guestItems {
		product, err := s.Q.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return "", err
		}
		tiers, err := s.tiersFor(ctx, item.ProductID)
		if err != nil {
			return "", err
		}
		existing, err := s.Q.FindCartItemByProduct(ctx, store.FindCartItemByProductParams{
			CartID:    userCart.ID,
			ProductID: item.ProductID,
		})
		if err == nil {
			mergedQty := existing.Qty + item.Qty
			unitPrice := pricing.ResolveUnitPrice(mergedQty, tiers, product.BasePrice)
			if err := s.Q.UpdateCartItemQty(ctx, store.UpdateCartItemQtyParams{
				ID:        existing.ID,
				Qty:       mergedQty,
				UnitPrice: unitPrice,
				Subtotal:  int64(mergedQty) * unitPrice,
			}); err != nil {
				return "", err
			}
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", err
		}
		unitPrice := pricing.ResolveUnitPrice(item.Qty, tiers, product.BasePrice)
		if _, err := s.Q.CreateCartItem(ctx, store.CreateCartItemParams{
			CartID:    userCart.ID,
			ProductID: item.ProductID,
			Title:     item.Title,
			Slug:      item.Slug,
			Qty:       item.Qty,
			UnitPrice: unitPrice,
			Subtotal:  int64(item.Qty) * unitPrice,
		}); err != nil {
			return "", err
		}
	}
	expires := pgtype.Timestamptz{Time: s.now().Add(s.ttl()), Valid: true}
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: userCart.ID, ExpiresAt: expires})
	// Retire the guest cart immediately.
	_ = s.Q.TouchCart(ctx, store.TouchCartParams{ID: guestCart.ID, ExpiresAt: pgtype.Timestamptz{Time: s.now(), Valid: true}})
	return store.UUIDString(userCart.ID), nil
}

// Summary returns the cart's lines and their subtotal.
func (s *Service) Summary(ctx context.Context, cartID string) ([]store.CartItem, int64, error) {
	if s == nil || s.Q == nil {
		return nil, 0, errors.New("cart service not configured")
	}
	cID, err := store.ToUUID(cartID)
	if err != nil {
		return nil, 0, fmt.Errorf("parse cart id: %w", err)
	}
	items, err := s.Q.ListCartItems(ctx, cID)
	if err != nil {
		return nil, 0, err
	}
	var subtotal int64
	for _, it := range items {
		subtotal += it.Subtotal
	}
	return items, subtotal, nil
}

func (s *Service) tiersFor(ctx context.Context, productID pgtype.UUID) ([]pricing.Tier, error) {
	rows, err := s.Q.ListTiersByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	tiers := make([]pricing.Tier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, pricing.Tier{MinQty: row.MinQty, UnitPrice: row.UnitPrice})
	}
	return tiers, nil
}
