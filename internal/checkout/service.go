package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/pricing"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// Addr is the shipping address captured at checkout.
type Addr struct {
	ReceiverName string `json:"receiver_name"`
	Phone        string `json:"phone"`
	Region       string `json:"region"`
	Comuna       string `json:"comuna"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
}

// Input is the checkout request payload.
type Input struct {
	CartID        string  `json:"cart_id"`
	Address       Addr    `json:"address"`
	Shipping      int64   `json:"shipping"`
	PaymentMethod string  `json:"payment_method"`
	Notes         *string `json:"notes"`
}

// Output is the checkout response payload.
type Output struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Subtotal      int64  `json:"subtotal"`
	Shipping      int64  `json:"shipping"`
	Fee           int64  `json:"fee"`
	Total         int64  `json:"total"`
	FreeShipping  bool   `json:"free_shipping"`
	PaymentMethod string `json:"payment_method"`
}

// Service turns a cart into a priced order inside one transaction.
type Service struct {
	Q        *store.Queries
	Pool     *pgxpool.Pool
	Currency string
	// Fees maps a payment method identifier to its commission policy.
	Fees   map[string]pricing.FeePolicy
	Events *events.Bus
	// FlatShipping is charged when the request does not carry an explicit
	// shipping amount.
	FlatShipping int64
}

// Create validates the cart, reprices every line against the product tiers,
// adds shipping and the payment-method fee, and persists the order with its
// items. Stock is decremented per line inside the same transaction.
func (s *Service) Create(ctx context.Context, userID *string, in Input) (Output, error) {
	if s == nil || s.Q == nil || s.Pool == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if userID == nil || *userID == "" {
		return Output{}, common.NewAppError("UNAUTHORIZED", "user is required for checkout", http.StatusUnauthorized, nil)
	}
	if in.CartID == "" {
		return Output{}, common.NewAppError("BAD_REQUEST", "cart_id is required", http.StatusBadRequest, nil)
	}
	method := strings.TrimSpace(strings.ToLower(in.PaymentMethod))
	fee, ok := s.Fees[method]
	if !ok {
		return Output{}, common.NewAppError("BAD_REQUEST", "unknown payment method", http.StatusBadRequest, nil)
	}
	cID, err := store.ToUUID(in.CartID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid cart id: %w", err)
	}
	uID, err := store.ToUUID(*userID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid user id: %w", err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Output{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	qtx := s.Q.WithTx(tx)

	cartRow, err := qtx.GetCartByID(ctx, cID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Output{}, common.NewAppError("NOT_FOUND", "cart not found", http.StatusNotFound, err)
		}
		return Output{}, err
	}
	if cartRow.UserID.Valid && !store.UUIDEqual(cartRow.UserID, uID) {
		return Output{}, common.NewAppError("FORBIDDEN", "cart does not belong to user", http.StatusForbidden, nil)
	}
	items, err := qtx.ListCartItems(ctx, cID)
	if err != nil {
		return Output{}, err
	}
	if len(items) == 0 {
		return Output{}, common.NewAppError("BAD_REQUEST", "cart is empty", http.StatusBadRequest, nil)
	}

	// Reprice every line from the catalog inside the transaction; stored
	// cart prices may predate tier changes.
	type pricedItem struct {
		item      store.CartItem
		unitPrice pricing.Money
	}
	lines := make([]pricing.Line, 0, len(items))
	priced := make([]pricedItem, 0, len(items))
	for _, it := range items {
		product, err := qtx.GetProductByID(ctx, it.ProductID)
		if err != nil {
			return Output{}, err
		}
		if product.Stock < it.Qty {
			return Output{}, common.NewAppError("OUT_OF_STOCK", fmt.Sprintf("insufficient stock for %s", product.Slug), http.StatusConflict, nil)
		}
		tierRows, err := qtx.ListTiersByProduct(ctx, it.ProductID)
		if err != nil {
			return Output{}, err
		}
		tiers := make([]pricing.Tier, 0, len(tierRows))
		for _, row := range tierRows {
			tiers = append(tiers, pricing.Tier{MinQty: row.MinQty, UnitPrice: row.UnitPrice})
		}
		lines = append(lines, pricing.Line{Qty: it.Qty, BasePrice: product.BasePrice, Tiers: tiers})
		priced = append(priced, pricedItem{item: it, unitPrice: pricing.ResolveUnitPrice(it.Qty, tiers, product.BasePrice)})
	}

	subtotal := pricing.Subtotal(lines)
	shipping := in.Shipping
	if shipping <= 0 {
		shipping = s.FlatShipping
	}
	summary := pricing.ComputeTotal(subtotal, shipping, fee)

	order, err := qtx.CreateOrder(ctx, store.CreateOrderParams{
		UserID:        uID,
		CartID:        cID,
		Status:        store.OrderStatusPendingPayment,
		Currency:      s.Currency,
		Subtotal:      summary.Subtotal,
		Shipping:      summary.Shipping,
		Fee:           summary.Fee,
		Total:         summary.Total,
		PaymentMethod: pgtype.Text{String: method, Valid: true},
		ShippingAddr:  toJSON(in.Address),
		Notes:         toNullableText(in.Notes),
	})
	if err != nil {
		return Output{}, err
	}
	for _, p := range priced {
		if err := qtx.CreateOrderItem(ctx, store.CreateOrderItemParams{
			OrderID:   order.ID,
			ProductID: p.item.ProductID,
			Title:     p.item.Title,
			Slug:      p.item.Slug,
			Qty:       p.item.Qty,
			UnitPrice: p.unitPrice,
			Subtotal:  int64(p.item.Qty) * p.unitPrice,
		}); err != nil {
			return Output{}, err
		}
		if err := qtx.DecrementProductStock(ctx, store.DecrementProductStockParams{
			ID:  p.item.ProductID,
			Qty: p.item.Qty,
		}); err != nil {
			return Output{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}

	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("created").Inc()
	}
	if s.Events != nil {
		payload := map[string]any{
			"order_id": store.UUIDString(order.ID),
			"user_id":  *userID,
			"total":    int64(summary.Total),
			"method":   method,
		}
		if user, err := s.Q.GetUserByID(ctx, uID); err == nil && user.Email != "" {
			payload["email"] = user.Email
		}
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, order.ID, payload)
	}

	return Output{
		OrderID:       store.UUIDString(order.ID),
		Status:        string(order.Status),
		Currency:      order.Currency,
		Subtotal:      order.Subtotal,
		Shipping:      order.Shipping,
		Fee:           order.Fee,
		Total:         order.Total,
		FreeShipping:  summary.FreeShipping,
		PaymentMethod: method,
	}, nil
}

func toJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, _ := json.Marshal(v)
	return b
}

func toNullableText(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
