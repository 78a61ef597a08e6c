package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// ExpiryScheduler schedules a deferred expiry check for a pending intent.
type ExpiryScheduler interface {
	ScheduleExpiry(ctx context.Context, paymentID string, at time.Time) error
}

type intentQueries interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	GetLatestPaymentByOrder(ctx context.Context, orderID pgtype.UUID) (store.Payment, error)
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error)
	InsertPaymentEvent(ctx context.Context, arg store.InsertPaymentEventParams) error
}

// Service coordinates payment intents and status retrieval.
type Service struct {
	Q               intentQueries
	Providers       map[string]Provider
	IntentTTL       time.Duration
	CallbackBaseURL string
	Expiry          ExpiryScheduler
}

// CreateIntent creates (or reuses) a payment intent for the provided order.
// The order must still be awaiting payment and the requested amount, when
// given, must match the order total exactly.
func (s *Service) CreateIntent(ctx context.Context, orderID string, amount int64, method string) (store.Payment, error) {
	var zero store.Payment
	if s == nil || s.Q == nil || len(s.Providers) == 0 {
		return zero, errors.New("payment service not configured")
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateIntent")
	defer span.End()

	start := time.Now()
	providerName := normaliseLabel(method)
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerName),
			attribute.Float64("payment.intent.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.intent.result", result),
		)
		if obs.PaymentIntentTotal != nil {
			obs.PaymentIntentTotal.WithLabelValues(providerName, "order", result).Inc()
		}
	}()

	provider, ok := s.Providers[providerName]
	if !ok {
		return zero, fmt.Errorf("unsupported payment method %q", method)
	}
	ttl := s.IntentTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	orderUUID, err := store.ToUUID(orderID)
	if err != nil {
		return zero, fmt.Errorf("invalid order id: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", orderID))
	order, err := s.Q.GetOrderByID(ctx, orderUUID)
	if err != nil {
		return zero, err
	}
	if order.Status != store.OrderStatusPendingPayment {
		return zero, fmt.Errorf("order status %s does not allow new intents", order.Status)
	}
	if amount > 0 && amount != order.Total {
		return zero, fmt.Errorf("amount mismatch: got %d expected %d", amount, order.Total)
	}

	existing, err := s.Q.GetLatestPaymentByOrder(ctx, orderUUID)
	if err == nil {
		if existing.Status == store.PaymentStatusPaid {
			return zero, errors.New("order already paid")
		}
		if existing.Status == store.PaymentStatusPending {
			if !existing.ExpiresAt.Valid || existing.ExpiresAt.Time.After(time.Now()) {
				if existing.Provider.Valid {
					providerName = normaliseLabel(existing.Provider.String)
				}
				result = "reused"
				return existing, nil
			}
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return zero, err
	}

	req := IntentRequest{
		OrderID:         orderID,
		Amount:          order.Total,
		Subject:         fmt.Sprintf("Pedido %s", orderID),
		ExpiresAtSec:    int(ttl.Seconds()),
		CallbackBaseURL: s.CallbackBaseURL,
	}
	resp, err := provider.CreateIntent(ctx, req)
	if err != nil {
		span.RecordError(err)
		return zero, err
	}
	if resp.Provider != "" {
		providerName = normaliseLabel(resp.Provider)
	}
	result = "success"
	payload := toJSON(map[string]any{
		"request":  req,
		"response": resp,
	})
	expiresAt := pgtype.Timestamptz{Valid: true}
	if resp.ExpiresAt > 0 {
		expiresAt.Time = time.Unix(resp.ExpiresAt, 0)
	} else {
		expiresAt.Time = time.Now().Add(ttl)
	}
	payment, err := s.Q.CreatePayment(ctx, store.CreatePaymentParams{
		OrderID:         orderUUID,
		Provider:        pgtype.Text{String: providerName, Valid: providerName != ""},
		Status:          store.PaymentStatusPending,
		Amount:          pgtype.Int8{Int64: order.Total, Valid: true},
		IntentToken:     pgtype.Text{String: resp.Token, Valid: strings.TrimSpace(resp.Token) != ""},
		RedirectURL:     pgtype.Text{String: resp.RedirectURL, Valid: strings.TrimSpace(resp.RedirectURL) != ""},
		ProviderPayload: payload,
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		return zero, err
	}
	_ = s.Q.InsertPaymentEvent(ctx, store.InsertPaymentEventParams{
		PaymentID: payment.ID,
		Status:    store.PaymentStatusPending,
		Payload:   payload,
	})
	if s.Expiry != nil {
		_ = s.Expiry.ScheduleExpiry(ctx, store.UUIDString(payment.ID), expiresAt.Time)
	}
	return payment, nil
}

// ConsolidatedStatus returns the best-known status for an order payment.
func (s *Service) ConsolidatedStatus(ctx context.Context, orderID string) (string, error) {
	if s == nil || s.Q == nil {
		return "", errors.New("payment service not configured")
	}
	orderUUID, err := store.ToUUID(orderID)
	if err != nil {
		return "", fmt.Errorf("invalid order id: %w", err)
	}
	payment, err := s.Q.GetLatestPaymentByOrder(ctx, orderUUID)
	if err == nil {
		return string(payment.Status), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	ord, err := s.Q.GetOrderByID(ctx, orderUUID)
	if err != nil {
		return "", err
	}
	switch ord.Status {
	case store.OrderStatusPaid:
		return "PAID", nil
	case store.OrderStatusCanceled:
		return "FAILED", nil
	default:
		return "PENDING", nil
	}
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func toJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
