package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/financing"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type expiryQueries interface {
	ExpirePendingPayment(ctx context.Context, id pgtype.UUID) (bool, error)
	GetPaymentByID(ctx context.Context, id pgtype.UUID) (store.Payment, error)
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, arg store.UpdateOrderStatusParams) error
	RestockOrderItems(ctx context.Context, orderID pgtype.UUID) error
}

type sweepQueries interface {
	ListActiveFinancingLines(ctx context.Context, limit int32) ([]store.FinancingLine, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
}

// Handlers processes background tasks on the worker.
type Handlers struct {
	ExpiryQ    expiryQueries
	SweepQ     sweepQueries
	Events     *events.Bus
	Notifier   events.Notifier
	SweepLimit int32
	Logger     zerolog.Logger
	Now        func() time.Time
}

func (h *Handlers) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Register attaches all task handlers to the mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePaymentExpiry, h.HandlePaymentExpiry)
	mux.HandleFunc(TypeFinancingSweep, h.HandleFinancingSweep)
	mux.HandleFunc(TypeNotifyEvent, h.HandleNotifyEvent)
}

// HandlePaymentExpiry expires a pending intent whose deadline has passed and
// cancels the order it was opened for, returning reserved stock.
func (h *Handlers) HandlePaymentExpiry(ctx context.Context, t *asynq.Task) error {
	if h.ExpiryQ == nil {
		return nil
	}
	var payload paymentExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("payment expiry: decode payload: %w", err)
	}
	pID, err := store.ToUUID(payload.PaymentID)
	if err != nil {
		return fmt.Errorf("payment expiry: %w", err)
	}
	expired, err := h.ExpiryQ.ExpirePendingPayment(ctx, pID)
	if err != nil {
		return err
	}
	if !expired {
		return nil
	}
	if obs.PaymentIntentExpired != nil {
		obs.PaymentIntentExpired.Inc()
	}
	payment, err := h.ExpiryQ.GetPaymentByID(ctx, pID)
	if err != nil {
		return err
	}
	order, err := h.ExpiryQ.GetOrderByID(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == store.OrderStatusPendingPayment {
		if err := h.ExpiryQ.UpdateOrderStatus(ctx, store.UpdateOrderStatusParams{
			ID:     order.ID,
			Status: store.OrderStatusCanceled,
		}); err != nil {
			return err
		}
		_ = h.ExpiryQ.RestockOrderItems(ctx, order.ID)
	}
	h.Logger.Info().
		Str("payment_id", payload.PaymentID).
		Str("order_id", store.UUIDString(order.ID)).
		Msg("payment intent expired")
	if h.Events != nil {
		_, _ = h.Events.Emit(ctx, events.TopicPaymentExpired, order.ID, map[string]any{
			"order_id":   store.UUIDString(order.ID),
			"payment_id": payload.PaymentID,
		})
	}
	return nil
}

// HandleFinancingSweep classifies every active line against its term. Lines
// inside the warning window get a near-expiry notification; lines past their
// term get an expiry event so the supplier is told the balance is overdue.
func (h *Handlers) HandleFinancingSweep(ctx context.Context, _ *asynq.Task) error {
	if h.SweepQ == nil {
		return nil
	}
	limit := h.SweepLimit
	if limit <= 0 {
		limit = 200
	}
	lines, err := h.SweepQ.ListActiveFinancingLines(ctx, limit)
	if err != nil {
		return err
	}
	now := h.now()
	counts := map[financing.Status]int{}
	for _, row := range lines {
		line := financing.Line{
			TermDays:    row.TermDays,
			ActivatedAt: row.ActivatedAt.Time,
		}
		remaining, status := financing.DaysStatus(line, now)
		counts[status]++
		if status != financing.StatusWarning && status != financing.StatusError {
			continue
		}
		payload := map[string]any{
			"line_id":        store.UUIDString(row.ID),
			"supplier_id":    store.UUIDString(row.SupplierID),
			"days_remaining": remaining,
		}
		if user, err := h.SweepQ.GetUserByID(ctx, row.SupplierID); err == nil && user.Email != "" {
			payload["email"] = user.Email
		}
		if h.Events == nil {
			continue
		}
		switch status {
		case financing.StatusWarning:
			_, _ = h.Events.Emit(ctx, events.TopicFinancingNearExpiry, row.ID, payload)
		case financing.StatusError:
			payload["outstanding"] = financing.AvailableToPay(row.Used, row.Paid)
			_, _ = h.Events.Emit(ctx, events.TopicFinancingExpired, row.ID, payload)
		}
	}
	if obs.FinancingSweepLines != nil {
		for status, n := range counts {
			obs.FinancingSweepLines.WithLabelValues(string(status)).Add(float64(n))
		}
	}
	h.Logger.Info().
		Int("lines", len(lines)).
		Int("warning", counts[financing.StatusWarning]).
		Int("expired", counts[financing.StatusError]).
		Msg("financing sweep completed")
	return nil
}

// HandleNotifyEvent delivers a persisted domain event to the notifier.
func (h *Handlers) HandleNotifyEvent(ctx context.Context, t *asynq.Task) error {
	if h.Notifier == nil {
		return nil
	}
	var payload notifyEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("notify event: decode payload: %w", err)
	}
	event := store.DomainEvent{
		Topic:      payload.Topic,
		Payload:    payload.Payload,
		OccurredAt: pgtype.Timestamptz{Time: time.Unix(payload.OccurredAt, 0), Valid: true},
	}
	if id, err := store.ToUUID(payload.EventID); err == nil {
		event.ID = id
	}
	if agg, err := store.ToUUID(payload.AggregateID); err == nil {
		event.AggregateID = agg
	}
	return h.Notifier.Notify(ctx, event)
}
