package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type fakeExpiryQueries struct {
	expired   bool
	payment   store.Payment
	order     store.Order
	statusSet []store.UpdateOrderStatusParams
	restocked []pgtype.UUID
}

func (f *fakeExpiryQueries) ExpirePendingPayment(_ context.Context, _ pgtype.UUID) (bool, error) {
	return f.expired, nil
}

func (f *fakeExpiryQueries) GetPaymentByID(_ context.Context, _ pgtype.UUID) (store.Payment, error) {
	return f.payment, nil
}

func (f *fakeExpiryQueries) GetOrderByID(_ context.Context, _ pgtype.UUID) (store.Order, error) {
	return f.order, nil
}

func (f *fakeExpiryQueries) UpdateOrderStatus(_ context.Context, arg store.UpdateOrderStatusParams) error {
	f.statusSet = append(f.statusSet, arg)
	return nil
}

func (f *fakeExpiryQueries) RestockOrderItems(_ context.Context, orderID pgtype.UUID) error {
	f.restocked = append(f.restocked, orderID)
	return nil
}

type fakeSweepQueries struct {
	lines []store.FinancingLine
	users map[string]store.User
}

func (f *fakeSweepQueries) ListActiveFinancingLines(_ context.Context, _ int32) ([]store.FinancingLine, error) {
	return f.lines, nil
}

func (f *fakeSweepQueries) GetUserByID(_ context.Context, id pgtype.UUID) (store.User, error) {
	return f.users[store.UUIDString(id)], nil
}

func TestHandlePaymentExpiryCancelsPendingOrder(t *testing.T) {
	orderID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	paymentID := uuid.NewString()
	q := &fakeExpiryQueries{
		expired: true,
		payment: store.Payment{OrderID: orderID},
		order:   store.Order{ID: orderID, Status: store.OrderStatusPendingPayment},
	}
	h := &Handlers{ExpiryQ: q}

	task, err := NewPaymentExpiryTask(paymentID, time.Now())
	require.NoError(t, err)
	require.NoError(t, h.HandlePaymentExpiry(context.Background(), task))

	require.Len(t, q.statusSet, 1)
	require.Equal(t, store.OrderStatusCanceled, q.statusSet[0].Status)
	require.Len(t, q.restocked, 1)
}

func TestHandlePaymentExpiryNoopWhenSettled(t *testing.T) {
	q := &fakeExpiryQueries{expired: false}
	h := &Handlers{ExpiryQ: q}

	task, err := NewPaymentExpiryTask(uuid.NewString(), time.Now())
	require.NoError(t, err)
	require.NoError(t, h.HandlePaymentExpiry(context.Background(), task))
	require.Empty(t, q.statusSet)
}

type captureEventStore struct {
	inserted []store.InsertDomainEventParams
}

func (c *captureEventStore) InsertDomainEvent(_ context.Context, arg store.InsertDomainEventParams) (store.DomainEvent, error) {
	c.inserted = append(c.inserted, arg)
	return store.DomainEvent{Topic: arg.Topic, AggregateID: arg.AggregateID, Payload: arg.Payload}, nil
}

func TestHandleFinancingSweepClassifiesLines(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	warning := store.FinancingLine{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SupplierID:  supplier,
		TermDays:    30,
		ActivatedAt: pgtype.Timestamptz{Time: now.AddDate(0, 0, -25), Valid: true},
	}
	healthy := store.FinancingLine{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SupplierID:  pgtype.UUID{Bytes: uuid.New(), Valid: true},
		TermDays:    30,
		ActivatedAt: pgtype.Timestamptz{Time: now.AddDate(0, 0, -2), Valid: true},
	}
	overdue := store.FinancingLine{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SupplierID:  supplier,
		Used:        800_000,
		Paid:        300_000,
		TermDays:    30,
		ActivatedAt: pgtype.Timestamptz{Time: now.AddDate(0, 0, -31), Valid: true},
	}
	q := &fakeSweepQueries{
		lines: []store.FinancingLine{warning, healthy, overdue},
		users: map[string]store.User{
			store.UUIDString(supplier): {Email: "proveedor@sellsi.cl"},
		},
	}
	capture := &captureEventStore{}
	h := &Handlers{
		SweepQ: q,
		Events: &events.Bus{Store: capture},
		Now:    func() time.Time { return now },
	}

	require.NoError(t, h.HandleFinancingSweep(context.Background(), NewFinancingSweepTask()))

	require.Len(t, capture.inserted, 2)
	topics := map[string]store.InsertDomainEventParams{}
	for _, ev := range capture.inserted {
		topics[ev.Topic] = ev
	}

	near, ok := topics[events.TopicFinancingNearExpiry]
	require.True(t, ok, "expected a near-expiry event")
	require.True(t, store.UUIDEqual(near.AggregateID, warning.ID))
	require.Contains(t, string(near.Payload), "proveedor@sellsi.cl")

	expired, ok := topics[events.TopicFinancingExpired]
	require.True(t, ok, "expected an expiry event")
	require.True(t, store.UUIDEqual(expired.AggregateID, overdue.ID))
	require.Contains(t, string(expired.Payload), `"outstanding":500000`)
}
