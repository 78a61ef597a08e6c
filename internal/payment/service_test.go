package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/store"
)

type fakeIntentQueries struct {
	order    store.Order
	orderErr error

	latest    store.Payment
	latestErr error

	created       []store.CreatePaymentParams
	events        []store.InsertPaymentEventParams
	createPayment store.Payment
}

func (f *fakeIntentQueries) GetOrderByID(_ context.Context, _ pgtype.UUID) (store.Order, error) {
	return f.order, f.orderErr
}

func (f *fakeIntentQueries) GetLatestPaymentByOrder(_ context.Context, _ pgtype.UUID) (store.Payment, error) {
	return f.latest, f.latestErr
}

func (f *fakeIntentQueries) CreatePayment(_ context.Context, arg store.CreatePaymentParams) (store.Payment, error) {
	f.created = append(f.created, arg)
	p := f.createPayment
	if !p.ID.Valid {
		p.ID = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	}
	p.OrderID = arg.OrderID
	p.Provider = arg.Provider
	p.Status = arg.Status
	p.Amount = arg.Amount
	p.IntentToken = arg.IntentToken
	p.RedirectURL = arg.RedirectURL
	p.ExpiresAt = arg.ExpiresAt
	return p, nil
}

func (f *fakeIntentQueries) InsertPaymentEvent(_ context.Context, arg store.InsertPaymentEventParams) error {
	f.events = append(f.events, arg)
	return nil
}

func pendingOrder(total int64) (store.Order, string) {
	id := uuid.New()
	return store.Order{
		ID:     pgtype.UUID{Bytes: id, Valid: true},
		Status: store.OrderStatusPendingPayment,
		Total:  total,
	}, id.String()
}

func TestCreateIntentOpensNewIntent(t *testing.T) {
	order, orderID := pendingOrder(10500)
	q := &fakeIntentQueries{order: order, latestErr: pgx.ErrNoRows}
	svc := &Service{
		Q:         q,
		Providers: map[string]Provider{"khipu": Khipu{Secret: "s"}},
		IntentTTL: 15 * time.Minute,
	}

	payment, err := svc.CreateIntent(context.Background(), orderID, 10500, "khipu")
	require.NoError(t, err)
	require.Equal(t, store.PaymentStatusPending, payment.Status)
	require.Equal(t, "khipu", payment.Provider.String)
	require.Equal(t, int64(10500), payment.Amount.Int64)
	require.Len(t, q.created, 1)
	require.Len(t, q.events, 1)
	require.True(t, payment.ExpiresAt.Valid)
}

func TestCreateIntentReusesPendingIntent(t *testing.T) {
	order, orderID := pendingOrder(10500)
	existing := store.Payment{
		ID:        pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Status:    store.PaymentStatusPending,
		Provider:  pgtype.Text{String: "khipu", Valid: true},
		ExpiresAt: pgtype.Timestamptz{Time: time.Now().Add(10 * time.Minute), Valid: true},
	}
	q := &fakeIntentQueries{order: order, latest: existing}
	svc := &Service{Q: q, Providers: map[string]Provider{"khipu": Khipu{Secret: "s"}}}

	payment, err := svc.CreateIntent(context.Background(), orderID, 0, "khipu")
	require.NoError(t, err)
	require.Equal(t, existing.ID, payment.ID)
	require.Empty(t, q.created)
}

func TestCreateIntentRejectsPaidOrder(t *testing.T) {
	order, orderID := pendingOrder(10500)
	q := &fakeIntentQueries{
		order:  order,
		latest: store.Payment{Status: store.PaymentStatusPaid},
	}
	svc := &Service{Q: q, Providers: map[string]Provider{"khipu": Khipu{Secret: "s"}}}

	_, err := svc.CreateIntent(context.Background(), orderID, 0, "khipu")
	require.Error(t, err)
}

func TestCreateIntentRejectsAmountMismatch(t *testing.T) {
	order, orderID := pendingOrder(10500)
	q := &fakeIntentQueries{order: order, latestErr: pgx.ErrNoRows}
	svc := &Service{Q: q, Providers: map[string]Provider{"khipu": Khipu{Secret: "s"}}}

	_, err := svc.CreateIntent(context.Background(), orderID, 9999, "khipu")
	require.Error(t, err)
	require.Contains(t, err.Error(), "amount mismatch")
}

func TestCreateIntentRejectsUnknownMethod(t *testing.T) {
	order, orderID := pendingOrder(10500)
	q := &fakeIntentQueries{order: order, latestErr: pgx.ErrNoRows}
	svc := &Service{Q: q, Providers: map[string]Provider{"khipu": Khipu{Secret: "s"}}}

	_, err := svc.CreateIntent(context.Background(), orderID, 0, "webpay")
	require.Error(t, err)
}

func TestConsolidatedStatusFallsBackToOrder(t *testing.T) {
	order, orderID := pendingOrder(10500)
	order.Status = store.OrderStatusPaid
	q := &fakeIntentQueries{order: order, latestErr: pgx.ErrNoRows}
	svc := &Service{Q: q, Providers: map[string]Provider{"khipu": Khipu{Secret: "s"}}}

	status, err := svc.ConsolidatedStatus(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, "PAID", status)
}
