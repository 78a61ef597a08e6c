package financing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/payment"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type fakeQueries struct {
	requests map[string]store.FinancingRequest
	lines    map[string]store.FinancingLine
	payments map[string]store.FinancingPayment
	users    map[string]store.User
	decided  []store.DecideFinancingRequestParams
	created  []store.CreateFinancingLineParams
	paused   []store.SetFinancingPausedParams
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		requests: map[string]store.FinancingRequest{},
		lines:    map[string]store.FinancingLine{},
		payments: map[string]store.FinancingPayment{},
		users:    map[string]store.User{},
	}
}

func (f *fakeQueries) CreateFinancingRequest(_ context.Context, arg store.CreateFinancingRequestParams) (store.FinancingRequest, error) {
	req := store.FinancingRequest{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SupplierID: arg.SupplierID,
		Amount:     arg.Amount,
		TermDays:   arg.TermDays,
		Status:     store.FinancingRequestPending,
	}
	f.requests[store.UUIDString(req.ID)] = req
	return req, nil
}

func (f *fakeQueries) GetFinancingRequest(_ context.Context, id pgtype.UUID) (store.FinancingRequest, error) {
	req, ok := f.requests[store.UUIDString(id)]
	if !ok {
		return store.FinancingRequest{}, pgx.ErrNoRows
	}
	return req, nil
}

func (f *fakeQueries) ListFinancingRequests(_ context.Context, _ store.ListFinancingRequestsParams) ([]store.FinancingRequest, error) {
	out := make([]store.FinancingRequest, 0, len(f.requests))
	for _, req := range f.requests {
		out = append(out, req)
	}
	return out, nil
}

func (f *fakeQueries) DecideFinancingRequest(_ context.Context, arg store.DecideFinancingRequestParams) (bool, error) {
	req, ok := f.requests[store.UUIDString(arg.ID)]
	if !ok || req.Status != store.FinancingRequestPending {
		return false, nil
	}
	req.Status = arg.Status
	f.requests[store.UUIDString(arg.ID)] = req
	f.decided = append(f.decided, arg)
	return true, nil
}

func (f *fakeQueries) CreateFinancingLine(_ context.Context, arg store.CreateFinancingLineParams) (store.FinancingLine, error) {
	line := store.FinancingLine{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SupplierID:  arg.SupplierID,
		Granted:     arg.Granted,
		TermDays:    arg.TermDays,
		ActivatedAt: arg.ActivatedAt,
		ExpiresAt:   arg.ExpiresAt,
	}
	f.lines[store.UUIDString(line.ID)] = line
	f.created = append(f.created, arg)
	return line, nil
}

func (f *fakeQueries) GetFinancingLine(_ context.Context, id pgtype.UUID) (store.FinancingLine, error) {
	line, ok := f.lines[store.UUIDString(id)]
	if !ok {
		return store.FinancingLine{}, pgx.ErrNoRows
	}
	return line, nil
}

func (f *fakeQueries) ListFinancingLinesBySupplier(_ context.Context, supplierID pgtype.UUID) ([]store.FinancingLine, error) {
	var out []store.FinancingLine
	for _, line := range f.lines {
		if store.UUIDEqual(line.SupplierID, supplierID) {
			out = append(out, line)
		}
	}
	return out, nil
}

func (f *fakeQueries) SetFinancingPaused(_ context.Context, arg store.SetFinancingPausedParams) error {
	line := f.lines[store.UUIDString(arg.ID)]
	line.Paused = arg.Paused
	f.lines[store.UUIDString(arg.ID)] = line
	f.paused = append(f.paused, arg)
	return nil
}

func (f *fakeQueries) CreateFinancingPayment(_ context.Context, arg store.CreateFinancingPaymentParams) (store.FinancingPayment, error) {
	fp := store.FinancingPayment{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		LineID:      arg.LineID,
		Amount:      arg.Amount,
		Provider:    arg.Provider,
		Status:      arg.Status,
		IntentToken: arg.IntentToken,
		RedirectURL: arg.RedirectURL,
	}
	f.payments[store.UUIDString(fp.ID)] = fp
	return fp, nil
}

func (f *fakeQueries) GetFinancingPayment(_ context.Context, id pgtype.UUID) (store.FinancingPayment, error) {
	fp, ok := f.payments[store.UUIDString(id)]
	if !ok {
		return store.FinancingPayment{}, pgx.ErrNoRows
	}
	return fp, nil
}

func (f *fakeQueries) SetFinancingPaymentIntent(_ context.Context, arg store.SetFinancingPaymentIntentParams) (store.FinancingPayment, error) {
	fp, ok := f.payments[store.UUIDString(arg.ID)]
	if !ok {
		return store.FinancingPayment{}, pgx.ErrNoRows
	}
	fp.IntentToken = arg.IntentToken
	fp.RedirectURL = arg.RedirectURL
	f.payments[store.UUIDString(arg.ID)] = fp
	return fp, nil
}

func (f *fakeQueries) UpdateFinancingPaymentStatus(_ context.Context, arg store.UpdateFinancingPaymentStatusParams) error {
	fp, ok := f.payments[store.UUIDString(arg.ID)]
	if !ok {
		return pgx.ErrNoRows
	}
	fp.Status = arg.Status
	if arg.ProviderPayload != nil {
		fp.ProviderPayload = arg.ProviderPayload
	}
	f.payments[store.UUIDString(arg.ID)] = fp
	return nil
}

func (f *fakeQueries) SettleFinancingPayment(_ context.Context, arg store.SettleFinancingPaymentParams) (bool, error) {
	fp, ok := f.payments[store.UUIDString(arg.ID)]
	if !ok || fp.Status == store.PaymentStatusPaid {
		return false, nil
	}
	fp.Status = store.PaymentStatusPaid
	if arg.ProviderPayload != nil {
		fp.ProviderPayload = arg.ProviderPayload
	}
	f.payments[store.UUIDString(arg.ID)] = fp
	line := f.lines[store.UUIDString(fp.LineID)]
	line.Paid += fp.Amount
	f.lines[store.UUIDString(fp.LineID)] = line
	return true, nil
}

func (f *fakeQueries) GetUserByID(_ context.Context, id pgtype.UUID) (store.User, error) {
	user, ok := f.users[store.UUIDString(id)]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	return user, nil
}

type brokenProvider struct{}

func (brokenProvider) CreateIntent(context.Context, payment.IntentRequest) (payment.IntentResponse, error) {
	return payment.IntentResponse{}, errors.New("provider unavailable")
}

func (brokenProvider) VerifyWebhook(*http.Request, []byte) (payment.WebhookVerifyResult, error) {
	return payment.WebhookVerifyResult{}, nil
}

func seedLine(f *fakeQueries, supplierID pgtype.UUID, granted, used, paid int64, termDays int32, activated time.Time) store.FinancingLine {
	line := store.FinancingLine{
		ID:          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SupplierID:  supplierID,
		Granted:     granted,
		Used:        used,
		Paid:        paid,
		TermDays:    termDays,
		ActivatedAt: pgtype.Timestamptz{Time: activated, Valid: true},
		ExpiresAt:   pgtype.Timestamptz{Time: activated.AddDate(0, 0, int(termDays)), Valid: true},
	}
	f.lines[store.UUIDString(line.ID)] = line
	return line
}

func TestListLinesDerivesAvailability(t *testing.T) {
	f := newFakeQueries()
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedLine(f, supplier, 1_000_000, 600_000, 200_000, 30, now.AddDate(0, 0, -25))

	svc := &Service{Q: f, Now: func() time.Time { return now }}
	lines, err := svc.ListLines(context.Background(), store.UUIDString(supplier))
	require.NoError(t, err)
	require.Len(t, lines, 1)

	lv := lines[0]
	require.Equal(t, int64(400_000), int64(lv.Outstanding))
	require.Equal(t, int64(600_000), int64(lv.AvailableCredit))
	require.Equal(t, int32(5), lv.DaysRemaining)
	require.Equal(t, StatusWarning, lv.DaysStatus)
}

func TestPayDownOpensIntentForOutstanding(t *testing.T) {
	f := newFakeQueries()
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	line := seedLine(f, supplier, 1_000_000, 500_000, 100_000, 30, time.Now().AddDate(0, 0, -5))

	svc := &Service{
		Q:         f,
		Providers: map[string]payment.Provider{"khipu": payment.Khipu{Secret: "s"}},
	}
	fp, err := svc.PayDown(context.Background(), store.UUIDString(supplier), store.UUIDString(line.ID), 0, "khipu")
	require.NoError(t, err)
	require.Equal(t, int64(400_000), fp.Amount)
	require.Equal(t, store.PaymentStatusPending, fp.Status)
	require.Equal(t, "khipu", fp.Provider.String)
	require.Len(t, f.payments, 1)
	// The provider must receive the payment id, not the line id: the webhook
	// resolves the echoed reference as a financing payment.
	require.Equal(t, "KH-"+store.UUIDString(fp.ID), fp.IntentToken.String)
}

func TestPayDownMarksPaymentFailedOnProviderError(t *testing.T) {
	f := newFakeQueries()
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	line := seedLine(f, supplier, 1_000_000, 500_000, 0, 30, time.Now().AddDate(0, 0, -5))

	svc := &Service{
		Q:         f,
		Providers: map[string]payment.Provider{"khipu": brokenProvider{}},
	}
	_, err := svc.PayDown(context.Background(), store.UUIDString(supplier), store.UUIDString(line.ID), 0, "khipu")
	require.Error(t, err)
	require.Len(t, f.payments, 1)
	for _, fp := range f.payments {
		require.Equal(t, store.PaymentStatusFailed, fp.Status)
	}
}

func TestPayDownRejectsForeignLine(t *testing.T) {
	f := newFakeQueries()
	owner := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	line := seedLine(f, owner, 1_000_000, 500_000, 0, 30, time.Now())

	svc := &Service{
		Q:         f,
		Providers: map[string]payment.Provider{"khipu": payment.Khipu{Secret: "s"}},
	}
	_, err := svc.PayDown(context.Background(), uuid.NewString(), store.UUIDString(line.ID), 0, "khipu")
	require.Error(t, err)
	require.Empty(t, f.payments)
}

func TestPayDownRejectsPausedLine(t *testing.T) {
	f := newFakeQueries()
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	line := seedLine(f, supplier, 1_000_000, 500_000, 0, 30, time.Now())
	paused := f.lines[store.UUIDString(line.ID)]
	paused.Paused = true
	f.lines[store.UUIDString(line.ID)] = paused

	svc := &Service{
		Q:         f,
		Providers: map[string]payment.Provider{"khipu": payment.Khipu{Secret: "s"}},
	}
	_, err := svc.PayDown(context.Background(), store.UUIDString(supplier), store.UUIDString(line.ID), 0, "khipu")
	require.Error(t, err)
}

func TestApproveRequestActivatesLine(t *testing.T) {
	f := newFakeQueries()
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	svc := &Service{Q: f, Now: func() time.Time { return now }}
	req, err := svc.RequestLine(context.Background(), store.UUIDString(supplier), 2_000_000, 45)
	require.NoError(t, err)

	line, err := svc.ApproveRequest(context.Background(), store.UUIDString(req.ID))
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), line.Granted)
	require.Equal(t, int32(45), line.TermDays)
	require.Equal(t, now.AddDate(0, 0, 45), line.ExpiresAt.Time)

	// Second decision must conflict.
	_, err = svc.ApproveRequest(context.Background(), store.UUIDString(req.ID))
	require.Error(t, err)
}

func TestRejectRequest(t *testing.T) {
	f := newFakeQueries()
	supplier := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	svc := &Service{Q: f}

	req, err := svc.RequestLine(context.Background(), store.UUIDString(supplier), 500_000, 15)
	require.NoError(t, err)
	require.NoError(t, svc.RejectRequest(context.Background(), store.UUIDString(req.ID)))
	require.Error(t, svc.RejectRequest(context.Background(), store.UUIDString(req.ID)))
}
