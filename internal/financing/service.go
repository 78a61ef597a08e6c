package financing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/payment"
	"github.com/sellsi/backend-sellsi/internal/pricing"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type queries interface {
	CreateFinancingRequest(ctx context.Context, arg store.CreateFinancingRequestParams) (store.FinancingRequest, error)
	GetFinancingRequest(ctx context.Context, id pgtype.UUID) (store.FinancingRequest, error)
	ListFinancingRequests(ctx context.Context, arg store.ListFinancingRequestsParams) ([]store.FinancingRequest, error)
	DecideFinancingRequest(ctx context.Context, arg store.DecideFinancingRequestParams) (bool, error)
	CreateFinancingLine(ctx context.Context, arg store.CreateFinancingLineParams) (store.FinancingLine, error)
	GetFinancingLine(ctx context.Context, id pgtype.UUID) (store.FinancingLine, error)
	ListFinancingLinesBySupplier(ctx context.Context, supplierID pgtype.UUID) ([]store.FinancingLine, error)
	SetFinancingPaused(ctx context.Context, arg store.SetFinancingPausedParams) error
	CreateFinancingPayment(ctx context.Context, arg store.CreateFinancingPaymentParams) (store.FinancingPayment, error)
	SetFinancingPaymentIntent(ctx context.Context, arg store.SetFinancingPaymentIntentParams) (store.FinancingPayment, error)
	UpdateFinancingPaymentStatus(ctx context.Context, arg store.UpdateFinancingPaymentStatusParams) error
}

// LineView is the supplier-facing projection of a financing line.
type LineView struct {
	ID              string        `json:"id"`
	Granted         pricing.Money `json:"granted"`
	Used            pricing.Money `json:"used"`
	Paid            pricing.Money `json:"paid"`
	Outstanding     pricing.Money `json:"outstanding"`
	AvailableCredit pricing.Money `json:"available_credit"`
	TermDays        int32         `json:"term_days"`
	DaysRemaining   int32         `json:"days_remaining"`
	DaysStatus      Status        `json:"days_status"`
	Paused          bool          `json:"paused"`
	ExpiresAt       time.Time     `json:"expires_at"`
}

// Service coordinates financing requests, lines and online pay-downs.
type Service struct {
	Q         queries
	Providers map[string]payment.Provider
	Events    *events.Bus
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RequestLine records a supplier's application for a financing line.
func (s *Service) RequestLine(ctx context.Context, supplierID string, amount int64, termDays int32) (store.FinancingRequest, error) {
	var zero store.FinancingRequest
	if s == nil || s.Q == nil {
		return zero, errors.New("financing service not configured")
	}
	if amount <= 0 {
		return zero, common.NewAppError("BAD_REQUEST", "amount must be positive", http.StatusBadRequest, nil)
	}
	if termDays <= 0 {
		return zero, common.NewAppError("BAD_REQUEST", "term_days must be positive", http.StatusBadRequest, nil)
	}
	sID, err := store.ToUUID(supplierID)
	if err != nil {
		return zero, fmt.Errorf("invalid supplier id: %w", err)
	}
	return s.Q.CreateFinancingRequest(ctx, store.CreateFinancingRequestParams{
		SupplierID: sID,
		Amount:     amount,
		TermDays:   termDays,
	})
}

// ListLines returns the supplier's lines annotated with availability and the
// traffic-light expiry classification.
func (s *Service) ListLines(ctx context.Context, supplierID string) ([]LineView, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("financing service not configured")
	}
	sID, err := store.ToUUID(supplierID)
	if err != nil {
		return nil, fmt.Errorf("invalid supplier id: %w", err)
	}
	rows, err := s.Q.ListFinancingLinesBySupplier(ctx, sID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]LineView, 0, len(rows))
	for _, row := range rows {
		line := lineFromStore(row)
		remaining, status := DaysStatus(line, now)
		outstanding := AvailableToPay(line.Used, line.Paid)
		available := line.Granted - outstanding
		if available < 0 {
			available = 0
		}
		out = append(out, LineView{
			ID:              line.ID,
			Granted:         line.Granted,
			Used:            line.Used,
			Paid:            line.Paid,
			Outstanding:     outstanding,
			AvailableCredit: available,
			TermDays:        line.TermDays,
			DaysRemaining:   remaining,
			DaysStatus:      status,
			Paused:          line.Paused,
			ExpiresAt:       line.ExpiresAt,
		})
	}
	return out, nil
}

// PayDown opens a payment intent to settle part or all of a line's outstanding
// balance. A zero amount pays the full balance. The line is only credited once
// the provider confirms settlement through the webhook.
func (s *Service) PayDown(ctx context.Context, supplierID, lineID string, amount int64, method string) (store.FinancingPayment, error) {
	var zero store.FinancingPayment
	if s == nil || s.Q == nil || len(s.Providers) == 0 {
		return zero, errors.New("financing service not configured")
	}
	providerKey := strings.TrimSpace(strings.ToLower(method))
	provider, ok := s.Providers[providerKey]
	if !ok {
		return zero, common.NewAppError("BAD_REQUEST", "unknown payment method", http.StatusBadRequest, nil)
	}
	lID, err := store.ToUUID(lineID)
	if err != nil {
		return zero, fmt.Errorf("invalid line id: %w", err)
	}
	sID, err := store.ToUUID(supplierID)
	if err != nil {
		return zero, fmt.Errorf("invalid supplier id: %w", err)
	}
	row, err := s.Q.GetFinancingLine(ctx, lID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, common.NewAppError("NOT_FOUND", "financing line not found", http.StatusNotFound, err)
		}
		return zero, err
	}
	if !store.UUIDEqual(row.SupplierID, sID) {
		return zero, common.NewAppError("FORBIDDEN", "line does not belong to supplier", http.StatusForbidden, nil)
	}
	line := lineFromStore(row)
	toCharge, err := ResolvePaymentAmount(line, amount)
	if err != nil {
		s.countPayment("rejected")
		return zero, common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	}

	// The payment row exists before the provider sees the intent: providers
	// echo the reference we register here, and the webhook resolves it as a
	// financing payment id.
	fp, err := s.Q.CreateFinancingPayment(ctx, store.CreateFinancingPaymentParams{
		LineID:   lID,
		Amount:   toCharge,
		Provider: pgtype.Text{String: providerKey, Valid: true},
		Status:   store.PaymentStatusPending,
	})
	if err != nil {
		return zero, err
	}
	resp, err := provider.CreateIntent(ctx, payment.IntentRequest{
		OrderID: store.UUIDString(fp.ID),
		Amount:  toCharge,
		Subject: fmt.Sprintf("Abono línea de financiamiento %s", lineID),
	})
	if err != nil {
		_ = s.Q.UpdateFinancingPaymentStatus(ctx, store.UpdateFinancingPaymentStatusParams{
			ID:     fp.ID,
			Status: store.PaymentStatusFailed,
		})
		s.countPayment("provider_error")
		return zero, err
	}
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(providerKey, "financing", "success").Inc()
	}
	fp, err = s.Q.SetFinancingPaymentIntent(ctx, store.SetFinancingPaymentIntentParams{
		ID:          fp.ID,
		IntentToken: pgtype.Text{String: resp.Token, Valid: resp.Token != ""},
		RedirectURL: pgtype.Text{String: resp.RedirectURL, Valid: resp.RedirectURL != ""},
	})
	if err != nil {
		return zero, err
	}
	s.countPayment("intent_created")
	return fp, nil
}

// ApproveRequest converts a pending request into an active financing line.
func (s *Service) ApproveRequest(ctx context.Context, requestID string) (store.FinancingLine, error) {
	var zero store.FinancingLine
	if s == nil || s.Q == nil {
		return zero, errors.New("financing service not configured")
	}
	rID, err := store.ToUUID(requestID)
	if err != nil {
		return zero, fmt.Errorf("invalid request id: %w", err)
	}
	req, err := s.Q.GetFinancingRequest(ctx, rID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, common.NewAppError("NOT_FOUND", "financing request not found", http.StatusNotFound, err)
		}
		return zero, err
	}
	decided, err := s.Q.DecideFinancingRequest(ctx, store.DecideFinancingRequestParams{
		ID:     rID,
		Status: store.FinancingRequestApproved,
	})
	if err != nil {
		return zero, err
	}
	if !decided {
		return zero, common.NewAppError("CONFLICT", "request already decided", http.StatusConflict, nil)
	}
	now := s.now()
	return s.Q.CreateFinancingLine(ctx, store.CreateFinancingLineParams{
		SupplierID:  req.SupplierID,
		Granted:     req.Amount,
		TermDays:    req.TermDays,
		ActivatedAt: pgtype.Timestamptz{Time: now, Valid: true},
		ExpiresAt:   pgtype.Timestamptz{Time: now.AddDate(0, 0, int(req.TermDays)), Valid: true},
	})
}

// RejectRequest marks a pending request rejected.
func (s *Service) RejectRequest(ctx context.Context, requestID string) error {
	if s == nil || s.Q == nil {
		return errors.New("financing service not configured")
	}
	rID, err := store.ToUUID(requestID)
	if err != nil {
		return fmt.Errorf("invalid request id: %w", err)
	}
	decided, err := s.Q.DecideFinancingRequest(ctx, store.DecideFinancingRequestParams{
		ID:     rID,
		Status: store.FinancingRequestRejected,
	})
	if err != nil {
		return err
	}
	if !decided {
		return common.NewAppError("CONFLICT", "request already decided", http.StatusConflict, nil)
	}
	return nil
}

// SetPaused pauses or resumes online payments on a line.
func (s *Service) SetPaused(ctx context.Context, lineID string, paused bool) error {
	if s == nil || s.Q == nil {
		return errors.New("financing service not configured")
	}
	lID, err := store.ToUUID(lineID)
	if err != nil {
		return fmt.Errorf("invalid line id: %w", err)
	}
	if _, err := s.Q.GetFinancingLine(ctx, lID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewAppError("NOT_FOUND", "financing line not found", http.StatusNotFound, err)
		}
		return err
	}
	return s.Q.SetFinancingPaused(ctx, store.SetFinancingPausedParams{ID: lID, Paused: paused})
}

func (s *Service) countPayment(result string) {
	if obs.FinancingPaymentTotal != nil {
		obs.FinancingPaymentTotal.WithLabelValues(result).Inc()
	}
}

func lineFromStore(row store.FinancingLine) Line {
	return Line{
		ID:          store.UUIDString(row.ID),
		SupplierID:  store.UUIDString(row.SupplierID),
		Granted:     row.Granted,
		Used:        row.Used,
		Paid:        row.Paid,
		TermDays:    row.TermDays,
		ActivatedAt: row.ActivatedAt.Time,
		Paused:      row.Paused,
		ExpiresAt:   row.ExpiresAt.Time,
	}
}
