package financing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/payment"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type webhookQueries interface {
	GetFinancingPayment(ctx context.Context, id pgtype.UUID) (store.FinancingPayment, error)
	UpdateFinancingPaymentStatus(ctx context.Context, arg store.UpdateFinancingPaymentStatusParams) error
	SettleFinancingPayment(ctx context.Context, arg store.SettleFinancingPaymentParams) (bool, error)
	GetFinancingLine(ctx context.Context, id pgtype.UUID) (store.FinancingLine, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
}

// Webhook settles financing pay-downs confirmed by the payment provider. The
// provider callback carries the financing payment identifier in place of an
// order identifier.
type Webhook struct {
	Q         webhookQueries
	Providers map[string]payment.Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	Events    *events.Bus
}

// Handle processes provider callbacks for financing payments.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil || h.Providers == nil {
		common.JSONError(w, http.StatusInternalServerError, "FINANCING_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	var replayKey string
	if h.Replay != nil && h.ReplayTTL > 0 {
		replayKey = fmt.Sprintf("wh:fin:%s:%s", providerKey, common.Sha256Hex(string(body)))
		ok, err := h.Replay.SetNX(r.Context(), replayKey, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !ok {
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	paymentID, err := store.ToUUID(result.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAYMENT_ID", "invalid payment identifier", nil)
		return
	}
	ctx := r.Context()
	fp, err := h.Q.GetFinancingPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "financing payment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_FETCH_ERROR", err.Error(), nil)
		return
	}
	if result.Amount > 0 && fp.Amount != result.Amount {
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}
	if result.ProviderPayload == nil {
		result.ProviderPayload = body
	}
	newStatus := statusFromProvider(result.Status)
	if newStatus == store.PaymentStatusPaid {
		// Single atomic statement: the payment flips to PAID and the line is
		// credited together, or neither happens.
		settled, err := h.Q.SettleFinancingPayment(ctx, store.SettleFinancingPaymentParams{
			ID:              fp.ID,
			ProviderPayload: result.ProviderPayload,
		})
		if err != nil {
			h.releaseReplay(ctx, replayKey)
			common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
			return
		}
		if settled {
			if obs.FinancingPaymentTotal != nil {
				obs.FinancingPaymentTotal.WithLabelValues("settled").Inc()
			}
			if h.Events != nil {
				payload := map[string]any{
					"line_id":    store.UUIDString(fp.LineID),
					"payment_id": store.UUIDString(fp.ID),
					"amount":     fp.Amount,
				}
				if line, err := h.Q.GetFinancingLine(ctx, fp.LineID); err == nil {
					if user, err := h.Q.GetUserByID(ctx, line.SupplierID); err == nil && user.Email != "" {
						payload["email"] = user.Email
					}
				}
				_, _ = h.Events.Emit(ctx, events.TopicFinancingPaymentRecorded, fp.LineID, payload)
			}
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.Q.UpdateFinancingPaymentStatus(ctx, store.UpdateFinancingPaymentStatusParams{
		ID:              fp.ID,
		Status:          newStatus,
		ProviderPayload: result.ProviderPayload,
	}); err != nil {
		h.releaseReplay(ctx, replayKey)
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
		return
	}
	if newStatus == store.PaymentStatusFailed && obs.FinancingPaymentTotal != nil {
		obs.FinancingPaymentTotal.WithLabelValues("failed").Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

// releaseReplay frees the dedup key after a storage failure so the provider's
// retry of the same body is not bounced as a duplicate.
func (h Webhook) releaseReplay(ctx context.Context, key string) {
	if h.Replay != nil && key != "" {
		_ = h.Replay.Del(ctx, key).Err()
	}
}

func statusFromProvider(status string) store.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID", "SUCCESS", "DONE", "SETTLED":
		return store.PaymentStatusPaid
	case "FAILED", "CANCELED", "REJECTED":
		return store.PaymentStatusFailed
	case "EXPIRED":
		return store.PaymentStatusExpired
	default:
		return store.PaymentStatusPending
	}
}
