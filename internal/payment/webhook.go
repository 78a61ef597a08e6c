package payment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/sellsi/backend-sellsi/internal/common"
	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/obs"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// Webhook handles payment provider callbacks, including signature verification and settlement.
type Webhook struct {
	Q         *store.Queries
	Pool      *pgxpool.Pool
	Providers map[string]Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	Events    *events.Bus
}

// Handle processes webhook callbacks for the configured payment provider(s).
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil || h.Providers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
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
		h.countWebhook(providerKey, "invalid")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		h.countWebhook(providerKey, "invalid_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerKey, common.Sha256Hex(string(body)))
		ok, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !ok {
			h.countWebhook(providerKey, "replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	if result.ProviderPayload == nil {
		result.ProviderPayload = body
	}
	orderUUID, err := store.ToUUID(result.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}
	ctx := r.Context()
	q := h.Q
	var tx pgx.Tx
	if h.Pool != nil {
		tx, err = h.Pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "TX_ERROR", err.Error(), nil)
			return
		}
		defer func() { _ = tx.Rollback(ctx) }()
		q = h.Q.WithTx(tx)
	}

	payment, err := q.GetLatestPaymentByOrder(ctx, orderUUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_FETCH_ERROR", err.Error(), nil)
		return
	}
	if result.Amount > 0 && payment.Amount.Valid && payment.Amount.Int64 != result.Amount {
		h.countWebhook(providerKey, "amount_mismatch")
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}
	newStatus := normaliseWebhookStatus(result.Status)
	shouldSettle := newStatus == store.PaymentStatusPaid && payment.Status != store.PaymentStatusPaid

	if err := q.UpdatePaymentStatus(ctx, store.UpdatePaymentStatusParams{
		ID:              payment.ID,
		Status:          newStatus,
		ProviderPayload: result.ProviderPayload,
	}); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
		return
	}
	_ = q.InsertPaymentEvent(ctx, store.InsertPaymentEventParams{
		PaymentID: payment.ID,
		Status:    newStatus,
		Payload:   result.ProviderPayload,
	})

	order, err := q.GetOrderByID(ctx, payment.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ORDER_FETCH_ERROR", err.Error(), nil)
		return
	}
	orderCanceled := false
	switch newStatus {
	case store.PaymentStatusPaid:
		if shouldSettle {
			if err := q.UpdateOrderStatus(ctx, store.UpdateOrderStatusParams{ID: order.ID, Status: store.OrderStatusPaid}); err != nil {
				common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
				return
			}
		}
	case store.PaymentStatusFailed, store.PaymentStatusExpired:
		if order.Status == store.OrderStatusPendingPayment {
			if err := q.UpdateOrderStatus(ctx, store.UpdateOrderStatusParams{ID: order.ID, Status: store.OrderStatusCanceled}); err == nil {
				// Stock was reserved at checkout; return it.
				_ = q.RestockOrderItems(ctx, order.ID)
				orderCanceled = true
				order.Status = store.OrderStatusCanceled
			}
		}
	}

	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "TX_COMMIT_ERROR", err.Error(), nil)
			return
		}
	}
	h.countWebhook(providerKey, strings.ToLower(string(newStatus)))
	if h.Events != nil {
		payload := map[string]any{
			"order_id":   store.UUIDString(order.ID),
			"payment_id": store.UUIDString(payment.ID),
			"status":     string(newStatus),
		}
		if order.UserID.Valid {
			payload["user_id"] = store.UUIDString(order.UserID)
		}
		if user, err := h.Q.GetUserByID(ctx, order.UserID); err == nil && user.Email != "" {
			payload["email"] = user.Email
		}
		switch newStatus {
		case store.PaymentStatusPaid:
			_, _ = h.Events.Emit(ctx, events.TopicOrderPaid, order.ID, payload)
		case store.PaymentStatusFailed:
			_, _ = h.Events.Emit(ctx, events.TopicPaymentFailed, order.ID, payload)
			if orderCanceled {
				_, _ = h.Events.Emit(ctx, events.TopicOrderCanceled, order.ID, payload)
			}
		case store.PaymentStatusExpired:
			_, _ = h.Events.Emit(ctx, events.TopicPaymentExpired, order.ID, payload)
			if orderCanceled {
				_, _ = h.Events.Emit(ctx, events.TopicOrderCanceled, order.ID, payload)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) countWebhook(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}

func normaliseWebhookStatus(status string) store.PaymentStatus {
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
