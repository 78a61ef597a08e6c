package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader carries the hex-encoded HMAC of the raw webhook body.
const SignatureHeader = "X-Payment-Signature"

// Khipu implements the Provider interface for Khipu instant-transfer payments.
type Khipu struct {
	ReceiverID string
	Secret     string
	BaseURL    string
}

// CreateIntent issues a deterministic payment token without performing a
// network call. The real integration calls the Khipu payments API; tests and
// local environments drive the rest of the flow off this synthetic response.
func (k Khipu) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return IntentResponse{}, errors.New("order id is required")
	}
	token := fmt.Sprintf("KH-%s", req.OrderID)
	expiresAt := time.Now().Add(time.Duration(req.ExpiresAtSec) * time.Second)
	return IntentResponse{
		Provider:    "khipu",
		Token:       token,
		RedirectURL: fmt.Sprintf("%s/payment/show/%s", strings.TrimRight(k.host(), "/"), token),
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (k Khipu) host() string {
	host := strings.TrimSpace(k.BaseURL)
	if host == "" {
		return "https://khipu.com"
	}
	return host
}

// VerifyWebhook validates the notification signature and normalises the
// payload. Khipu signs the raw body with the shared secret.
func (k Khipu) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	provided := strings.TrimSpace(r.Header.Get(SignatureHeader))
	expected := k.computeSignature(body)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var payload struct {
		TransactionID string `json:"transaction_id"`
		Amount        int64  `json:"amount"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if payload.TransactionID == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing transaction id")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		OrderID:         payload.TransactionID,
		Amount:          payload.Amount,
		Status:          normaliseKhipuStatus(payload.Status),
		ProviderPayload: body,
	}, nil
}

func (k Khipu) computeSignature(body []byte) string {
	secret := strings.TrimSpace(k.Secret)
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func normaliseKhipuStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "done", "paid":
		return "PAID"
	case "pending", "verifying":
		return "PENDING"
	case "rejected", "reversed":
		return "FAILED"
	case "expired":
		return "EXPIRED"
	default:
		return "PENDING"
	}
}
