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
	"strconv"
	"strings"
	"time"
)

// Flow implements the Provider interface for Flow.cl card and transfer payments.
type Flow struct {
	APIKey  string
	Secret  string
	BaseURL string
}

// CreateIntent issues a deterministic payment token without performing a
// network call, mirroring the shape of Flow's payment/create response.
func (f Flow) CreateIntent(_ context.Context, req IntentRequest) (IntentResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return IntentResponse{}, errors.New("order id is required")
	}
	token := fmt.Sprintf("FL-%s", req.OrderID)
	expiresAt := time.Now().Add(time.Duration(req.ExpiresAtSec) * time.Second)
	return IntentResponse{
		Provider:    "flow",
		Token:       token,
		RedirectURL: fmt.Sprintf("%s/app/web/pay.php?token=%s", strings.TrimRight(f.host(), "/"), token),
		ExpiresAt:   expiresAt.Unix(),
	}, nil
}

func (f Flow) host() string {
	host := strings.TrimSpace(f.BaseURL)
	if host == "" {
		return "https://www.flow.cl"
	}
	return host
}

// VerifyWebhook validates the Flow signature and normalises the payload.
// Flow signs the concatenation of commerceOrder, amount and status with the
// shared secret.
func (f Flow) VerifyWebhook(_ *http.Request, body []byte) (WebhookVerifyResult, error) {
	var payload struct {
		CommerceOrder string `json:"commerce_order"`
		Amount        int64  `json:"amount"`
		Status        int    `json:"status"`
		Signature     string `json:"s"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if payload.CommerceOrder == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing commerce order")}, nil
	}

	expected := f.computeSignature(payload.CommerceOrder, payload.Amount, payload.Status)
	provided := strings.TrimSpace(payload.Signature)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		OrderID:         payload.CommerceOrder,
		Amount:          payload.Amount,
		Status:          normaliseFlowStatus(payload.Status),
		ProviderPayload: body,
	}, nil
}

func (f Flow) computeSignature(commerceOrder string, amount int64, status int) string {
	secret := strings.TrimSpace(f.Secret)
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(commerceOrder))
	mac.Write([]byte(strconv.FormatInt(amount, 10)))
	mac.Write([]byte(strconv.Itoa(status)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Flow status codes: 1 pending, 2 paid, 3 rejected, 4 canceled.
func normaliseFlowStatus(status int) string {
	switch status {
	case 2:
		return "PAID"
	case 3:
		return "FAILED"
	case 4:
		return "EXPIRED"
	default:
		return "PENDING"
	}
}
