package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/store"
)

// EmailNotifier sends transactional emails for selected topics.
type EmailNotifier struct {
	Mail         EmailSender
	Enabled      bool
	From         string
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event store.DomainEvent) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	subject := subjectFor(event.Topic)
	body := bodyFor(event.Topic, payload, event.OccurredAt.Time)
	return n.Mail.Send(to, subject, body)
}

func extractRecipient(payload map[string]any) string {
	keys := []string{"email", "recipient", "user_email", "supplier_email"}
	for _, key := range keys {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicOrderCreated:
		return "Pedido recibido"
	case events.TopicOrderPaid:
		return "Pago confirmado"
	case events.TopicOrderCanceled:
		return "Pedido cancelado"
	case events.TopicPaymentFailed:
		return "Pago rechazado"
	case events.TopicPaymentExpired:
		return "Pago expirado"
	case events.TopicFinancingPaymentRecorded:
		return "Abono registrado en tu línea de financiamiento"
	case events.TopicFinancingNearExpiry:
		return "Tu línea de financiamiento está por vencer"
	case events.TopicFinancingExpired:
		return "Tu línea de financiamiento venció"
	default:
		return fmt.Sprintf("Notificación %s", topic)
	}
}

func bodyFor(topic string, payload map[string]any, occurred time.Time) string {
	summary := fmt.Sprintf("Evento %s registrado el %s.", topic, occurred.Format(time.RFC3339))
	if orderID, ok := payload["order_id"].(string); ok && orderID != "" {
		summary += fmt.Sprintf("\nPedido: %s", orderID)
	}
	if lineID, ok := payload["line_id"].(string); ok && lineID != "" {
		summary += fmt.Sprintf("\nLínea de financiamiento: %s", lineID)
	}
	if amount, ok := payload["amount"].(float64); ok && amount > 0 {
		summary += fmt.Sprintf("\nMonto: $%.0f CLP", amount)
	}
	if note, ok := payload["message"].(string); ok && note != "" {
		summary += "\n" + note
	}
	return summary
}
