package notify

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/sellsi/backend-sellsi/internal/events"
	"github.com/sellsi/backend-sellsi/internal/store"
)

type recordingSender struct {
	to      []string
	subject []string
	body    []string
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to = append(r.to, to)
	r.subject = append(r.subject, subject)
	r.body = append(r.body, body)
	return nil
}

func makeEvent(topic string, payload string) store.DomainEvent {
	return store.DomainEvent{
		Topic:      topic,
		Payload:    []byte(payload),
		OccurredAt: pgtype.Timestamptz{Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), Valid: true},
	}
}

func TestEmailNotifierSendsForOrderCreated(t *testing.T) {
	sender := &recordingSender{}
	n := EmailNotifier{Mail: sender, Enabled: true}

	err := n.Notify(context.Background(), makeEvent(events.TopicOrderCreated, `{"email":"comprador@ejemplo.cl","order_id":"abc"}`))
	require.NoError(t, err)
	require.Len(t, sender.to, 1)
	require.Equal(t, "comprador@ejemplo.cl", sender.to[0])
	require.Equal(t, "Pedido recibido", sender.subject[0])
	require.Contains(t, sender.body[0], "Pedido: abc")
}

func TestEmailNotifierSkipsWithoutRecipient(t *testing.T) {
	sender := &recordingSender{}
	n := EmailNotifier{Mail: sender, Enabled: true}

	err := n.Notify(context.Background(), makeEvent(events.TopicOrderPaid, `{"order_id":"abc"}`))
	require.NoError(t, err)
	require.Empty(t, sender.to)
}

func TestEmailNotifierHonorsToggles(t *testing.T) {
	sender := &recordingSender{}
	n := EmailNotifier{
		Mail:         sender,
		Enabled:      true,
		TopicToggles: map[string]bool{events.TopicFinancingNearExpiry: false},
	}

	err := n.Notify(context.Background(), makeEvent(events.TopicFinancingNearExpiry, `{"email":"proveedor@ejemplo.cl"}`))
	require.NoError(t, err)
	require.Empty(t, sender.to)
}

func TestEmailNotifierDisabledIsNoop(t *testing.T) {
	sender := &recordingSender{}
	n := EmailNotifier{Mail: sender, Enabled: false}

	err := n.Notify(context.Background(), makeEvent(events.TopicPaymentFailed, `{"email":"x@ejemplo.cl"}`))
	require.NoError(t, err)
	require.Empty(t, sender.to)
}
