package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sellsi/backend-sellsi/internal/store"
)

// Task type identifiers registered on the worker mux.
const (
	TypePaymentExpiry  = "payment:expire"
	TypeFinancingSweep = "financing:sweep"
	TypeNotifyEvent    = "notify:event"
)

type paymentExpiryPayload struct {
	PaymentID string `json:"payment_id"`
}

type notifyEventPayload struct {
	EventID     string `json:"event_id"`
	Topic       string `json:"topic"`
	AggregateID string `json:"aggregate_id"`
	Payload     []byte `json:"payload"`
	OccurredAt  int64  `json:"occurred_at"`
}

// NewPaymentExpiryTask builds a deferred expiry check for a payment intent.
func NewPaymentExpiryTask(paymentID string, at time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(paymentExpiryPayload{PaymentID: paymentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentExpiry, payload, asynq.ProcessAt(at), asynq.MaxRetry(3)), nil
}

// NewFinancingSweepTask builds the periodic financing expiry sweep.
func NewFinancingSweepTask() *asynq.Task {
	return asynq.NewTask(TypeFinancingSweep, nil, asynq.MaxRetry(1))
}

// NewNotifyEventTask builds an asynchronous notification delivery for a
// persisted domain event.
func NewNotifyEventTask(event store.DomainEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(notifyEventPayload{
		EventID:     store.UUIDString(event.ID),
		Topic:       event.Topic,
		AggregateID: store.UUIDString(event.AggregateID),
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt.Time.Unix(),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifyEvent, payload, asynq.MaxRetry(5)), nil
}

// Scheduler enqueues background work through asynq. It satisfies both the
// event bus delivery scheduler and the payment expiry scheduler.
type Scheduler struct {
	Client *asynq.Client
}

// Schedule implements events.DeliveryScheduler.
func (s Scheduler) Schedule(_ context.Context, event store.DomainEvent) error {
	if s.Client == nil {
		return nil
	}
	task, err := NewNotifyEventTask(event)
	if err != nil {
		return err
	}
	_, err = s.Client.Enqueue(task)
	return err
}

// ScheduleExpiry implements payment.ExpiryScheduler.
func (s Scheduler) ScheduleExpiry(_ context.Context, paymentID string, at time.Time) error {
	if s.Client == nil {
		return nil
	}
	task, err := NewPaymentExpiryTask(paymentID, at)
	if err != nil {
		return err
	}
	_, err = s.Client.Enqueue(task)
	return err
}
