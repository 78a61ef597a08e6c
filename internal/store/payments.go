package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPaymentSQL = `
INSERT INTO payments (order_id, provider, status, amount, intent_token, redirect_url, provider_payload, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, provider, status, amount, intent_token, redirect_url, provider_payload, expires_at, created_at, updated_at`

type CreatePaymentParams struct {
	OrderID         pgtype.UUID
	Provider        pgtype.Text
	Status          PaymentStatus
	Amount          pgtype.Int8
	IntentToken     pgtype.Text
	RedirectURL     pgtype.Text
	ProviderPayload []byte
	ExpiresAt       pgtype.Timestamptz
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, createPaymentSQL,
		arg.OrderID, arg.Provider, arg.Status, arg.Amount,
		arg.IntentToken, arg.RedirectURL, arg.ProviderPayload, arg.ExpiresAt)
	return scanPayment(row)
}

const getLatestPaymentByOrderSQL = `
SELECT id, order_id, provider, status, amount, intent_token, redirect_url, provider_payload, expires_at, created_at, updated_at
FROM payments WHERE order_id = $1
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetLatestPaymentByOrder(ctx context.Context, orderID pgtype.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getLatestPaymentByOrderSQL, orderID))
}

const getPaymentByIDSQL = `
SELECT id, order_id, provider, status, amount, intent_token, redirect_url, provider_payload, expires_at, created_at, updated_at
FROM payments WHERE id = $1`

func (q *Queries) GetPaymentByID(ctx context.Context, id pgtype.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByIDSQL, id))
}

const updatePaymentStatusSQL = `
UPDATE payments SET status = $2, provider_payload = coalesce($3, provider_payload), updated_at = now()
WHERE id = $1`

type UpdatePaymentStatusParams struct {
	ID              pgtype.UUID
	Status          PaymentStatus
	ProviderPayload []byte
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) error {
	_, err := q.db.Exec(ctx, updatePaymentStatusSQL, arg.ID, arg.Status, arg.ProviderPayload)
	return err
}

const expirePendingPaymentSQL = `
UPDATE payments SET status = 'EXPIRED', updated_at = now()
WHERE id = $1 AND status = 'PENDING' AND expires_at <= now()`

// ExpirePendingPayment marks a pending intent expired once its deadline has
// passed. A no-op when the payment settled in the meantime.
func (q *Queries) ExpirePendingPayment(ctx context.Context, id pgtype.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, expirePendingPaymentSQL, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const insertPaymentEventSQL = `
INSERT INTO payment_events (payment_id, status, payload)
VALUES ($1, $2, $3)`

type InsertPaymentEventParams struct {
	PaymentID pgtype.UUID
	Status    PaymentStatus
	Payload   []byte
}

func (q *Queries) InsertPaymentEvent(ctx context.Context, arg InsertPaymentEventParams) error {
	_, err := q.db.Exec(ctx, insertPaymentEventSQL, arg.PaymentID, arg.Status, arg.Payload)
	return err
}

func scanPayment(row rowScanner) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.Status, &p.Amount,
		&p.IntentToken, &p.RedirectURL, &p.ProviderPayload, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
