package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createFinancingRequestSQL = `
INSERT INTO financing_requests (supplier_id, amount, term_days, status)
VALUES ($1, $2, $3, 'PENDING')
RETURNING id, supplier_id, amount, term_days, status, created_at, decided_at`

type CreateFinancingRequestParams struct {
	SupplierID pgtype.UUID
	Amount     int64
	TermDays   int32
}

func (q *Queries) CreateFinancingRequest(ctx context.Context, arg CreateFinancingRequestParams) (FinancingRequest, error) {
	row := q.db.QueryRow(ctx, createFinancingRequestSQL, arg.SupplierID, arg.Amount, arg.TermDays)
	return scanFinancingRequest(row)
}

const getFinancingRequestSQL = `
SELECT id, supplier_id, amount, term_days, status, created_at, decided_at
FROM financing_requests WHERE id = $1`

func (q *Queries) GetFinancingRequest(ctx context.Context, id pgtype.UUID) (FinancingRequest, error) {
	return scanFinancingRequest(q.db.QueryRow(ctx, getFinancingRequestSQL, id))
}

const listFinancingRequestsSQL = `
SELECT id, supplier_id, amount, term_days, status, created_at, decided_at
FROM financing_requests
WHERE ($1::text = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListFinancingRequestsParams struct {
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListFinancingRequests(ctx context.Context, arg ListFinancingRequestsParams) ([]FinancingRequest, error) {
	rows, err := q.db.Query(ctx, listFinancingRequestsSQL, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FinancingRequest
	for rows.Next() {
		fr, err := scanFinancingRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

const decideFinancingRequestSQL = `
UPDATE financing_requests SET status = $2, decided_at = now()
WHERE id = $1 AND status = 'PENDING'`

type DecideFinancingRequestParams struct {
	ID     pgtype.UUID
	Status FinancingRequestStatus
}

// DecideFinancingRequest transitions a pending request to its final state.
// Returns false when the request was already decided.
func (q *Queries) DecideFinancingRequest(ctx context.Context, arg DecideFinancingRequestParams) (bool, error) {
	tag, err := q.db.Exec(ctx, decideFinancingRequestSQL, arg.ID, arg.Status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const createFinancingLineSQL = `
INSERT INTO financing_lines (supplier_id, granted, used, paid, term_days, activated_at, paused, expires_at)
VALUES ($1, $2, 0, 0, $3, $4, false, $5)
RETURNING id, supplier_id, granted, used, paid, term_days, activated_at, paused, expires_at, created_at, updated_at`

type CreateFinancingLineParams struct {
	SupplierID  pgtype.UUID
	Granted     int64
	TermDays    int32
	ActivatedAt pgtype.Timestamptz
	ExpiresAt   pgtype.Timestamptz
}

func (q *Queries) CreateFinancingLine(ctx context.Context, arg CreateFinancingLineParams) (FinancingLine, error) {
	row := q.db.QueryRow(ctx, createFinancingLineSQL,
		arg.SupplierID, arg.Granted, arg.TermDays, arg.ActivatedAt, arg.ExpiresAt)
	return scanFinancingLine(row)
}

const getFinancingLineSQL = `
SELECT id, supplier_id, granted, used, paid, term_days, activated_at, paused, expires_at, created_at, updated_at
FROM financing_lines WHERE id = $1`

func (q *Queries) GetFinancingLine(ctx context.Context, id pgtype.UUID) (FinancingLine, error) {
	return scanFinancingLine(q.db.QueryRow(ctx, getFinancingLineSQL, id))
}

const listFinancingLinesBySupplierSQL = `
SELECT id, supplier_id, granted, used, paid, term_days, activated_at, paused, expires_at, created_at, updated_at
FROM financing_lines WHERE supplier_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListFinancingLinesBySupplier(ctx context.Context, supplierID pgtype.UUID) ([]FinancingLine, error) {
	rows, err := q.db.Query(ctx, listFinancingLinesBySupplierSQL, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FinancingLine
	for rows.Next() {
		line, err := scanFinancingLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

const listActiveFinancingLinesSQL = `
SELECT id, supplier_id, granted, used, paid, term_days, activated_at, paused, expires_at, created_at, updated_at
FROM financing_lines
WHERE NOT paused AND expires_at > now() - interval '1 day'
ORDER BY expires_at ASC
LIMIT $1`

// ListActiveFinancingLines returns unpaused lines close to or within their
// term, for the periodic expiry sweep.
func (q *Queries) ListActiveFinancingLines(ctx context.Context, limit int32) ([]FinancingLine, error) {
	rows, err := q.db.Query(ctx, listActiveFinancingLinesSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FinancingLine
	for rows.Next() {
		line, err := scanFinancingLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

const setFinancingPausedSQL = `
UPDATE financing_lines SET paused = $2, updated_at = now() WHERE id = $1`

type SetFinancingPausedParams struct {
	ID     pgtype.UUID
	Paused bool
}

func (q *Queries) SetFinancingPaused(ctx context.Context, arg SetFinancingPausedParams) error {
	_, err := q.db.Exec(ctx, setFinancingPausedSQL, arg.ID, arg.Paused)
	return err
}

const createFinancingPaymentSQL = `
INSERT INTO financing_payments (line_id, amount, provider, status, intent_token, redirect_url, provider_payload)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, line_id, amount, provider, status, intent_token, redirect_url, provider_payload, created_at, updated_at`

type CreateFinancingPaymentParams struct {
	LineID          pgtype.UUID
	Amount          int64
	Provider        pgtype.Text
	Status          PaymentStatus
	IntentToken     pgtype.Text
	RedirectURL     pgtype.Text
	ProviderPayload []byte
}

func (q *Queries) CreateFinancingPayment(ctx context.Context, arg CreateFinancingPaymentParams) (FinancingPayment, error) {
	row := q.db.QueryRow(ctx, createFinancingPaymentSQL,
		arg.LineID, arg.Amount, arg.Provider, arg.Status,
		arg.IntentToken, arg.RedirectURL, arg.ProviderPayload)
	return scanFinancingPayment(row)
}

const setFinancingPaymentIntentSQL = `
UPDATE financing_payments SET intent_token = $2, redirect_url = $3, updated_at = now()
WHERE id = $1
RETURNING id, line_id, amount, provider, status, intent_token, redirect_url, provider_payload, created_at, updated_at`

type SetFinancingPaymentIntentParams struct {
	ID          pgtype.UUID
	IntentToken pgtype.Text
	RedirectURL pgtype.Text
}

// SetFinancingPaymentIntent records the provider token and redirect once the
// intent has been registered for an existing payment row.
func (q *Queries) SetFinancingPaymentIntent(ctx context.Context, arg SetFinancingPaymentIntentParams) (FinancingPayment, error) {
	row := q.db.QueryRow(ctx, setFinancingPaymentIntentSQL, arg.ID, arg.IntentToken, arg.RedirectURL)
	return scanFinancingPayment(row)
}

const settleFinancingPaymentSQL = `
WITH settled AS (
	UPDATE financing_payments
	SET status = 'PAID', provider_payload = coalesce($2, provider_payload), updated_at = now()
	WHERE id = $1 AND status <> 'PAID'
	RETURNING line_id, amount
)
UPDATE financing_lines l
SET paid = l.paid + settled.amount, updated_at = now()
FROM settled
WHERE l.id = settled.line_id`

type SettleFinancingPaymentParams struct {
	ID              pgtype.UUID
	ProviderPayload []byte
}

// SettleFinancingPayment marks the payment PAID and credits its line in one
// atomic statement. Returns false when the payment was already settled, so a
// redelivered confirmation never credits the line twice.
func (q *Queries) SettleFinancingPayment(ctx context.Context, arg SettleFinancingPaymentParams) (bool, error) {
	tag, err := q.db.Exec(ctx, settleFinancingPaymentSQL, arg.ID, arg.ProviderPayload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const getFinancingPaymentSQL = `
SELECT id, line_id, amount, provider, status, intent_token, redirect_url, provider_payload, created_at, updated_at
FROM financing_payments WHERE id = $1`

func (q *Queries) GetFinancingPayment(ctx context.Context, id pgtype.UUID) (FinancingPayment, error) {
	return scanFinancingPayment(q.db.QueryRow(ctx, getFinancingPaymentSQL, id))
}

const updateFinancingPaymentStatusSQL = `
UPDATE financing_payments SET status = $2, provider_payload = coalesce($3, provider_payload), updated_at = now()
WHERE id = $1`

type UpdateFinancingPaymentStatusParams struct {
	ID              pgtype.UUID
	Status          PaymentStatus
	ProviderPayload []byte
}

func (q *Queries) UpdateFinancingPaymentStatus(ctx context.Context, arg UpdateFinancingPaymentStatusParams) error {
	_, err := q.db.Exec(ctx, updateFinancingPaymentStatusSQL, arg.ID, arg.Status, arg.ProviderPayload)
	return err
}

func scanFinancingRequest(row rowScanner) (FinancingRequest, error) {
	var fr FinancingRequest
	err := row.Scan(&fr.ID, &fr.SupplierID, &fr.Amount, &fr.TermDays, &fr.Status, &fr.CreatedAt, &fr.DecidedAt)
	return fr, err
}

func scanFinancingLine(row rowScanner) (FinancingLine, error) {
	var l FinancingLine
	err := row.Scan(&l.ID, &l.SupplierID, &l.Granted, &l.Used, &l.Paid, &l.TermDays,
		&l.ActivatedAt, &l.Paused, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func scanFinancingPayment(row rowScanner) (FinancingPayment, error) {
	var p FinancingPayment
	err := row.Scan(&p.ID, &p.LineID, &p.Amount, &p.Provider, &p.Status,
		&p.IntentToken, &p.RedirectURL, &p.ProviderPayload, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
