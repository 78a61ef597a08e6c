package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Address is a saved shipping address in a buyer's address book.
type Address struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	Label        pgtype.Text
	ReceiverName pgtype.Text
	Phone        pgtype.Text
	Region       pgtype.Text
	Comuna       pgtype.Text
	PostalCode   pgtype.Text
	AddressLine1 pgtype.Text
	AddressLine2 pgtype.Text
	IsDefault    bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

const addressColumns = `id, user_id, label, receiver_name, phone, region, comuna,
    postal_code, address_line1, address_line2, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.ReceiverName, &a.Phone, &a.Region, &a.Comuna,
		&a.PostalCode, &a.AddressLine1, &a.AddressLine2, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

const listAddressesByUserSQL = `
SELECT ` + addressColumns + `
FROM addresses
WHERE user_id = $1
ORDER BY is_default DESC, created_at DESC
LIMIT $2 OFFSET $3`

type ListAddressesByUserParams struct {
	UserID pgtype.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListAddressesByUser(ctx context.Context, arg ListAddressesByUserParams) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesByUserSQL, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const countAddressesByUserSQL = `SELECT count(*) FROM addresses WHERE user_id = $1`

func (q *Queries) CountAddressesByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countAddressesByUserSQL, userID).Scan(&n)
	return n, err
}

const getAddressByIDSQL = `
SELECT ` + addressColumns + `
FROM addresses
WHERE id = $1 AND user_id = $2`

type GetAddressByIDParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) GetAddressByID(ctx context.Context, arg GetAddressByIDParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddressByIDSQL, arg.ID, arg.UserID))
}

const createAddressSQL = `
INSERT INTO addresses (user_id, label, receiver_name, phone, region, comuna,
    postal_code, address_line1, address_line2, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + addressColumns

type CreateAddressParams struct {
	UserID       pgtype.UUID
	Label        pgtype.Text
	ReceiverName pgtype.Text
	Phone        pgtype.Text
	Region       pgtype.Text
	Comuna       pgtype.Text
	PostalCode   pgtype.Text
	AddressLine1 pgtype.Text
	AddressLine2 pgtype.Text
	IsDefault    bool
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, createAddressSQL,
		arg.UserID, arg.Label, arg.ReceiverName, arg.Phone, arg.Region, arg.Comuna,
		arg.PostalCode, arg.AddressLine1, arg.AddressLine2, arg.IsDefault))
}

const updateAddressSQL = `
UPDATE addresses SET
    label = $3, receiver_name = $4, phone = $5, region = $6, comuna = $7,
    postal_code = $8, address_line1 = $9, address_line2 = $10, is_default = $11,
    updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + addressColumns

type UpdateAddressParams struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	Label        pgtype.Text
	ReceiverName pgtype.Text
	Phone        pgtype.Text
	Region       pgtype.Text
	Comuna       pgtype.Text
	PostalCode   pgtype.Text
	AddressLine1 pgtype.Text
	AddressLine2 pgtype.Text
	IsDefault    bool
}

func (q *Queries) UpdateAddress(ctx context.Context, arg UpdateAddressParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, updateAddressSQL,
		arg.ID, arg.UserID, arg.Label, arg.ReceiverName, arg.Phone, arg.Region, arg.Comuna,
		arg.PostalCode, arg.AddressLine1, arg.AddressLine2, arg.IsDefault))
}

const unsetDefaultAddressesSQL = `
UPDATE addresses SET is_default = false, updated_at = now()
WHERE user_id = $1 AND is_default AND ($2::uuid IS NULL OR id <> $2)`

type UnsetDefaultAddressesParams struct {
	UserID    pgtype.UUID
	ExcludeID pgtype.UUID
}

func (q *Queries) UnsetDefaultAddresses(ctx context.Context, arg UnsetDefaultAddressesParams) error {
	_, err := q.db.Exec(ctx, unsetDefaultAddressesSQL, arg.UserID, arg.ExcludeID)
	return err
}

const deleteAddressSQL = `DELETE FROM addresses WHERE id = $1 AND user_id = $2`

type DeleteAddressParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) DeleteAddress(ctx context.Context, arg DeleteAddressParams) error {
	_, err := q.db.Exec(ctx, deleteAddressSQL, arg.ID, arg.UserID)
	return err
}
