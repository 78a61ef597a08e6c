package store

import "github.com/jackc/pgx/v5/pgtype"

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusPaid           OrderStatus = "PAID"
	OrderStatusCanceled       OrderStatus = "CANCELED"
)

// PaymentStatus enumerates payment intent states.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
)

// FinancingRequestStatus enumerates the back-office approval flow.
type FinancingRequestStatus string

const (
	FinancingRequestPending  FinancingRequestStatus = "PENDING"
	FinancingRequestApproved FinancingRequestStatus = "APPROVED"
	FinancingRequestRejected FinancingRequestStatus = "REJECTED"
)

type User struct {
	ID           pgtype.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    pgtype.Timestamptz
}

type Product struct {
	ID          pgtype.UUID
	SupplierID  pgtype.UUID
	Slug        string
	Title       string
	Description pgtype.Text
	BasePrice   int64
	Stock       int32
	Active      bool
	CreatedAt   pgtype.Timestamptz
}

type PriceTier struct {
	ID        pgtype.UUID
	ProductID pgtype.UUID
	MinQty    int32
	UnitPrice int64
	Position  int32
}

type Cart struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	AnonID    pgtype.Text
	ExpiresAt pgtype.Timestamptz
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type CartItem struct {
	ID        pgtype.UUID
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

type Order struct {
	ID            pgtype.UUID
	UserID        pgtype.UUID
	CartID        pgtype.UUID
	Status        OrderStatus
	Currency      string
	Subtotal      int64
	Shipping      int64
	Fee           int64
	Total         int64
	PaymentMethod pgtype.Text
	ShippingAddr  []byte
	Notes         pgtype.Text
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

type OrderItem struct {
	ID        pgtype.UUID
	OrderID   pgtype.UUID
	ProductID pgtype.UUID
	Title     string
	Slug      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

type Payment struct {
	ID              pgtype.UUID
	OrderID         pgtype.UUID
	Provider        pgtype.Text
	Status          PaymentStatus
	Amount          pgtype.Int8
	IntentToken     pgtype.Text
	RedirectURL     pgtype.Text
	ProviderPayload []byte
	ExpiresAt       pgtype.Timestamptz
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

type PaymentEvent struct {
	ID        pgtype.UUID
	PaymentID pgtype.UUID
	Status    PaymentStatus
	Payload   []byte
	CreatedAt pgtype.Timestamptz
}

type FinancingRequest struct {
	ID         pgtype.UUID
	SupplierID pgtype.UUID
	Amount     int64
	TermDays   int32
	Status     FinancingRequestStatus
	CreatedAt  pgtype.Timestamptz
	DecidedAt  pgtype.Timestamptz
}

type FinancingLine struct {
	ID          pgtype.UUID
	SupplierID  pgtype.UUID
	Granted     int64
	Used        int64
	Paid        int64
	TermDays    int32
	ActivatedAt pgtype.Timestamptz
	Paused      bool
	ExpiresAt   pgtype.Timestamptz
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type FinancingPayment struct {
	ID              pgtype.UUID
	LineID          pgtype.UUID
	Amount          int64
	Provider        pgtype.Text
	Status          PaymentStatus
	IntentToken     pgtype.Text
	RedirectURL     pgtype.Text
	ProviderPayload []byte
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
