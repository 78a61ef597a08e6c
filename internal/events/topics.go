package events

// Topic constants for domain events emitted by the platform. Workers and
// notifiers key off these names, so renaming one requires migrating any
// pending deliveries.
const (
	TopicOrderCreated  = "order.created"
	TopicOrderPaid     = "order.paid"
	TopicOrderCanceled = "order.canceled"

	TopicPaymentFailed  = "payment.failed"
	TopicPaymentExpired = "payment.expired"

	TopicFinancingPaymentRecorded = "financing.payment.recorded"
	TopicFinancingNearExpiry      = "financing.near_expiry"
	TopicFinancingExpired         = "financing.expired"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderPaid,
		TopicOrderCanceled,
		TopicPaymentFailed,
		TopicPaymentExpired,
		TopicFinancingPaymentRecorded,
		TopicFinancingNearExpiry,
		TopicFinancingExpired,
	}
}
