package entity

import "time"

const (
	RefundStatusPending   = "PENDING"
	RefundStatusCompleted = "COMPLETED"
	RefundStatusFailed    = "FAILED"
)

// Refund rows are created only after the gateway confirmed the refund, so in
// practice every persisted row is COMPLETED. The total of completed refunds
// for a payment is modeled to never exceed the original amount; that
// aggregate is observable by summing rows, not enforced at write time.
type Refund struct {
	ID uint64

	PaymentID uint64

	PayPalRefundID string

	AmountCents int64
	Status      string

	CreatedAt time.Time
}
