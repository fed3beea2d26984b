package entity

import "time"

// Audit trail of lifecycle transitions and detected consistency gaps.
// PaymentID is nil when the gateway acted on an order or capture that has no
// matching ledger row.
type PaymentEvent struct {
	ID uint64

	PaymentID *uint64

	EventType string

	OldStatus *string
	NewStatus string

	Detail *string

	CreatedAt time.Time
}
