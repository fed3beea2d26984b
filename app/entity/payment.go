package entity

import "time"

// Payment statuses mirror the gateway's own order vocabulary. CREATED and
// CAPTURED are set on the caller-driven path; APPROVED is assigned only by
// reconciliation when PayPal reports a buyer-approved, not-yet-captured
// order. FAILED and REFUNDED are terminal.
const (
	PaymentStatusCreated  = "CREATED"
	PaymentStatusApproved = "APPROVED"
	PaymentStatusCaptured = "CAPTURED"
	PaymentStatusRefunded = "REFUNDED"
	PaymentStatusFailed   = "FAILED"
)

type Payment struct {
	ID uint64

	// Unique per gateway order, immutable once persisted.
	PayPalOrderID string

	AmountCents int64
	Currency    string
	Description string

	Status string

	// Set on successful capture, unique once set. Stays nil when the capture
	// response omits the nested capture identifier; that case is recorded as
	// a consistency gap.
	CaptureID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func PaymentStatusTerminal(status string) bool {
	return status == PaymentStatusFailed || status == PaymentStatusRefunded
}
