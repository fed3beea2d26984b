package repository

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-paypal/app/entity"
)

var ErrRefundAlreadyExists = errors.New("refund already exists")

type RefundRepository struct {
	db DBTX
}

func NewRefundRepository(db DBTX) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create relies on the unique index over paypal_refund_id so a duplicate
// gateway refund confirmation cannot produce a second row.
func (r *RefundRepository) Create(ctx context.Context, refund *entity.Refund) error {
	query := `
		INSERT INTO refunds (
			payment_id, paypal_refund_id, amount_cents, status, created_at
		)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		refund.PaymentID,
		refund.PayPalRefundID,
		refund.AmountCents,
		refund.Status,
		refund.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRefundAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	refund.ID = uint64(id)
	return nil
}

func (r *RefundRepository) ListByPaymentID(ctx context.Context, paymentID uint64) ([]*entity.Refund, error) {
	query := `
		SELECT id, payment_id, paypal_refund_id, amount_cents, status, created_at
		FROM refunds
		WHERE payment_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]*entity.Refund, 0)
	for rows.Next() {
		item := &entity.Refund{}
		if err := rows.Scan(
			&item.ID,
			&item.PaymentID,
			&item.PayPalRefundID,
			&item.AmountCents,
			&item.Status,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		refunds = append(refunds, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refunds, nil
}
