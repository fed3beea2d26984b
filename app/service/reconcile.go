package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-paypal/app/entity"
)

// RunReconcileBatch re-reads stale, not-yet-captured payments from the
// gateway and applies the transitions the caller-driven path missed: a buyer
// approval (APPROVED) or a capture that completed without the local update
// landing (COMPLETED). This is the out-of-band pass that bounds the
// divergence window between gateway and ledger.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.paymentRepo.ListStaleForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil {
			continue
		}

		order, err := s.gw.GetOrder(ctx, payment.PayPalOrderID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		newStatus := localStatusFromGateway(order.Status)
		if newStatus == "" || newStatus == payment.Status {
			continue
		}

		oldStatus := payment.Status
		payment.Status = newStatus
		if newStatus == entity.PaymentStatusCaptured && payment.CaptureID == nil {
			if captureID := order.FirstCaptureID(); captureID != "" {
				payment.CaptureID = &captureID
			}
		}
		payment.UpdatedAt = now

		if err := s.paymentRepo.Update(ctx, payment); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
			PaymentID: &payment.ID,
			EventType: eventPaymentReconciled,
			OldStatus: &oldStatus,
			NewStatus: newStatus,
			CreatedAt: now,
		})
	}

	return firstErr
}

func localStatusFromGateway(gatewayStatus string) string {
	switch gatewayStatus {
	case "APPROVED":
		return entity.PaymentStatusApproved
	case "COMPLETED":
		return entity.PaymentStatusCaptured
	default:
		return ""
	}
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
