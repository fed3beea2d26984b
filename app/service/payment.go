package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paypal/app/entity"
	"github.com/vibast-solutions/ms-go-paypal/app/factory"
	"github.com/vibast-solutions/ms-go-paypal/app/gateway"
	"github.com/vibast-solutions/ms-go-paypal/app/repository"
	"github.com/vibast-solutions/ms-go-paypal/app/types"
	"github.com/vibast-solutions/ms-go-paypal/config"
)

const defaultBatchSize = int32(100)

const (
	eventOrderCreated      = "order_created"
	eventOrderCaptured     = "order_captured"
	eventCaptureFailed     = "capture_failed"
	eventRefundCompleted   = "refund_completed"
	eventPaymentReconciled = "payment_reconciled"
	eventConsistencyGap    = "consistency_gap"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	FindByOrderID(ctx context.Context, paypalOrderID string) (*entity.Payment, error)
	FindByCaptureID(ctx context.Context, captureID string) (*entity.Payment, error)
	List(ctx context.Context, filter repository.PaymentFilter) ([]*entity.Payment, error)
	ListStaleForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type refundRepository interface {
	Create(ctx context.Context, refund *entity.Refund) error
	ListByPaymentID(ctx context.Context, paymentID uint64) ([]*entity.Refund, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type gatewayClient interface {
	CreateOrder(ctx context.Context, input gateway.CreateOrderInput) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	GetOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	RefundCapture(ctx context.Context, input gateway.RefundInput) (*gateway.Refund, error)
}

// PaymentService drives the payment lifecycle: it issues gateway calls,
// interprets their results, and applies the matching ledger transitions. It
// holds no state of its own; every orchestrated operation performs at most
// one gateway call followed by at most one ledger write, and correctness
// under concurrency rests on the ledger's unique keys.
type PaymentService struct {
	paymentRepo paymentRepository
	refundRepo  refundRepository
	eventRepo   paymentEventRepository
	gw          gatewayClient
	paymentsCfg config.PaymentsConfig
	logger      logrus.FieldLogger
}

func NewPaymentService(
	paymentRepo paymentRepository,
	refundRepo refundRepository,
	eventRepo paymentEventRepository,
	gw gatewayClient,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		eventRepo:   eventRepo,
		gw:          gw,
		paymentsCfg: paymentsCfg,
		logger:      factory.NewModuleLogger("payments-service"),
	}
}

type CreateOrderResult struct {
	Payment *entity.Payment
	Order   *gateway.Order
}

// CreateOrder calls the gateway first and persists the ledger row only on
// success, so a failed creation leaves no orphan record. The operation is
// not idempotent: every call creates a new gateway order, so it is never
// retried here.
func (s *PaymentService) CreateOrder(ctx context.Context, req *types.CreateOrderRequest) (*CreateOrderResult, error) {
	amountCents := req.AmountCents()
	if amountCents <= 0 || len(strings.TrimSpace(req.Currency)) != 3 {
		return nil, ErrInvalidRequest
	}

	order, err := s.gw.CreateOrder(ctx, gateway.CreateOrderInput{
		Value:       types.CentsToDecimal(amountCents),
		Currency:    req.Currency,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	now := time.Now().UTC()
	payment := &entity.Payment{
		PayPalOrderID: order.ID,
		AmountCents:   amountCents,
		Currency:      req.Currency,
		Description:   req.Description,
		Status:        entity.PaymentStatusCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, ErrPaymentAlreadyExists
		}
		// The gateway order exists but the ledger write failed; the gap is
		// left for reconciliation since the remote side-effect cannot be
		// rolled back.
		s.recordGap(ctx, nil, fmt.Sprintf("order %s created at gateway but ledger write failed: %v", order.ID, err))
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: &payment.ID,
		EventType: eventOrderCreated,
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	return &CreateOrderResult{Payment: payment, Order: order}, nil
}

type CaptureOrderResult struct {
	OrderID       string
	GatewayStatus string
	CaptureID     string
	// Payment is nil when the capture succeeded at the gateway but no ledger
	// row matched the order id.
	Payment *entity.Payment
}

// CaptureOrder captures the gateway order and moves the matching Payment to
// CAPTURED, or to FAILED when the gateway call fails. The gateway is always
// the source of truth: a successful capture is reported to the caller even
// when the local ledger could not be updated.
func (s *PaymentService) CaptureOrder(ctx context.Context, orderID string) (*CaptureOrderResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidRequest
	}

	order, err := s.gw.CaptureOrder(ctx, orderID)
	if err != nil {
		s.markCaptureFailed(ctx, orderID, err)
		return nil, fmt.Errorf("capture order: %w", err)
	}

	result := &CaptureOrderResult{
		OrderID:       orderID,
		GatewayStatus: order.Status,
		CaptureID:     order.FirstCaptureID(),
	}
	if order.ID != "" {
		result.OrderID = order.ID
	}

	now := time.Now().UTC()
	payment, err := s.paymentRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		s.recordGap(ctx, nil, fmt.Sprintf("order %s captured at gateway but ledger lookup failed: %v", orderID, err))
		return result, nil
	}
	if payment == nil {
		s.recordGap(ctx, nil, fmt.Sprintf("order %s captured at gateway but no ledger row matches", orderID))
		return result, nil
	}

	oldStatus := payment.Status
	payment.Status = entity.PaymentStatusCaptured
	if result.CaptureID != "" {
		captureID := result.CaptureID
		payment.CaptureID = &captureID
	} else {
		s.recordGap(ctx, &payment.ID, fmt.Sprintf("capture response for order %s carries no capture id", orderID))
	}
	payment.UpdatedAt = now

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.recordGap(ctx, &payment.ID, fmt.Sprintf("order %s captured at gateway but ledger update failed: %v", orderID, err))
		return result, nil
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: &payment.ID,
		EventType: eventOrderCaptured,
		OldStatus: &oldStatus,
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	result.Payment = payment
	return result, nil
}

// GetOrder is a passthrough read of the gateway's order snapshot. It never
// touches the ledger.
func (s *PaymentService) GetOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidRequest
	}

	order, err := s.gw.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

type RefundCaptureResult struct {
	RefundID      string
	GatewayStatus string
	// Refund and Payment are nil when the refund succeeded at the gateway
	// but no ledger row matched the capture id.
	Refund  *entity.Refund
	Payment *entity.Payment
}

// RefundCapture refunds the capture at the gateway, then records a COMPLETED
// Refund and moves the parent Payment to REFUNDED. Without an explicit
// amount the payment's full original amount is recorded, not the remaining
// balance. A gateway failure writes nothing.
func (s *PaymentService) RefundCapture(ctx context.Context, req *types.RefundRequest) (*RefundCaptureResult, error) {
	captureID := strings.TrimSpace(req.CaptureID)
	if captureID == "" {
		return nil, ErrInvalidRequest
	}

	input := gateway.RefundInput{CaptureID: captureID, Currency: req.Currency}
	if cents := req.AmountCents(); cents != nil {
		input.Value = types.CentsToDecimal(*cents)
	}

	refund, err := s.gw.RefundCapture(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("refund capture: %w", err)
	}

	result := &RefundCaptureResult{
		RefundID:      refund.ID,
		GatewayStatus: refund.Status,
	}

	now := time.Now().UTC()
	payment, err := s.paymentRepo.FindByCaptureID(ctx, captureID)
	if err != nil {
		s.recordGap(ctx, nil, fmt.Sprintf("capture %s refunded at gateway but ledger lookup failed: %v", captureID, err))
		return result, nil
	}
	if payment == nil {
		s.recordGap(ctx, nil, fmt.Sprintf("capture %s refunded at gateway but no ledger row matches", captureID))
		return result, nil
	}

	refundCents := payment.AmountCents
	if cents := req.AmountCents(); cents != nil {
		refundCents = *cents
	}

	row := &entity.Refund{
		PaymentID:      payment.ID,
		PayPalRefundID: refund.ID,
		AmountCents:    refundCents,
		Status:         entity.RefundStatusCompleted,
		CreatedAt:      now,
	}
	if err := s.refundRepo.Create(ctx, row); err != nil {
		if !errors.Is(err, repository.ErrRefundAlreadyExists) {
			s.recordGap(ctx, &payment.ID, fmt.Sprintf("refund %s completed at gateway but ledger write failed: %v", refund.ID, err))
			return result, nil
		}
		s.logger.WithField("paypal_refund_id", refund.ID).Warn("Refund already recorded, skipping insert")
	}

	oldStatus := payment.Status
	payment.Status = entity.PaymentStatusRefunded
	payment.UpdatedAt = now
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.recordGap(ctx, &payment.ID, fmt.Sprintf("refund %s completed at gateway but payment update failed: %v", refund.ID, err))
		return result, nil
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: &payment.ID,
		EventType: eventRefundCompleted,
		OldStatus: &oldStatus,
		NewStatus: payment.Status,
		CreatedAt: now,
	})

	result.Refund = row
	result.Payment = payment
	return result, nil
}

// PaymentProjection is a ledger read with the payment's refunds attached.
type PaymentProjection struct {
	Payment *entity.Payment
	Refunds []*entity.Refund
}

func (s *PaymentService) GetPayment(ctx context.Context, id uint64) (*PaymentProjection, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	refunds, err := s.refundRepo.ListByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	return &PaymentProjection{Payment: payment, Refunds: refunds}, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, req *types.ListPaymentsRequest) ([]*PaymentProjection, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultBatchSize
	}

	payments, err := s.paymentRepo.List(ctx, repository.PaymentFilter{
		HasStatus: req.HasStatus,
		Status:    req.Status,
		Limit:     limit,
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, err
	}

	items := make([]*PaymentProjection, 0, len(payments))
	for _, payment := range payments {
		refunds, err := s.refundRepo.ListByPaymentID(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, &PaymentProjection{Payment: payment, Refunds: refunds})
	}

	return items, nil
}

// markCaptureFailed applies the failure transition after a failed capture
// call. FAILED is terminal; a new order must be created to retry.
func (s *PaymentService) markCaptureFailed(ctx context.Context, orderID string, captureErr error) {
	payment, err := s.paymentRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		s.logger.WithError(err).WithField("paypal_order_id", orderID).Error("Ledger lookup failed while marking capture failure")
		return
	}
	if payment == nil || entity.PaymentStatusTerminal(payment.Status) {
		return
	}

	now := time.Now().UTC()
	oldStatus := payment.Status
	payment.Status = entity.PaymentStatusFailed
	payment.UpdatedAt = now

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.logger.WithError(err).WithField("paypal_order_id", orderID).Error("Ledger update failed while marking capture failure")
		return
	}

	detail := truncate(captureErr.Error(), 1024)
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: &payment.ID,
		EventType: eventCaptureFailed,
		OldStatus: &oldStatus,
		NewStatus: payment.Status,
		Detail:    &detail,
		CreatedAt: now,
	})
}

// recordGap logs a divergence between gateway and ledger state and leaves an
// audit event for the reconciliation pass. The remote side-effect already
// happened, so the gap never fails the caller.
func (s *PaymentService) recordGap(ctx context.Context, paymentID *uint64, detail string) {
	entry := s.logger.WithField("detail", detail)
	if paymentID != nil {
		entry = entry.WithField("payment_id", *paymentID)
	}
	entry.Warn("consistency_gap")

	trimmed := truncate(detail, 1024)
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID: paymentID,
		EventType: eventConsistencyGap,
		NewStatus: "",
		Detail:    &trimmed,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func truncate(v string, max int) string {
	if len(v) > max {
		return v[:max]
	}
	return v
}
