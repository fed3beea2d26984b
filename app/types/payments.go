package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	defaultCurrency  = "USD"
	defaultListLimit = int32(100)

	// Matches the ledger column width: 10 digits, 2 decimal places.
	maxAmount = 99999999.99
)

type CreateOrderRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	if body.Currency == "" {
		body.Currency = defaultCurrency
	}
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	if r.Amount <= 0 {
		return errors.New("amount must be > 0")
	}
	if r.Amount > maxAmount {
		return errors.New("amount exceeds maximum")
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

func (r *CreateOrderRequest) AmountCents() int64 {
	return DecimalToCents(r.Amount)
}

type CaptureOrderRequest struct {
	OrderID string `json:"order_id"`
}

func NewCaptureOrderRequestFromContext(ctx echo.Context) (*CaptureOrderRequest, error) {
	var body CaptureOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.OrderID = strings.TrimSpace(body.OrderID)
	return &body, nil
}

func (r *CaptureOrderRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}

type GetOrderRequest struct {
	OrderID string
}

func NewGetOrderRequestFromContext(ctx echo.Context) (*GetOrderRequest, error) {
	return &GetOrderRequest{OrderID: strings.TrimSpace(ctx.Param("order_id"))}, nil
}

func (r *GetOrderRequest) Validate() error {
	if r.OrderID == "" {
		return errors.New("order_id is required")
	}
	return nil
}

type RefundRequest struct {
	CaptureID string   `json:"capture_id"`
	Amount    *float64 `json:"amount,omitempty"`
	Currency  string   `json:"currency"`
}

func NewRefundRequestFromContext(ctx echo.Context) (*RefundRequest, error) {
	var body RefundRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.CaptureID = strings.TrimSpace(body.CaptureID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	if body.Currency == "" {
		body.Currency = defaultCurrency
	}

	return &body, nil
}

func (r *RefundRequest) Validate() error {
	if r.CaptureID == "" {
		return errors.New("capture_id is required")
	}
	if r.Amount != nil {
		if *r.Amount <= 0 {
			return errors.New("amount must be > 0")
		}
		if *r.Amount > maxAmount {
			return errors.New("amount exceeds maximum")
		}
	}
	if len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

// AmountCents returns the explicit refund amount in cents, or nil when the
// caller asked for a full refund.
func (r *RefundRequest) AmountCents() *int64 {
	if r.Amount == nil {
		return nil
	}
	cents := DecimalToCents(*r.Amount)
	return &cents
}

type GetPaymentRequest struct {
	ID uint64
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetPaymentRequest{ID: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid payment id")
	}
	return nil
}

type ListPaymentsRequest struct {
	HasStatus bool
	Status    string
	Limit     int32
	Offset    int32
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		Limit:  defaultListLimit,
		Offset: 0,
	}

	if statusRaw := strings.ToUpper(strings.TrimSpace(ctx.QueryParam("status"))); statusRaw != "" {
		req.HasStatus = true
		req.Status = statusRaw
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.HasStatus && !isValidPaymentStatus(r.Status) {
		return errors.New("invalid status")
	}
	return nil
}

func isValidPaymentStatus(status string) bool {
	switch status {
	case "CREATED", "APPROVED", "CAPTURED", "REFUNDED", "FAILED":
		return true
	default:
		return false
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type CreateOrderResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Links     []Link `json:"links"`
	PaymentID uint64 `json:"payment_id"`
}

type CaptureOrderResponse struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	CaptureID string `json:"capture_id"`
}

type RefundResponse struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

type RefundItem struct {
	ID             uint64 `json:"id"`
	PayPalRefundID string `json:"paypal_refund_id"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

type PaymentResponse struct {
	ID            uint64       `json:"id"`
	PayPalOrderID string       `json:"paypal_order_id"`
	Amount        string       `json:"amount"`
	Currency      string       `json:"currency"`
	Description   string       `json:"description"`
	Status        string       `json:"status"`
	CaptureID     string       `json:"capture_id"`
	CreatedAt     string       `json:"created_at"`
	UpdatedAt     string       `json:"updated_at"`
	Refunds       []RefundItem `json:"refunds"`
}

type ListPaymentsResponse struct {
	Payments []*PaymentResponse `json:"payments"`
}

// DecimalToCents converts a JSON decimal amount to integer cents, the
// ledger's internal representation.
func DecimalToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CentsToDecimal renders cents as a 2-decimal string, the format PayPal's
// amount fields expect and the API responds with.
func CentsToDecimal(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
