package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paypal/app/factory"
	"github.com/vibast-solutions/ms-go-paypal/app/gateway"
	"github.com/vibast-solutions/ms-go-paypal/app/mapper"
	"github.com/vibast-solutions/ms-go-paypal/app/service"
	"github.com/vibast-solutions/ms-go-paypal/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreateOrder(ctx echo.Context) error {
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.CreateOrder(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			return c.writeGatewayOrInternalError(ctx, err, "Create order failed", "failed to create paypal order")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.CreateOrderResponse{
		OrderID:   result.Order.ID,
		Status:    result.Order.Status,
		Links:     mapper.LinksToResponse(result.Order.Links),
		PaymentID: result.Payment.ID,
	})
}

func (c *PaymentController) CaptureOrder(ctx echo.Context) error {
	req, err := types.NewCaptureOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.CaptureOrder(ctx.Request().Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		return c.writeGatewayOrInternalError(ctx, err, "Capture order failed", "failed to capture paypal order")
	}

	return ctx.JSON(http.StatusOK, &types.CaptureOrderResponse{
		OrderID:   result.OrderID,
		Status:    result.GatewayStatus,
		CaptureID: result.CaptureID,
	})
}

// GetOrder proxies the gateway's order document to the caller unchanged.
func (c *PaymentController) GetOrder(ctx echo.Context) error {
	req, err := types.NewGetOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	order, err := c.paymentService.GetOrder(ctx.Request().Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		return c.writeGatewayOrInternalError(ctx, err, "Get order failed", "failed to fetch paypal order")
	}

	return ctx.JSONBlob(http.StatusOK, order.Raw)
}

func (c *PaymentController) Refund(ctx echo.Context) error {
	req, err := types.NewRefundRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.paymentService.RefundCapture(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		return c.writeGatewayOrInternalError(ctx, err, "Refund capture failed", "failed to refund paypal capture")
	}

	return ctx.JSON(http.StatusOK, &types.RefundResponse{
		RefundID: result.RefundID,
		Status:   result.GatewayStatus,
	})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentToResponse(item.Payment, item.Refunds))
}

func (c *PaymentController) ListPayments(ctx echo.Context) error {
	req, err := types.NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListPayments(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payments failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	response := &types.ListPaymentsResponse{Payments: make([]*types.PaymentResponse, 0, len(items))}
	for _, item := range items {
		response.Payments = append(response.Payments, mapper.PaymentToResponse(item.Payment, item.Refunds))
	}

	return ctx.JSON(http.StatusOK, response)
}

// writeGatewayOrInternalError maps classified gateway failures to 502 so
// callers can distinguish upstream trouble from faults in this service.
func (c *PaymentController) writeGatewayOrInternalError(ctx echo.Context, err error, logMessage, gatewayMessage string) error {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("gateway_error_kind", string(apiErr.Kind)).Warn(logMessage)
		return c.writeError(ctx, http.StatusBadGateway, gatewayMessage)
	}
	factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
	return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
