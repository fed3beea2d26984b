package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-paypal/app/entity"
	"github.com/vibast-solutions/ms-go-paypal/app/gateway"
	"github.com/vibast-solutions/ms-go-paypal/app/types"
)

func LinksToResponse(links []gateway.Link) []types.Link {
	result := make([]types.Link, 0, len(links))
	for _, link := range links {
		result = append(result, types.Link{
			Href:   link.Href,
			Rel:    link.Rel,
			Method: link.Method,
		})
	}
	return result
}

func PaymentToResponse(item *entity.Payment, refunds []*entity.Refund) *types.PaymentResponse {
	if item == nil {
		return nil
	}

	return &types.PaymentResponse{
		ID:            item.ID,
		PayPalOrderID: item.PayPalOrderID,
		Amount:        types.CentsToDecimal(item.AmountCents),
		Currency:      item.Currency,
		Description:   item.Description,
		Status:        item.Status,
		CaptureID:     derefString(item.CaptureID),
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
		Refunds:       RefundsToResponse(refunds),
	}
}

func RefundsToResponse(items []*entity.Refund) []types.RefundItem {
	result := make([]types.RefundItem, 0, len(items))
	for _, item := range items {
		result = append(result, types.RefundItem{
			ID:             item.ID,
			PayPalRefundID: item.PayPalRefundID,
			Amount:         types.CentsToDecimal(item.AmountCents),
			Status:         item.Status,
			CreatedAt:      item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
