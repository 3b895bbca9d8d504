package main

import (
	"errors"

	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
)

var errMissingOrderID = errors.New("event has no order_id")

// receiptFromEvent converts a checkout.completed event into the receipt stored
// for the order.
func receiptFromEvent(ev checkout.CompletedEvent) (orders.Receipt, error) {
	if ev.OrderID == "" {
		return orders.Receipt{}, errMissingOrderID
	}
	lines := make([]orders.Line, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		lines = append(lines, orders.Line{
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountApplied: l.DiscountApplied,
			DiscountAmount:  l.DiscountAmount,
			FinalPrice:      l.FinalPrice,
		})
	}
	return orders.Receipt{
		OrderID:        ev.OrderID,
		UserID:         ev.UserID,
		Status:         orders.StatusCompleted,
		ChargePolicy:   string(ev.ChargePolicy),
		Lines:          lines,
		OriginalAmount: ev.OriginalAmount,
		DiscountAmount: ev.DiscountAmount,
		ChargedAmount:  ev.ChargedAmount,
		CorrelationID:  ev.CorrelationID,
		CompletedAt:    ev.CompletedAt,
	}, nil
}
