package orders

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/money"
)

// Receipt statuses
const (
	StatusCompleted = "COMPLETED"
)

// Receipt is the settled record of one checkout.
type Receipt struct {
	OrderID        string          `json:"orderId"`
	UserID         string          `json:"userId"`
	Status         string          `json:"status"`
	ChargePolicy   string          `json:"chargePolicy"`
	Lines          []Line          `json:"lines"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	ChargedAmount  decimal.Decimal `json:"chargedAmount"`
	CorrelationID  string          `json:"correlationId,omitempty"`
	CompletedAt    time.Time       `json:"completedAt"`
	CreatedAt      time.Time       `json:"createdAt"`
	Deliveries     int             `json:"-"`
}

// Line is one product line on a receipt.
type Line struct {
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountApplied string          `json:"discountApplied,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
}

// receiptItem is the shape stored in the orders DynamoDB table.
type receiptItem struct {
	OrderID        string                `dynamodbav:"order_id"` // PK
	UserID         string                `dynamodbav:"user_id"`
	Status         string                `dynamodbav:"status"`
	ChargePolicy   string                `dynamodbav:"charge_policy"`
	Lines          []lineItem            `dynamodbav:"lines"`
	OriginalAmount attributevalue.Number `dynamodbav:"original_amount"`
	DiscountAmount attributevalue.Number `dynamodbav:"discount_amount"`
	ChargedAmount  attributevalue.Number `dynamodbav:"charged_amount"`
	CorrelationID  string                `dynamodbav:"correlation_id,omitempty"`
	CompletedAt    time.Time             `dynamodbav:"completed_at"`
	CreatedAt      time.Time             `dynamodbav:"created_at"`
	UpdatedAt      time.Time             `dynamodbav:"updated_at"`
	Deliveries     int                   `dynamodbav:"deliveries"`
}

type lineItem struct {
	ProductID       string                `dynamodbav:"product_id"`
	ProductName     string                `dynamodbav:"product_name"`
	Quantity        int                   `dynamodbav:"quantity"`
	UnitPrice       attributevalue.Number `dynamodbav:"unit_price"`
	DiscountApplied string                `dynamodbav:"discount_applied,omitempty"`
	DiscountAmount  attributevalue.Number `dynamodbav:"discount_amount"`
	FinalPrice      attributevalue.Number `dynamodbav:"final_price"`
}

func toItem(r Receipt) receiptItem {
	lines := make([]lineItem, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, lineItem{
			ProductID:       l.ProductID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       money.Number(l.UnitPrice),
			DiscountApplied: l.DiscountApplied,
			DiscountAmount:  money.Number(l.DiscountAmount),
			FinalPrice:      money.Number(l.FinalPrice),
		})
	}
	return receiptItem{
		OrderID:        r.OrderID,
		UserID:         r.UserID,
		Status:         r.Status,
		ChargePolicy:   r.ChargePolicy,
		Lines:          lines,
		OriginalAmount: money.Number(r.OriginalAmount),
		DiscountAmount: money.Number(r.DiscountAmount),
		ChargedAmount:  money.Number(r.ChargedAmount),
		CorrelationID:  r.CorrelationID,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
		Deliveries:     r.Deliveries,
	}
}

func (it receiptItem) receipt() (Receipt, error) {
	r := Receipt{
		OrderID:       it.OrderID,
		UserID:        it.UserID,
		Status:        it.Status,
		ChargePolicy:  it.ChargePolicy,
		CorrelationID: it.CorrelationID,
		CompletedAt:   it.CompletedAt,
		CreatedAt:     it.CreatedAt,
		Deliveries:    it.Deliveries,
	}
	var err error
	if r.OriginalAmount, err = money.FromNumber(it.OriginalAmount); err != nil {
		return Receipt{}, fmt.Errorf("order %s: %w", it.OrderID, err)
	}
	if r.DiscountAmount, err = money.FromNumber(it.DiscountAmount); err != nil {
		return Receipt{}, fmt.Errorf("order %s: %w", it.OrderID, err)
	}
	if r.ChargedAmount, err = money.FromNumber(it.ChargedAmount); err != nil {
		return Receipt{}, fmt.Errorf("order %s: %w", it.OrderID, err)
	}
	r.Lines = make([]Line, 0, len(it.Lines))
	for _, li := range it.Lines {
		l := Line{
			ProductID:       li.ProductID,
			ProductName:     li.ProductName,
			Quantity:        li.Quantity,
			DiscountApplied: li.DiscountApplied,
		}
		if l.UnitPrice, err = money.FromNumber(li.UnitPrice); err != nil {
			return Receipt{}, fmt.Errorf("order %s line %s: %w", it.OrderID, li.ProductID, err)
		}
		if l.DiscountAmount, err = money.FromNumber(li.DiscountAmount); err != nil {
			return Receipt{}, fmt.Errorf("order %s line %s: %w", it.OrderID, li.ProductID, err)
		}
		if l.FinalPrice, err = money.FromNumber(li.FinalPrice); err != nil {
			return Receipt{}, fmt.Errorf("order %s line %s: %w", it.OrderID, li.ProductID, err)
		}
		r.Lines = append(r.Lines, l)
	}
	return r, nil
}
