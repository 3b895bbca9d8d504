package checkout

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ChargePolicy decides which total a checkout charges.
type ChargePolicy string

const (
	// ChargeDiscounted charges the discounted total shown in the cart.
	ChargeDiscounted ChargePolicy = "discounted"
	// ChargeList charges list price times quantity, ignoring discounts.
	ChargeList ChargePolicy = "list"
)

// ParseChargePolicy accepts "discounted" or "list"; empty means discounted.
func ParseChargePolicy(s string) (ChargePolicy, error) {
	switch ChargePolicy(s) {
	case "", ChargeDiscounted:
		return ChargeDiscounted, nil
	case ChargeList:
		return ChargeList, nil
	}
	return "", fmt.Errorf("unknown charge policy %q", s)
}

// EventType is the type attribute of checkout messages.
const EventType = "checkout.completed"

// Result is returned to the shopper after a successful checkout.
type Result struct {
	OrderID        string          `json:"orderId"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	ItemsProcessed int             `json:"itemsProcessed"`
}

// CompletedEvent is published after stock has been settled.
type CompletedEvent struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	ChargePolicy   ChargePolicy    `json:"charge_policy"`
	Lines          []EventLine     `json:"lines"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ChargedAmount  decimal.Decimal `json:"charged_amount"`
	CompletedAt    time.Time       `json:"completed_at"`
	CorrelationID  string          `json:"correlation_id,omitempty"`
}

// EventLine is one settled line.
type EventLine struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountApplied string          `json:"discount_applied,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FinalPrice      decimal.Decimal `json:"final_price"`
}
