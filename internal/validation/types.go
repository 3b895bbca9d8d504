package validation

import (
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
)

// Cart actions accepted by POST /cart/update
const (
	ActionIncrement = "increment"
	ActionDecrement = "decrement"
)

// CartUpdateRequest is the payload for POST /cart/update
type CartUpdateRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=increment decrement"`
}

// CartRemoveRequest is the payload for POST /cart/remove
type CartRemoveRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

// CreateDiscountRequest is the payload for POST /discounts/admin
type CreateDiscountRequest struct {
	Type           string           `json:"type" validate:"required,oneof=BOGO BUY_X_FOR_Y PERCENTAGE_OFF"`
	RuleType       string           `json:"ruleType" validate:"required"`
	DiscountValue  *decimal.Decimal `json:"discountValue" validate:"required"`
	MinQuantity    int              `json:"minQuantity" validate:"omitempty,min=1"`
	PayForQuantity int              `json:"payForQuantity" validate:"omitempty,min=1"`
	ProductID      string           `json:"productId,omitempty"`
	Category       string           `json:"category,omitempty"`
	IsActive       *bool            `json:"isActive,omitempty"` // defaults to true
}

// Record converts the request to an unsaved discount record.
func (r CreateDiscountRequest) Record() discounts.Record {
	rec := discounts.Record{
		Type:           discounts.Type(r.Type),
		RuleType:       r.RuleType,
		ProductID:      r.ProductID,
		Category:       r.Category,
		MinQuantity:    r.MinQuantity,
		PayForQuantity: r.PayForQuantity,
		IsActive:       true,
	}
	if r.DiscountValue != nil {
		rec.DiscountValue = *r.DiscountValue
	}
	if r.IsActive != nil {
		rec.IsActive = *r.IsActive
	}
	return rec
}

// UpdateDiscountRequest is the payload for PUT /discounts/admin/:id.
// Only the fields present are changed.
type UpdateDiscountRequest struct {
	Type           *string          `json:"type" validate:"omitempty,oneof=BOGO BUY_X_FOR_Y PERCENTAGE_OFF"`
	RuleType       *string          `json:"ruleType" validate:"omitempty,min=1"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	MinQuantity    *int             `json:"minQuantity" validate:"omitempty,min=1"`
	PayForQuantity *int             `json:"payForQuantity" validate:"omitempty,min=1"`
	ProductID      *string          `json:"productId"`
	Category       *string          `json:"category"`
	IsActive       *bool            `json:"isActive"`
}

// Patch converts the request to a discount patch.
func (r UpdateDiscountRequest) Patch() discounts.Patch {
	p := discounts.Patch{
		RuleType:       r.RuleType,
		ProductID:      r.ProductID,
		Category:       r.Category,
		DiscountValue:  r.DiscountValue,
		MinQuantity:    r.MinQuantity,
		PayForQuantity: r.PayForQuantity,
		IsActive:       r.IsActive,
	}
	if r.Type != nil {
		t := discounts.Type(*r.Type)
		p.Type = &t
	}
	return p
}
