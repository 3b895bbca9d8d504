package discounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the persisted discriminator of a discount rule.
type Type string

const (
	TypeBOGO          Type = "BOGO"
	TypeBuyXForY      Type = "BUY_X_FOR_Y"
	TypePercentageOff Type = "PERCENTAGE_OFF"
)

// Valid reports whether t is one of the supported rule types.
func (t Type) Valid() bool {
	switch t {
	case TypeBOGO, TypeBuyXForY, TypePercentageOff:
		return true
	}
	return false
}

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = errors.New("invalid discount rule")

var hundred = decimal.NewFromInt(100)

// Kind computes the discount for one cart line. The set of kinds is closed:
// BOGO, BuyXForY and PercentageOff.
type Kind interface {
	Type() Type
	// Discount returns the amount taken off unitPrice*qty. It is never negative.
	Discount(unitPrice decimal.Decimal, qty int) decimal.Decimal
	kind()
}

// BOGO makes every second unit free.
type BOGO struct{}

func (BOGO) Type() Type { return TypeBOGO }

func (BOGO) Discount(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	free := qty / 2
	return unitPrice.Mul(decimal.NewFromInt(int64(free)))
}

func (BOGO) kind() {}

// BuyXForY charges PayFor units for every full set of SetSize units.
type BuyXForY struct {
	SetSize int
	PayFor  int
}

func (BuyXForY) Type() Type { return TypeBuyXForY }

func (b BuyXForY) Discount(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	if b.SetSize <= 0 || qty < b.SetSize {
		return decimal.Zero
	}
	sets := qty / b.SetSize
	remainder := qty % b.SetSize
	payable := sets*b.PayFor + remainder
	if payable >= qty {
		return decimal.Zero
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(qty - payable)))
}

func (BuyXForY) kind() {}

// PercentageOff takes Percent percent off the line total.
type PercentageOff struct {
	Percent decimal.Decimal
}

func (PercentageOff) Type() Type { return TypePercentageOff }

func (p PercentageOff) Discount(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	if p.Percent.Sign() <= 0 {
		return decimal.Zero
	}
	total := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	return total.Mul(p.Percent).Div(hundred)
}

func (PercentageOff) kind() {}

// Rule is a validated, active-or-not discount rule as the engine sees it.
type Rule struct {
	ID          string
	Label       string
	ProductID   string
	Category    string
	MinQuantity int
	Kind        Kind
	Active      bool
	CreatedAt   time.Time
}

// Record is the document shape of a discount rule, shared by the API and the
// rules table.
type Record struct {
	ID             string          `json:"id"`
	Type           Type            `json:"type"`
	RuleType       string          `json:"ruleType"`
	ProductID      string          `json:"productId,omitempty"`
	Category       string          `json:"category,omitempty"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	MinQuantity    int             `json:"minQuantity"`
	PayForQuantity int             `json:"payForQuantity,omitempty"`
	IsActive       bool            `json:"isActive"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ApplyDefaults fills the kind-specific defaults for fields left unset.
func (r *Record) ApplyDefaults() {
	if r.Type == TypeBuyXForY {
		if r.MinQuantity <= 0 {
			r.MinQuantity = 2
		}
		if r.PayForQuantity <= 0 {
			r.PayForQuantity = int(r.DiscountValue.IntPart())
		}
		if r.PayForQuantity <= 0 {
			r.PayForQuantity = 1
		}
		return
	}
	if r.MinQuantity <= 0 {
		r.MinQuantity = 1
	}
}

// Rule validates the record and converts it to its tagged form.
func (r Record) Rule() (Rule, error) {
	if !r.Type.Valid() {
		return Rule{}, fmt.Errorf("%w: unknown type %q", ErrInvalidRule, r.Type)
	}
	if r.RuleType == "" {
		return Rule{}, fmt.Errorf("%w: ruleType is required", ErrInvalidRule)
	}
	if r.ProductID != "" && r.Category != "" {
		return Rule{}, fmt.Errorf("%w: productId and category are mutually exclusive", ErrInvalidRule)
	}
	if r.DiscountValue.IsNegative() {
		return Rule{}, fmt.Errorf("%w: discountValue must not be negative", ErrInvalidRule)
	}

	minQty := r.MinQuantity
	if minQty <= 0 {
		minQty = 1
	}

	var k Kind
	switch r.Type {
	case TypeBOGO:
		k = BOGO{}
	case TypeBuyXForY:
		setSize := r.MinQuantity
		if setSize <= 0 {
			setSize = 2
		}
		payFor := r.PayForQuantity
		if payFor <= 0 {
			payFor = int(r.DiscountValue.IntPart())
		}
		if payFor <= 0 {
			payFor = 1
		}
		if setSize < 2 {
			return Rule{}, fmt.Errorf("%w: minQuantity must be at least 2 for %s", ErrInvalidRule, r.Type)
		}
		if payFor >= setSize {
			return Rule{}, fmt.Errorf("%w: payForQuantity must be less than minQuantity", ErrInvalidRule)
		}
		minQty = setSize
		k = BuyXForY{SetSize: setSize, PayFor: payFor}
	case TypePercentageOff:
		if r.DiscountValue.GreaterThan(hundred) {
			return Rule{}, fmt.Errorf("%w: percentage must be between 0 and 100", ErrInvalidRule)
		}
		k = PercentageOff{Percent: r.DiscountValue}
	}

	return Rule{
		ID:          r.ID,
		Label:       r.RuleType,
		ProductID:   r.ProductID,
		Category:    r.Category,
		MinQuantity: minQty,
		Kind:        k,
		Active:      r.IsActive,
		CreatedAt:   r.CreatedAt,
	}, nil
}

// Patch is a partial update. Nil fields are left unchanged; an empty
// ProductID or Category clears that scope.
type Patch struct {
	Type           *Type
	RuleType       *string
	ProductID      *string
	Category       *string
	DiscountValue  *decimal.Decimal
	MinQuantity    *int
	PayForQuantity *int
	IsActive       *bool
}

// Apply merges p into r.
func (p Patch) Apply(r Record) Record {
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.RuleType != nil {
		r.RuleType = *p.RuleType
	}
	if p.ProductID != nil {
		r.ProductID = *p.ProductID
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.DiscountValue != nil {
		r.DiscountValue = *p.DiscountValue
	}
	if p.MinQuantity != nil {
		r.MinQuantity = *p.MinQuantity
	}
	if p.PayForQuantity != nil {
		r.PayForQuantity = *p.PayForQuantity
	}
	if p.IsActive != nil {
		r.IsActive = *p.IsActive
	}
	return r
}
