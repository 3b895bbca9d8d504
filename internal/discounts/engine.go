package discounts

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/money"
)

// Line is a cart line resolved to its product.
type Line struct {
	Product  catalog.Product
	Quantity int
}

// DiscountedLine is the priced view of one cart line.
type DiscountedLine struct {
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	Category        string          `json:"category"`
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	Quantity        int             `json:"quantity"`
	DiscountApplied string          `json:"discountApplied,omitempty"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	FinalPrice      decimal.Decimal `json:"finalPrice"`
}

// Summary totals a resolved cart. TotalFinalPrice is always
// TotalOriginalPrice minus TotalDiscount.
type Summary struct {
	TotalOriginalPrice decimal.Decimal `json:"totalOriginalPrice"`
	TotalDiscount      decimal.Decimal `json:"totalDiscount"`
	TotalFinalPrice    decimal.Decimal `json:"totalFinalPrice"`
}

// Resolve prices every line against the given rules. At most one rule applies
// per line: a product rule whose minimum quantity is met wins over a category
// rule, and only PERCENTAGE_OFF rules are honoured at the category tier. When
// several rules compete, the most recently created one wins, then the lowest id.
func Resolve(rules []Rule, lines []Line) ([]DiscountedLine, Summary) {
	ordered := precedence(rules)

	out := make([]DiscountedLine, 0, len(lines))
	sum := Summary{
		TotalOriginalPrice: decimal.Zero,
		TotalDiscount:      decimal.Zero,
		TotalFinalPrice:    decimal.Zero,
	}
	for _, l := range lines {
		dl := priceLine(ordered, l)
		sum.TotalOriginalPrice = sum.TotalOriginalPrice.Add(dl.OriginalPrice.Mul(decimal.NewFromInt(int64(dl.Quantity))))
		sum.TotalDiscount = sum.TotalDiscount.Add(dl.DiscountAmount)
		out = append(out, dl)
	}
	sum.TotalFinalPrice = sum.TotalOriginalPrice.Sub(sum.TotalDiscount)
	return out, sum
}

func priceLine(rules []Rule, l Line) DiscountedLine {
	p := l.Product
	lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))

	dl := DiscountedLine{
		ProductID:      p.ID,
		ProductName:    p.Name,
		Category:       p.Category,
		OriginalPrice:  p.Price,
		Quantity:       l.Quantity,
		DiscountAmount: decimal.Zero,
		FinalPrice:     lineTotal,
	}

	rule, ok := selectRule(rules, p, l.Quantity)
	if !ok {
		return dl
	}

	amount := money.Round(rule.Kind.Discount(p.Price, l.Quantity))
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	if amount.GreaterThan(lineTotal) {
		amount = lineTotal
	}
	dl.DiscountApplied = rule.Label
	dl.DiscountAmount = amount
	dl.FinalPrice = lineTotal.Sub(amount)
	return dl
}

func selectRule(rules []Rule, p catalog.Product, qty int) (Rule, bool) {
	for _, r := range rules {
		if r.ProductID != "" && r.ProductID == p.ID && qty >= minQuantity(r) {
			return r, true
		}
	}
	for _, r := range rules {
		if r.ProductID == "" && r.Category != "" && r.Category == p.Category {
			// the first category match decides; other kinds give no discount here
			if r.Kind.Type() != TypePercentageOff {
				return Rule{}, false
			}
			return r, true
		}
	}
	return Rule{}, false
}

func minQuantity(r Rule) int {
	if r.MinQuantity <= 0 {
		return 1
	}
	return r.MinQuantity
}

// precedence returns the active rules in evaluation order.
func precedence(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active && r.Kind != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
