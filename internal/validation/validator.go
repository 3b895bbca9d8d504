package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// New returns a configured validator with custom struct-level validation registered.
// Field errors are reported by their JSON names.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(createDiscountStructValidation, CreateDiscountRequest{})
	v.RegisterStructValidation(updateDiscountStructValidation, UpdateDiscountRequest{})

	return v
}

// createDiscountStructValidation checks scope exclusivity and value ranges.
func createDiscountStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateDiscountRequest)

	if req.ProductID != "" && req.Category != "" {
		sl.ReportError(req.Category, "category", "Category", "excluded_with", "productId")
	}
	if req.DiscountValue == nil {
		return
	}
	if req.DiscountValue.IsNegative() {
		sl.ReportError(req.DiscountValue, "discountValue", "DiscountValue", "gte", "0")
	}
	if req.Type == "PERCENTAGE_OFF" && req.DiscountValue.GreaterThan(hundred) {
		sl.ReportError(req.DiscountValue, "discountValue", "DiscountValue", "lte", "100")
	}
}

// updateDiscountStructValidation applies the same checks to the fields present.
func updateDiscountStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateDiscountRequest)

	if req.ProductID != nil && req.Category != nil && *req.ProductID != "" && *req.Category != "" {
		sl.ReportError(req.Category, "category", "Category", "excluded_with", "productId")
	}
	if req.DiscountValue != nil && req.DiscountValue.IsNegative() {
		sl.ReportError(req.DiscountValue, "discountValue", "DiscountValue", "gte", "0")
	}
}
