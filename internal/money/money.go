// Package money converts decimal amounts to and from DynamoDB numbers.
package money

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/shopspring/decimal"
)

// Places is the number of minor-unit digits kept for currency amounts.
const Places = 2

// Number encodes an amount as a DynamoDB number attribute.
func Number(d decimal.Decimal) attributevalue.Number {
	return attributevalue.Number(d.String())
}

// FromNumber decodes a DynamoDB number attribute. An empty number is zero.
func FromNumber(n attributevalue.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", n, err)
	}
	return d, nil
}

// Round rounds an amount to currency precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}
