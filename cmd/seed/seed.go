package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
)

var sampleProducts = []catalog.Product{
	{ID: "t-shirt", Name: "T-shirt", Price: decimal.NewFromInt(20), Category: "Clothing", Stock: 100},
	{ID: "jeans", Name: "Jeans", Price: decimal.NewFromInt(50), Category: "Clothing", Stock: 75},
	{ID: "sneakers", Name: "Sneakers", Price: decimal.NewFromInt(80), Category: "Footwear", Stock: 50},
	{ID: "laptop", Name: "Laptop", Price: decimal.NewFromInt(999), Category: "Electronics", Stock: 25},
	{ID: "smartphone", Name: "Smartphone", Price: decimal.NewFromInt(699), Category: "Electronics", Stock: 40},
	{ID: "coffee-mug", Name: "Coffee Mug", Price: decimal.NewFromInt(12), Category: "Home", Stock: 200},
	{ID: "book", Name: "Book", Price: decimal.NewFromInt(15), Category: "Books", Stock: 150},
	{ID: "headphones", Name: "Headphones", Price: decimal.NewFromInt(120), Category: "Electronics", Stock: 60},
}

var sampleRules = []discounts.Record{
	{
		Type:          discounts.TypeBOGO,
		RuleType:      "Buy 1 Get 1 Free",
		ProductID:     "t-shirt",
		DiscountValue: decimal.NewFromInt(100),
		MinQuantity:   2,
		IsActive:      true,
	},
	{
		Type:           discounts.TypeBuyXForY,
		RuleType:       "Buy 2 Sneakers for 1",
		ProductID:      "sneakers",
		DiscountValue:  decimal.NewFromInt(1),
		MinQuantity:    2,
		PayForQuantity: 1,
		IsActive:       true,
	},
	{
		Type:          discounts.TypePercentageOff,
		RuleType:      "50% Off on Clothing",
		Category:      "Clothing",
		DiscountValue: decimal.NewFromInt(50),
		IsActive:      true,
	},
}

// seed upserts the sample catalog and replaces every discount rule with the
// sample set.
func seed(ctx context.Context, products *catalog.Store, rules *discounts.Service) error {
	for _, p := range sampleProducts {
		if err := products.Put(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	logger.Info().Int("count", len(sampleProducts)).Msg("Products seeded")

	existing, err := rules.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list discount rules: %w", err)
	}
	for _, r := range existing {
		if err := rules.Delete(ctx, r.ID); err != nil {
			return fmt.Errorf("delete discount rule %s: %w", r.ID, err)
		}
	}
	logger.Info().Int("count", len(existing)).Msg("Cleared existing discount rules")

	for _, r := range sampleRules {
		created, err := rules.Create(ctx, r)
		if err != nil {
			return fmt.Errorf("seed discount rule %q: %w", r.RuleType, err)
		}
		logger.Info().Str("rule_id", created.ID).Str("rule", created.RuleType).Msg("Discount rule seeded")
	}
	return nil
}
