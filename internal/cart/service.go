package cart

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "cart").Logger()

// RuleSource supplies the active discount rules.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]discounts.Rule, error)
}

// View is a user's cart priced by the discount engine.
type View struct {
	Items   []discounts.DiscountedLine `json:"items"`
	Summary discounts.Summary          `json:"summary"`
}

// Service implements the cart operations over the lines and products tables.
type Service struct {
	lines    *Store
	products *catalog.Store
	rules    RuleSource
}

func NewService(lines *Store, products *catalog.Store, rules RuleSource) *Service {
	return &Service{
		lines:    lines,
		products: products,
		rules:    rules,
	}
}

// Increment adds one unit of a product to the user's cart.
func (s *Service) Increment(ctx context.Context, userID, productID string) (int, error) {
	if productID == "" {
		return 0, apperr.Validation("Product ID is required")
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		logger.Error().Err(err).Str("product_id", productID).Msg("Error getting product")
		return 0, apperr.Internal("Failed to update cart", err)
	}
	if p == nil {
		return 0, apperr.NotFound("Product not found")
	}

	current := 0
	line, err := s.lines.Get(ctx, userID, productID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("Error getting cart line")
		return 0, apperr.Internal("Failed to update cart", err)
	}
	if line != nil {
		current = line.Quantity
	}
	if p.Stock <= current {
		return current, stockError(p, current+1)
	}

	qty, err := s.lines.Increment(ctx, userID, productID, p.Stock)
	if errors.Is(err, ErrInsufficientStock) {
		return qty, stockError(p, qty+1)
	}
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("Error incrementing cart line")
		return 0, apperr.Internal("Failed to update cart", err)
	}
	return qty, nil
}

// Decrement removes one unit; the line disappears when it reaches zero.
func (s *Service) Decrement(ctx context.Context, userID, productID string) (int, error) {
	if productID == "" {
		return 0, apperr.Validation("Product ID is required")
	}
	qty, err := s.lines.Decrement(ctx, userID, productID)
	if errors.Is(err, ErrLineNotFound) {
		return 0, apperr.NotFound("Item not found in cart")
	}
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("Error decrementing cart line")
		return 0, apperr.Internal("Failed to update cart", err)
	}
	return qty, nil
}

// Remove deletes the user's line for a product.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if productID == "" {
		return apperr.Validation("Product ID is required")
	}
	err := s.lines.Remove(ctx, userID, productID)
	if errors.Is(err, ErrLineNotFound) {
		return apperr.NotFound("Item not found in cart")
	}
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Str("product_id", productID).Msg("Error removing cart line")
		return apperr.Internal("Failed to remove item from cart", err)
	}
	return nil
}

// Clear empties the user's cart and reports how many lines were removed.
func (s *Service) Clear(ctx context.Context, userID string) (int, error) {
	n, err := s.lines.Clear(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Int("removed", n).Msg("Error clearing cart")
		return n, apperr.Internal("Failed to clear cart", err)
	}
	return n, nil
}

// Read returns the user's cart priced against the active rules.
func (s *Service) Read(ctx context.Context, userID string) (View, error) {
	lines, err := s.lines.ListByUser(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Error listing cart lines")
		return View{}, apperr.Internal("Failed to load cart", err)
	}
	if len(lines) == 0 {
		return emptyView(), nil
	}

	resolved := make([]discounts.Line, 0, len(lines))
	for _, l := range lines {
		p, err := s.products.Get(ctx, l.ProductID)
		if err != nil {
			logger.Error().Err(err).Str("product_id", l.ProductID).Msg("Error getting product")
			return View{}, apperr.Internal("Failed to load cart", err)
		}
		if p == nil {
			// a line outliving its product would skew the totals
			logger.Error().Str("user_id", userID).Str("product_id", l.ProductID).Msg("Cart line references a missing product")
			return View{}, apperr.Internal("Cart references a product that no longer exists", catalog.ErrNotFound)
		}
		resolved = append(resolved, discounts.Line{Product: *p, Quantity: l.Quantity})
	}

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return View{}, err
	}
	items, summary := discounts.Resolve(rules, resolved)
	return View{Items: items, Summary: summary}, nil
}

func emptyView() View {
	return View{
		Items: []discounts.DiscountedLine{},
		Summary: discounts.Summary{
			TotalOriginalPrice: decimal.Zero,
			TotalDiscount:      decimal.Zero,
			TotalFinalPrice:    decimal.Zero,
		},
	}
}

func stockError(p *catalog.Product, requested int) error {
	return apperr.InsufficientStock(apperr.StockShortfall{
		ProductID:   p.ID,
		ProductName: p.Name,
		Available:   p.Stock,
		Requested:   requested,
	})
}
