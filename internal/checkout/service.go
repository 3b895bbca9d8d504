package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "checkout").Logger()

// EventPublisher sends a message body with string attributes.
type EventPublisher interface {
	Publish(ctx context.Context, messageBody string, attributes map[string]string) error
}

type correlationKey struct{}

// WithCorrelationID attaches a request correlation id that is copied onto the
// published event.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Service settles a user's cart against product stock.
type Service struct {
	lines     *cart.Store
	products  *catalog.Store
	rules     cart.RuleSource
	publisher EventPublisher
	policy    ChargePolicy
	newID     func() string
	nowFunc   func() time.Time
}

// NewService wires a checkout Service. publisher may be nil.
func NewService(lines *cart.Store, products *catalog.Store, rules cart.RuleSource, publisher EventPublisher, policy ChargePolicy) *Service {
	if policy == "" {
		policy = ChargeDiscounted
	}
	return &Service{
		lines:     lines,
		products:  products,
		rules:     rules,
		publisher: publisher,
		policy:    policy,
		newID:     uuid.NewString,
		nowFunc:   time.Now,
	}
}

type settledLine struct {
	product  catalog.Product
	quantity int
}

// Checkout validates every line against current stock, decrements stock line by
// line with conditional writes, and removes the settled lines from the cart. If a decrement loses a race
// the earlier decrements are restored and the checkout fails with
// InsufficientStock, leaving stock as it was.
func (s *Service) Checkout(ctx context.Context, userID string) (Result, error) {
	lines, err := s.lines.ListByUser(ctx, userID)
	if err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Error listing cart lines")
		return Result{}, apperr.Internal("Checkout failed", err)
	}
	if len(lines) == 0 {
		return Result{}, apperr.EmptyCart()
	}

	// validate everything before touching stock
	settled := make([]settledLine, 0, len(lines))
	for _, l := range lines {
		p, err := s.products.Get(ctx, l.ProductID)
		if err != nil {
			logger.Error().Err(err).Str("product_id", l.ProductID).Msg("Error getting product")
			return Result{}, apperr.Internal("Checkout failed", err)
		}
		if p == nil {
			return Result{}, apperr.NotFound("Product not found: " + l.ProductID)
		}
		if p.Stock < l.Quantity {
			return Result{}, apperr.InsufficientStock(apperr.StockShortfall{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   l.Quantity,
			})
		}
		settled = append(settled, settledLine{product: *p, quantity: l.Quantity})
	}

	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return Result{}, err
	}
	resolvable := make([]discounts.Line, 0, len(settled))
	for _, sl := range settled {
		resolvable = append(resolvable, discounts.Line{Product: sl.product, Quantity: sl.quantity})
	}
	priced, summary := discounts.Resolve(rules, resolvable)

	if err := s.decrementAll(ctx, settled); err != nil {
		return Result{}, err
	}

	// stock is settled from here on; the remaining steps must not be cut short
	// by the caller going away
	ctx = context.WithoutCancel(ctx)

	if _, err := s.lines.RemoveSettled(ctx, lines); err != nil {
		// a stale cart is the lesser fault
		logger.Error().Err(err).Str("user_id", userID).Msg("Error clearing cart after checkout")
	}

	charged := s.policy.Total(summary)
	res := Result{
		OrderID:        s.newID(),
		TotalAmount:    charged,
		OriginalAmount: summary.TotalOriginalPrice,
		DiscountAmount: summary.TotalOriginalPrice.Sub(charged),
		ItemsProcessed: len(settled),
	}

	s.publish(ctx, CompletedEvent{
		OrderID:        res.OrderID,
		UserID:         userID,
		ChargePolicy:   s.policy,
		Lines:          s.policy.eventLines(priced),
		OriginalAmount: res.OriginalAmount,
		DiscountAmount: res.DiscountAmount,
		ChargedAmount:  res.TotalAmount,
		CompletedAt:    s.nowFunc().UTC(),
		CorrelationID:  correlationID(ctx),
	})

	logger.Info().
		Str("user_id", userID).
		Str("order_id", res.OrderID).
		Str("charged", res.TotalAmount.StringFixed(2)).
		Int("lines", res.ItemsProcessed).
		Msg("Checkout settled")
	return res, nil
}

func (s *Service) decrementAll(ctx context.Context, settled []settledLine) error {
	for i, sl := range settled {
		available, err := s.products.DecrementStock(ctx, sl.product.ID, sl.quantity)
		if err == nil {
			continue
		}
		s.compensate(ctx, settled[:i])

		switch {
		case errors.Is(err, catalog.ErrInsufficientStock):
			logger.Warn().Str("product_id", sl.product.ID).Int("available", available).Int("requested", sl.quantity).Msg("Stock changed during checkout")
			return apperr.InsufficientStock(apperr.StockShortfall{
				ProductID:   sl.product.ID,
				ProductName: sl.product.Name,
				Available:   available,
				Requested:   sl.quantity,
			})
		case errors.Is(err, catalog.ErrNotFound):
			return apperr.NotFound("Product not found: " + sl.product.ID)
		default:
			logger.Error().Err(err).Str("product_id", sl.product.ID).Msg("Error decrementing stock")
			return apperr.Internal("Checkout failed", err)
		}
	}
	return nil
}

// compensate puts back stock taken by earlier lines of a failed checkout.
func (s *Service) compensate(ctx context.Context, done []settledLine) {
	ctx = context.WithoutCancel(ctx)
	for _, sl := range done {
		if err := s.products.RestoreStock(ctx, sl.product.ID, sl.quantity); err != nil {
			logger.Error().Err(err).Str("product_id", sl.product.ID).Int("quantity", sl.quantity).Msg("Error restoring stock after failed checkout")
		}
	}
}

func (s *Service) publish(ctx context.Context, ev CompletedEvent) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error().Err(err).Str("order_id", ev.OrderID).Msg("Error encoding checkout event")
		return
	}
	attrs := map[string]string{
		"event_type":     EventType,
		"order_id":       ev.OrderID,
		"correlation_id": ev.CorrelationID,
	}
	if err := s.publisher.Publish(ctx, string(body), attrs); err != nil {
		logger.Error().Err(err).Str("order_id", ev.OrderID).Msg("Error publishing checkout event")
	}
}

// eventLines reports each line as charged. Under ChargeList no discount is
// taken, so lines carry list prices and sum to the charged amount.
func (p ChargePolicy) eventLines(priced []discounts.DiscountedLine) []EventLine {
	out := make([]EventLine, 0, len(priced))
	for _, dl := range priced {
		el := EventLine{
			ProductID:       dl.ProductID,
			ProductName:     dl.ProductName,
			Quantity:        dl.Quantity,
			UnitPrice:       dl.OriginalPrice,
			DiscountApplied: dl.DiscountApplied,
			DiscountAmount:  dl.DiscountAmount,
			FinalPrice:      dl.FinalPrice,
		}
		if p == ChargeList {
			el.DiscountApplied = ""
			el.DiscountAmount = decimal.Zero
			el.FinalPrice = dl.OriginalPrice.Mul(decimal.NewFromInt(int64(dl.Quantity)))
		}
		out = append(out, el)
	}
	return out
}

// Total reports the amount a summary charges under a policy.
func (p ChargePolicy) Total(sum discounts.Summary) decimal.Decimal {
	if p == ChargeList {
		return sum.TotalOriginalPrice
	}
	return sum.TotalFinalPrice
}
