package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/apperr"
	"github.com/imrishuroy/go-storefront-checkout/internal/aws/dynamotest"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
)

type staticRules struct {
	rules []discounts.Rule
	err   error
	calls int
}

func (s *staticRules) ActiveRules(context.Context) ([]discounts.Rule, error) {
	s.calls++
	return s.rules, s.err
}

type fixture struct {
	svc      *Service
	fake     *dynamotest.Fake
	products *catalog.Store
	rules    *staticRules
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fake := dynamotest.New(
		dynamotest.TableSchema{Name: linesTable, PartitionKey: "user_id", SortKey: "product_id"},
		dynamotest.TableSchema{Name: "products", PartitionKey: "product_id"},
	)
	products := catalog.NewStore(fake, "products")
	rules := &staticRules{}
	return fixture{
		svc:      NewService(NewStore(fake, linesTable), products, rules),
		fake:     fake,
		products: products,
		rules:    rules,
	}
}

func (f fixture) seed(t *testing.T, id, price, category string, stock int) {
	t.Helper()
	require.NoError(t, f.products.Put(context.Background(), catalog.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Category: category,
		Stock:    stock,
	}))
}

func TestServiceIncrement_AtStockFails(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 1)
	ctx := context.Background()

	qty, err := f.svc.Increment(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, qty)

	_, err = f.svc.Increment(ctx, "u1", "p1")
	require.True(t, apperr.Is(err, apperr.KindInsufficientStock))
	ae := apperr.As(err)
	require.NotNil(t, ae.Stock)
	assert.Equal(t, 1, ae.Stock.Available)
	assert.Equal(t, 2, ae.Stock.Requested)
	assert.Equal(t, "Insufficient stock for Product p1. Available: 1, Requested: 2", ae.Message)

	view, err := f.svc.Read(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 1, view.Items[0].Quantity)
}

func TestServiceIncrement_OutOfStockProduct(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 0)

	_, err := f.svc.Increment(context.Background(), "u1", "p1")
	assert.True(t, apperr.Is(err, apperr.KindInsufficientStock))
	assert.Equal(t, 0, f.fake.Len(linesTable))
}

func TestServiceIncrement_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Increment(context.Background(), "u1", "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Increment(context.Background(), "u1", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestServiceDecrement(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 5)
	ctx := context.Background()

	_, err := f.svc.Increment(ctx, "u1", "p1")
	require.NoError(t, err)

	qty, err := f.svc.Decrement(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.Zero(t, qty)
	assert.Equal(t, 0, f.fake.Len(linesTable))

	_, err = f.svc.Decrement(ctx, "u1", "p1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestServiceRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 5)
	f.seed(t, "p2", "5", "Books", 5)
	ctx := context.Background()

	for _, id := range []string{"p1", "p1", "p2"} {
		_, err := f.svc.Increment(ctx, "u1", id)
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.Remove(ctx, "u1", "p1"))
	assert.True(t, apperr.Is(f.svc.Remove(ctx, "u1", "p1"), apperr.KindNotFound))

	n, err := f.svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceRead_Empty(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Summary.TotalFinalPrice.IsZero())
	assert.Zero(t, f.rules.calls, "empty cart does not consult rules")
}

func TestServiceRead_AppliesDiscounts(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 10)
	f.seed(t, "p2", "20", "Books", 10)
	f.rules.rules = []discounts.Rule{
		{ID: "r1", Label: "Buy 1 Get 1", ProductID: "p1", MinQuantity: 1, Kind: discounts.BOGO{}, Active: true, CreatedAt: time.Now()},
	}
	ctx := context.Background()

	for _, id := range []string{"p1", "p1", "p1", "p2"} {
		_, err := f.svc.Increment(ctx, "u1", id)
		require.NoError(t, err)
	}

	view, err := f.svc.Read(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	assert.Equal(t, "Buy 1 Get 1", view.Items[0].DiscountApplied)
	assert.True(t, view.Items[0].DiscountAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, view.Summary.TotalOriginalPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, view.Summary.TotalDiscount.Equal(decimal.NewFromInt(10)))
	assert.True(t, view.Summary.TotalFinalPrice.Equal(decimal.NewFromInt(40)))
}

func TestServiceRead_DanglingProductIsInternal(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 10)
	ctx := context.Background()
	_, err := f.svc.Increment(ctx, "u1", "p1")
	require.NoError(t, err)

	_, err = f.fake.DeleteItem(ctx, deleteProduct("p1"))
	require.NoError(t, err)

	_, err = f.svc.Read(ctx, "u1")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestServiceRead_RuleSourceFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "p1", "10", "Clothing", 10)
	f.rules.err = apperr.Internal("Failed to load discount rules", errors.New("boom"))
	ctx := context.Background()
	_, err := f.svc.Increment(ctx, "u1", "p1")
	require.NoError(t, err)

	_, err = f.svc.Read(ctx, "u1")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func deleteProduct(id string) *dyn.DeleteItemInput {
	table := "products"
	return &dyn.DeleteItemInput{
		TableName: &table,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		},
	}
}
