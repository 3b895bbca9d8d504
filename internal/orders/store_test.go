package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws/dynamotest"
)

const table = "orders-table"

func setupStore(t *testing.T) (*Store, *dynamotest.Fake) {
	t.Helper()
	fake := dynamotest.New(dynamotest.TableSchema{Name: table, PartitionKey: "order_id"})
	return NewStore(fake, table), fake
}

func sampleReceipt() Receipt {
	return Receipt{
		OrderID:        "order-1",
		UserID:         "u1",
		ChargePolicy:   "discounted",
		OriginalAmount: decimal.RequireFromString("59.97"),
		DiscountAmount: decimal.RequireFromString("19.99"),
		ChargedAmount:  decimal.RequireFromString("39.98"),
		CompletedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Lines: []Line{{
			ProductID:       "p1",
			ProductName:     "Classic T-Shirt",
			Quantity:        3,
			UnitPrice:       decimal.RequireFromString("19.99"),
			DiscountApplied: "Buy 1 Get 1",
			DiscountAmount:  decimal.RequireFromString("19.99"),
			FinalPrice:      decimal.RequireFromString("39.98"),
		}},
	}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleReceipt()))

	got, err := s.Get(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, got.Deliveries)
	assert.True(t, got.ChargedAmount.Equal(decimal.RequireFromString("39.98")))
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Buy 1 Get 1", got.Lines[0].DiscountApplied)
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.RequireFromString("19.99")))
}

func TestGet_Missing(t *testing.T) {
	s, _ := setupStore(t)
	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreate_DuplicateKeepsOriginal(t *testing.T) {
	s, fake := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleReceipt()))

	dup := sampleReceipt()
	dup.ChargedAmount = decimal.NewFromInt(1)
	assert.ErrorIs(t, s.Create(ctx, dup), ErrAlreadyExists)
	assert.Equal(t, 1, fake.Len(table))

	got, err := s.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.True(t, got.ChargedAmount.Equal(decimal.RequireFromString("39.98")))
}

func TestRecordRedelivery(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sampleReceipt()))
	require.NoError(t, s.RecordRedelivery(ctx, "order-1"))
	require.NoError(t, s.RecordRedelivery(ctx, "order-1"))

	got, err := s.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Deliveries)

	assert.Error(t, s.RecordRedelivery(ctx, "missing"))
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	s, fake := setupStore(t)
	boom := errors.New("throttled")
	fake.Err = func(string) error { return boom }

	assert.ErrorIs(t, s.Create(context.Background(), sampleReceipt()), boom)
	_, err := s.Get(context.Background(), "order-1")
	assert.ErrorIs(t, err, boom)
}
