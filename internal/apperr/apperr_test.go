package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("checkout: %w", EmptyCart())

	assert.Equal(t, KindEmptyCart, KindOf(err))
	assert.True(t, Is(err, KindEmptyCart))
	assert.False(t, Is(err, KindNotFound))
}

func TestKindOf_UnclassifiedIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestInsufficientStock_Message(t *testing.T) {
	err := InsufficientStock(StockShortfall{ProductID: "p1", ProductName: "Sneakers", Available: 1, Requested: 3})

	assert.Equal(t, "Insufficient stock for Sneakers. Available: 1, Requested: 3", err.Message)
	assert.Equal(t, 3, err.Stock.Requested)
}

func TestAs_KeepsCauseForInternal(t *testing.T) {
	cause := errors.New("dynamo down")
	ae := As(cause)

	assert.Equal(t, KindInternal, ae.Kind)
	assert.ErrorIs(t, ae, cause)
	assert.Nil(t, As(nil))
}
