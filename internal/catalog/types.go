package catalog

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-storefront-checkout/internal/money"
)

// Product is a sellable item with its current stock level.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// productItem is the shape persisted in the products table.
type productItem struct {
	ProductID string                `dynamodbav:"product_id"` // PK
	Name      string                `dynamodbav:"name"`
	Price     attributevalue.Number `dynamodbav:"price"`
	Category  string                `dynamodbav:"category"`
	Stock     int                   `dynamodbav:"stock"`
	CreatedAt time.Time             `dynamodbav:"created_at"`
	UpdatedAt time.Time             `dynamodbav:"updated_at"`
}

func toItem(p Product) productItem {
	return productItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     money.Number(p.Price),
		Category:  p.Category,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (it productItem) product() (Product, error) {
	price, err := money.FromNumber(it.Price)
	if err != nil {
		return Product{}, err
	}
	return Product{
		ID:        it.ProductID,
		Name:      it.Name,
		Price:     price,
		Category:  it.Category,
		Stock:     it.Stock,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}, nil
}
