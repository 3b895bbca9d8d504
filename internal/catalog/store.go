package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

var (
	// ErrNotFound is returned when a product id does not resolve.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a conditional stock decrement fails.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Store encapsulates operations on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new products Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a product by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            productKey(productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it productItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p, err := it.product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Put creates or replaces a product.
func (s *Store) Put(ctx context.Context, p Product) error {
	now := s.nowFunc()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(toItem(p))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// List returns every product, newest first.
func (s *Store) List(ctx context.Context) ([]Product, error) {
	var products []Product
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}
		var items []productItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		for _, it := range items {
			prod, err := it.product()
			if err != nil {
				return nil, err
			}
			products = append(products, prod)
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

// DecrementStock atomically removes qty units if at least qty remain.
// On success it returns the remaining stock. When the condition fails it returns
// ErrInsufficientStock together with the stock that was available, or ErrNotFound
// if the product no longer exists.
func (s *Store) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 productKey(productID),
		UpdateExpression:    awsString("SET stock = stock - :qty, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(product_id) AND stock >= :qty"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return 0, ErrNotFound
			}
			var it productItem
			if uerr := attributevalue.UnmarshalMap(ccf.Item, &it); uerr != nil {
				return 0, fmt.Errorf("unmarshal product after failed decrement: %w", uerr)
			}
			return it.Stock, ErrInsufficientStock
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	var it productItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return 0, fmt.Errorf("unmarshal product: %w", err)
	}
	return it.Stock, nil
}

// RestoreStock adds qty units back, compensating an earlier decrement.
func (s *Store) RestoreStock(ctx context.Context, productID string, qty int) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 productKey(productID),
		UpdateExpression:    awsString("SET stock = stock + :qty, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(product_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
