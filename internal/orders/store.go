package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

// ErrAlreadyExists is returned by Create when a receipt with the same order id is stored.
var ErrAlreadyExists = errors.New("order already recorded")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create stores a receipt once. A second Create for the same order id returns
// ErrAlreadyExists and leaves the stored receipt untouched.
func (s *Store) Create(ctx context.Context, r Receipt) error {
	now := s.nowFunc()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.Status == "" {
		r.Status = StatusCompleted
	}
	if r.Deliveries == 0 {
		r.Deliveries = 1
	}
	it := toItem(r)
	it.UpdatedAt = now

	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches a receipt by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Receipt, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       orderKey(orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it receiptItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	r, err := it.receipt()
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordRedelivery increases the deliveries counter of an existing receipt.
func (s *Store) RecordRedelivery(ctx context.Context, orderID string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		UpdateExpression:    awsString("SET deliveries = if_not_exists(deliveries, :zero) + :inc, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
			":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("record redelivery: %w", err)
	}
	return nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }
