package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

var (
	// ErrLineNotFound is returned when the user has no line for the product.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInsufficientStock is returned when an increment would pass the stock level.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// batchWriteLimit is the most requests DynamoDB accepts in one BatchWriteItem.
const batchWriteLimit = 25

// Line is one (user, product) pairing with a quantity.
type Line struct {
	UserID    string    `dynamodbav:"user_id"`    // PK
	ProductID string    `dynamodbav:"product_id"` // SK
	Quantity  int       `dynamodbav:"quantity"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// Store encapsulates operations on the cart lines table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new cart lines Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches one line. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, userID, productID string) (*Line, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            lineKey(userID, productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var l Line
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, fmt.Errorf("unmarshal cart line: %w", err)
	}
	return &l, nil
}

// Increment adds one unit, creating the line at quantity 1 if needed. The write
// only succeeds while the resulting quantity stays within stock; otherwise it
// returns ErrInsufficientStock with the current quantity.
func (s *Store) Increment(ctx context.Context, userID, productID string, stock int) (int, error) {
	now := s.nowFunc().Format(time.RFC3339Nano)
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 lineKey(userID, productID),
		UpdateExpression:    awsString("SET quantity = if_not_exists(quantity, :zero) + :one, created_at = if_not_exists(created_at, :ua), updated_at = :ua"),
		ConditionExpression: awsString("attribute_not_exists(quantity) OR quantity < :stock"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":stock": &types.AttributeValueMemberN{Value: strconv.Itoa(stock)},
			":ua":    &types.AttributeValueMemberS{Value: now},
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			var l Line
			if uerr := attributevalue.UnmarshalMap(ccf.Item, &l); uerr != nil {
				return 0, fmt.Errorf("unmarshal cart line after failed increment: %w", uerr)
			}
			return l.Quantity, ErrInsufficientStock
		}
		return 0, fmt.Errorf("increment cart line: %w", err)
	}

	var l Line
	if err := attributevalue.UnmarshalMap(out.Attributes, &l); err != nil {
		return 0, fmt.Errorf("unmarshal cart line: %w", err)
	}
	return l.Quantity, nil
}

// Decrement removes one unit and returns the remaining quantity. A line at
// quantity 1 is deleted and 0 is returned.
func (s *Store) Decrement(ctx context.Context, userID, productID string) (int, error) {
	now := s.nowFunc().Format(time.RFC3339Nano)
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 lineKey(userID, productID),
		UpdateExpression:    awsString("SET quantity = quantity - :one, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(quantity) AND quantity > :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ua":  &types.AttributeValueMemberS{Value: now},
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		var l Line
		if err := attributevalue.UnmarshalMap(out.Attributes, &l); err != nil {
			return 0, fmt.Errorf("unmarshal cart line: %w", err)
		}
		return l.Quantity, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return 0, fmt.Errorf("decrement cart line: %w", err)
	}
	if len(ccf.Item) == 0 {
		return 0, ErrLineNotFound
	}

	// the line is at quantity 1: drop it, unless it changed underneath us
	_, err = s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 lineKey(userID, productID),
		ConditionExpression: awsString("quantity = :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if errors.As(err, &ccf) {
			return 0, ErrLineNotFound
		}
		return 0, fmt.Errorf("delete cart line: %w", err)
	}
	return 0, nil
}

// Remove deletes a line outright.
func (s *Store) Remove(ctx context.Context, userID, productID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 lineKey(userID, productID),
		ConditionExpression: awsString("attribute_exists(product_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrLineNotFound
		}
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

// ListByUser returns every line of a user ordered by product id.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Line, error) {
	var lines []Line
	p := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ConsistentRead: awsBool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query cart lines: %w", err)
		}
		var items []Line
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal cart lines: %w", err)
		}
		lines = append(lines, items...)
	}
	return lines, nil
}

// Clear deletes every line of a user and reports how many were removed.
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	lines, err := s.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(lines); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(lines) {
			end = len(lines)
		}
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, l := range lines[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: lineKey(l.UserID, l.ProductID)},
			})
		}
		if err := s.batchWrite(ctx, reqs); err != nil {
			return start, err
		}
	}
	return len(lines), nil
}

// RemoveSettled takes the given quantities off a user's cart and reports how
// many lines were touched. A line that grew since it was read keeps the
// difference. Lines the caller did not pass are left alone.
func (s *Store) RemoveSettled(ctx context.Context, lines []Line) (int, error) {
	touched := 0
	for _, l := range lines {
		ok, err := s.removeSettled(ctx, l)
		if err != nil {
			return touched, err
		}
		if ok {
			touched++
		}
	}
	return touched, nil
}

func (s *Store) removeSettled(ctx context.Context, l Line) (bool, error) {
	qty := &types.AttributeValueMemberN{Value: strconv.Itoa(l.Quantity)}
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 lineKey(l.UserID, l.ProductID),
		ConditionExpression: awsString("quantity = :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q": qty,
		},
	})
	if err == nil {
		return true, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return false, fmt.Errorf("delete settled cart line: %w", err)
	}

	// the line grew after it was read: keep only the extra units
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 lineKey(l.UserID, l.ProductID),
		UpdateExpression:    awsString("SET quantity = quantity - :q, updated_at = :ua"),
		ConditionExpression: awsString("quantity > :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":  qty,
			":ua": &types.AttributeValueMemberS{Value: s.nowFunc().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if errors.As(err, &ccf) {
			// removed or shrunk by the user meanwhile
			return false, nil
		}
		return false, fmt.Errorf("trim settled cart line: %w", err)
	}
	return true, nil
}

func (s *Store) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{s.tableName: reqs}
	for attempt := 0; attempt < 5 && len(pending[s.tableName]) > 0; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dyn.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch write cart lines: %w", err)
		}
		pending = out.UnprocessedItems
		if len(pending[s.tableName]) > 0 {
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
		}
	}
	if len(pending[s.tableName]) > 0 {
		return fmt.Errorf("batch write cart lines: %d requests left unprocessed", len(pending[s.tableName]))
	}
	return nil
}

func lineKey(userID, productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: userID},
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
