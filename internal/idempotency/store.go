package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for idempotency entries.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// ErrConditionFailed indicates a status transition found the record in an unexpected state.
var ErrConditionFailed = errors.New("conditional check failed")

// CreateIfNotExists creates an idempotency record with status IN_PROGRESS if the key does not exist.
// Returns (created=true, nil) if successfully created.
// Returns (created=false, nil) if the record already exists (caller should Get to inspect).
// Returns (created=false, err) on other errors.
func (s *Store) CreateIfNotExists(ctx context.Context, key, userID string) (bool, error) {
	now := s.nowFunc()
	rec := IdempotencyRecord{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		UserID:         userID,
		Attempts:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves an idempotency record by key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            recordKey(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// Reclaim moves a FAILED record back to IN_PROGRESS so the request can be
// retried. It returns false when another caller got there first or the record
// is not FAILED.
func (s *Store) Reclaim(ctx context.Context, key string) (bool, error) {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(key),
		UpdateExpression:    awsString("SET #s = :inprogress, attempts = if_not_exists(attempts, :zero) + :inc, updated_at = :ua, expires_at = :exp"),
		ConditionExpression: awsString("#s = :failed"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":zero":       &types.AttributeValueMemberN{Value: "0"},
			":inc":        &types.AttributeValueMemberN{Value: "1"},
			":ua":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":exp":        &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttlWindow).Unix(), 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("update item (reclaim): %w", err)
	}
	return true, nil
}

// MarkDone sets status to DONE and stores the response to replay.
// Only an IN_PROGRESS record may complete.
func (s *Store) MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(key),
		UpdateExpression:    awsString("SET #s = :done, order_id = :oid, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ConditionExpression: awsString("#s = :inprogress"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done":       &types.AttributeValueMemberS{Value: StatusDone},
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":oid":        &types.AttributeValueMemberS{Value: orderID},
			":rb":         &types.AttributeValueMemberS{Value: responseBody},
			":rs":         &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
			":ua":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// MarkFailed marks an IN_PROGRESS record as FAILED with a note, making it reclaimable.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(key),
		UpdateExpression:    awsString("SET #s = :failed, note = :n, updated_at = :ua"),
		ConditionExpression: awsString("#s = :inprogress"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":n":          &types.AttributeValueMemberS{Value: note},
			":ua":         &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

func recordKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

// Helper
func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
