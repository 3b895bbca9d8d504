package discounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
	"github.com/imrishuroy/go-storefront-checkout/internal/money"
)

// ErrNotFound is returned when a rule id does not resolve.
var ErrNotFound = errors.New("discount rule not found")

// ErrAlreadyExists is returned when creating a rule whose id is taken.
var ErrAlreadyExists = errors.New("discount rule already exists")

// ruleItem is the shape persisted in the discount rules table.
type ruleItem struct {
	RuleID         string                `dynamodbav:"rule_id"` // PK
	Type           string                `dynamodbav:"type"`
	RuleType       string                `dynamodbav:"rule_type"`
	ProductID      string                `dynamodbav:"product_id,omitempty"`
	Category       string                `dynamodbav:"category,omitempty"`
	DiscountValue  attributevalue.Number `dynamodbav:"discount_value"`
	MinQuantity    int                   `dynamodbav:"min_quantity"`
	PayForQuantity int                   `dynamodbav:"pay_for_quantity,omitempty"`
	IsActive       bool                  `dynamodbav:"is_active"`
	CreatedAt      time.Time             `dynamodbav:"created_at"`
	UpdatedAt      time.Time             `dynamodbav:"updated_at"`
}

func toItem(r Record) ruleItem {
	return ruleItem{
		RuleID:         r.ID,
		Type:           string(r.Type),
		RuleType:       r.RuleType,
		ProductID:      r.ProductID,
		Category:       r.Category,
		DiscountValue:  money.Number(r.DiscountValue),
		MinQuantity:    r.MinQuantity,
		PayForQuantity: r.PayForQuantity,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (it ruleItem) record() (Record, error) {
	value, err := money.FromNumber(it.DiscountValue)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:             it.RuleID,
		Type:           Type(it.Type),
		RuleType:       it.RuleType,
		ProductID:      it.ProductID,
		Category:       it.Category,
		DiscountValue:  value,
		MinQuantity:    it.MinQuantity,
		PayForQuantity: it.PayForQuantity,
		IsActive:       it.IsActive,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}, nil
}

// Store encapsulates operations on the discount rules table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new discount rules Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// ListActive returns the rules with is_active set.
func (s *Store) ListActive(ctx context.Context) ([]Record, error) {
	return s.scan(ctx, &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: awsString("is_active = :active"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":active": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
}

// ListAll returns every rule, newest first.
func (s *Store) ListAll(ctx context.Context) ([]Record, error) {
	return s.scan(ctx, &dyn.ScanInput{TableName: &s.tableName})
}

func (s *Store) scan(ctx context.Context, input *dyn.ScanInput) ([]Record, error) {
	var out []Record
	p := dyn.NewScanPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan discount rules: %w", err)
		}
		var items []ruleItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal discount rules: %w", err)
		}
		for _, it := range items {
			rec, err := it.record()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get fetches a rule by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       ruleKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it ruleItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal discount rule: %w", err)
	}
	rec, err := it.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create stores a new rule. The id must not exist yet.
func (s *Store) Create(ctx context.Context, r Record) (Record, error) {
	now := s.nowFunc()
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := s.put(ctx, r, "attribute_not_exists(rule_id)"); err != nil {
		if errors.Is(err, errConditionFailed) {
			return Record{}, ErrAlreadyExists
		}
		return Record{}, err
	}
	return r, nil
}

// Replace overwrites an existing rule, keeping its creation time.
func (s *Store) Replace(ctx context.Context, r Record) (Record, error) {
	r.UpdatedAt = s.nowFunc()
	if err := s.put(ctx, r, "attribute_exists(rule_id)"); err != nil {
		if errors.Is(err, errConditionFailed) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return r, nil
}

var errConditionFailed = errors.New("conditional check failed")

func (s *Store) put(ctx context.Context, r Record, condition string) error {
	item, err := attributevalue.MarshalMap(toItem(r))
	if err != nil {
		return fmt.Errorf("marshal discount rule: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString(condition),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return errConditionFailed
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Delete removes a rule, returning ErrNotFound if it did not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 ruleKey(id),
		ConditionExpression: awsString("attribute_exists(rule_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func ruleKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"rule_id": &types.AttributeValueMemberS{Value: id},
	}
}

func awsString(s string) *string { return &s }
