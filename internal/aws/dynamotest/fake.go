// Package dynamotest provides an in-memory DynamoDB stand-in for package tests.
//
// It understands the small expression dialect the stores in this module emit:
// conditions joined by AND / OR over attribute_exists, attribute_not_exists and
// binary comparisons, and SET update expressions with +, - and if_not_exists.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSchema names a table and its key attributes. SortKey may be empty.
type TableSchema struct {
	Name         string
	PartitionKey string
	SortKey      string
}

type item = map[string]types.AttributeValue

// Fake is a concurrency-safe DynamoDB table set.
type Fake struct {
	mu      sync.Mutex
	schemas map[string]TableSchema
	tables  map[string]map[string]item

	// BeforeUpdateItem runs before every UpdateItem, outside the lock, so tests can
	// interleave competing writes.
	BeforeUpdateItem func(in *dynamodb.UpdateItemInput)

	// AfterUpdateItem runs after every successful UpdateItem, outside the lock.
	AfterUpdateItem func(in *dynamodb.UpdateItemInput)

	// Err, when set, is returned by every call whose operation name it accepts.
	Err func(op string) error
}

// New returns a Fake with the given tables created.
func New(schemas ...TableSchema) *Fake {
	f := &Fake{
		schemas: map[string]TableSchema{},
		tables:  map[string]map[string]item{},
	}
	for _, s := range schemas {
		f.schemas[s.Name] = s
		f.tables[s.Name] = map[string]item{}
	}
	return f
}

// Put stores an item directly, bypassing conditions.
func (f *Fake) Put(table string, it map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, err := f.keyOf(table, it)
	if err != nil {
		panic(err)
	}
	f.tables[table][k] = clone(it)
}

// Item returns a copy of the item stored under the given key values, or nil.
func (f *Fake) Item(table string, keyValues ...string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := joinKey(keyValues...)
	it, ok := f.tables[table][k]
	if !ok {
		return nil
	}
	return clone(it)
}

// Len reports how many items a table holds.
func (f *Fake) Len(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *Fake) injected(ctx context.Context, op string) error {
	// the SDK fails calls made on a finished context
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("operation error DynamoDB: %s, %w", op, err)
	}
	if f.Err == nil {
		return nil
	}
	return f.Err(op)
}

func (f *Fake) GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := f.injected(ctx, "GetItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	table := deref(in.TableName)
	k, err := f.keyOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := f.tables[table][k]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: clone(it)}, nil
}

func (f *Fake) PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := f.injected(ctx, "PutItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	table := deref(in.TableName)
	k, err := f.keyOf(table, in.Item)
	if err != nil {
		return nil, err
	}
	old := f.tables[table][k]
	ev := evaluator{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	if err := ev.check(in.ConditionExpression, old, in.ReturnValuesOnConditionCheckFailure); err != nil {
		return nil, err
	}
	f.tables[table][k] = clone(in.Item)
	out := &dynamodb.PutItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = clone(old)
	}
	return out, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.BeforeUpdateItem != nil {
		f.BeforeUpdateItem(in)
	}
	if err := f.injected(ctx, "UpdateItem"); err != nil {
		return nil, err
	}
	out, err := f.updateItem(in)
	if err == nil && f.AfterUpdateItem != nil {
		f.AfterUpdateItem(in)
	}
	return out, err
}

func (f *Fake) updateItem(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := deref(in.TableName)
	k, err := f.keyOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	old := f.tables[table][k]
	ev := evaluator{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	if err := ev.check(in.ConditionExpression, old, in.ReturnValuesOnConditionCheckFailure); err != nil {
		return nil, err
	}
	base := clone(old)
	if base == nil {
		base = clone(in.Key)
	}
	next, err := ev.update(deref(in.UpdateExpression), base)
	if err != nil {
		return nil, err
	}
	f.tables[table][k] = next

	out := &dynamodb.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllNew, types.ReturnValueUpdatedNew:
		out.Attributes = clone(next)
	case types.ReturnValueAllOld, types.ReturnValueUpdatedOld:
		out.Attributes = clone(old)
	}
	return out, nil
}

func (f *Fake) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := f.injected(ctx, "DeleteItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	table := deref(in.TableName)
	k, err := f.keyOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	old := f.tables[table][k]
	ev := evaluator{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	if err := ev.check(in.ConditionExpression, old, in.ReturnValuesOnConditionCheckFailure); err != nil {
		return nil, err
	}
	delete(f.tables[table], k)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && old != nil {
		out.Attributes = clone(old)
	}
	return out, nil
}

func (f *Fake) Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := f.injected(ctx, "Query"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := evaluator{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	items, err := f.filter(deref(in.TableName), ev, deref(in.KeyConditionExpression), deref(in.FilterExpression))
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (f *Fake) Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := f.injected(ctx, "Scan"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := evaluator{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	items, err := f.filter(deref(in.TableName), ev, "", deref(in.FilterExpression))
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (f *Fake) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if err := f.injected(ctx, "BatchWriteItem"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for table, reqs := range in.RequestItems {
		if len(reqs) > 25 {
			return nil, fmt.Errorf("batch write: %d requests exceeds 25", len(reqs))
		}
		for _, r := range reqs {
			switch {
			case r.PutRequest != nil:
				k, err := f.keyOf(table, r.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				f.tables[table][k] = clone(r.PutRequest.Item)
			case r.DeleteRequest != nil:
				k, err := f.keyOf(table, r.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(f.tables[table], k)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *Fake) filter(table string, ev evaluator, keyCond, filterExpr string) ([]item, error) {
	rows, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q does not exist", table)
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []item{}
	for _, k := range keys {
		it := rows[k]
		if keyCond != "" {
			match, err := ev.condition(keyCond, it)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		if filterExpr != "" {
			match, err := ev.condition(filterExpr, it)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		out = append(out, clone(it))
	}
	return out, nil
}

func (f *Fake) keyOf(table string, it item) (string, error) {
	schema, ok := f.schemas[table]
	if !ok {
		return "", fmt.Errorf("table %q does not exist", table)
	}
	pk, ok := scalar(it[schema.PartitionKey])
	if !ok {
		return "", fmt.Errorf("missing partition key %q", schema.PartitionKey)
	}
	if schema.SortKey == "" {
		return joinKey(pk), nil
	}
	sk, ok := scalar(it[schema.SortKey])
	if !ok {
		return "", fmt.Errorf("missing sort key %q", schema.SortKey)
	}
	return joinKey(pk, sk), nil
}

func scalar(av types.AttributeValue) (string, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, true
	case *types.AttributeValueMemberN:
		return v.Value, true
	}
	return "", false
}

func joinKey(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += "\x00"
		}
		k += p
	}
	return k
}

// clone copies the top-level map; attribute values are treated as immutable.
func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
