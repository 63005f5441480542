// Package dynamodb implements the AttributeStore on a single DynamoDB table.
//
// Every store key maps to one item (PK = prefix+key, SK = "ENTRY"). Hash
// fields are flat item attributes prefixed with "a_", plain values and
// counters live in "val" and sets in the "members" string set.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"kgraph/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	entrySK     = "ENTRY"
	attrPrefix  = "a_"
	valueAttr   = "val"
	membersAttr = "members"
)

// DBClient defines the DynamoDB operations the store needs, making it testable.
type DBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store implements ports.AttributeStore using DynamoDB
type Store struct {
	client    DBClient
	tableName string
	prefix    string
	logger    *zap.Logger
}

var _ ports.AttributeStore = (*Store)(nil)

// NewStore creates a new DynamoDB-backed store
func NewStore(client DBClient, tableName, prefix string, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		prefix:    prefix,
		logger:    logger,
	}
}

func (s *Store) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: s.prefix + key},
		"SK": &types.AttributeValueMemberS{Value: entrySK},
	}
}

func (s *Store) getItem(ctx context.Context, key string, projection ...string) (map[string]types.AttributeValue, error) {
	input := &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	}
	if len(projection) > 0 {
		names := make([]expression.NameBuilder, 0, len(projection))
		for _, p := range projection {
			names = append(names, expression.Name(p))
		}
		proj := expression.NamesList(names[0], names[1:]...)
		expr, err := expression.NewBuilder().WithProjection(proj).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build projection: %w", err)
		}
		input.ProjectionExpression = expr.Projection()
		input.ExpressionAttributeNames = expr.Names()
	}

	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", key, err)
	}
	return out.Item, nil
}

// SetAttributes merges fields into the item at key
func (s *Store) SetAttributes(ctx context.Context, key string, attrs map[string]string) error {
	if len(attrs) == 0 {
		return nil
	}

	fields := make([]string, 0, len(attrs))
	for f := range attrs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var update expression.UpdateBuilder
	for _, f := range fields {
		update = update.Set(expression.Name(attrPrefix+f), expression.Value(attrs[f]))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.itemKey(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to set attributes on %s: %w", key, err)
	}
	return nil
}

// GetAttributes returns all hash fields stored on key
func (s *Store) GetAttributes(ctx context.Context, key string) (map[string]string, error) {
	item, err := s.getItem(ctx, key)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]string)
	for name, av := range item {
		if !strings.HasPrefix(name, attrPrefix) {
			continue
		}
		if sv, ok := av.(*types.AttributeValueMemberS); ok {
			attrs[strings.TrimPrefix(name, attrPrefix)] = sv.Value
		}
	}
	return attrs, nil
}

// GetAttribute returns one hash field
func (s *Store) GetAttribute(ctx context.Context, key, field string) (string, bool, error) {
	item, err := s.getItem(ctx, key, attrPrefix+field)
	if err != nil {
		return "", false, err
	}
	sv, ok := item[attrPrefix+field].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, nil
	}
	return sv.Value, true, nil
}

// HasAttribute reports whether a hash field exists
func (s *Store) HasAttribute(ctx context.Context, key, field string) (bool, error) {
	_, ok, err := s.GetAttribute(ctx, key, field)
	return ok, err
}

// SetValue stores a plain value. Integers are written as numbers so
// Increment can operate on them.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	var operand expression.OperandBuilder = expression.Value(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		operand = expression.Value(n)
	}

	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name(valueAttr), operand)).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.itemKey(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// GetValue reads a plain value, numeric or string
func (s *Store) GetValue(ctx context.Context, key string) (string, bool, error) {
	item, err := s.getItem(ctx, key, valueAttr)
	if err != nil {
		return "", false, err
	}
	switch v := item[valueAttr].(type) {
	case *types.AttributeValueMemberN:
		return v.Value, true, nil
	case *types.AttributeValueMemberS:
		return v.Value, true, nil
	}
	return "", false, nil
}

// Increment atomically adds one to the counter at key
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(valueAttr), expression.Value(1))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.itemKey(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s: %w", key, err)
	}

	if _, ok := out.Attributes[valueAttr].(*types.AttributeValueMemberN); !ok {
		return 0, fmt.Errorf("counter %s returned no numeric value", key)
	}
	var counter struct {
		Value int64 `dynamodbav:"val"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &counter); err != nil {
		return 0, fmt.Errorf("counter %s is not an integer: %w", key, err)
	}
	return counter.Value, nil
}

// Exists reports whether an item is stored under key
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	item, err := s.getItem(ctx, key, "PK")
	if err != nil {
		return false, err
	}
	return len(item) > 0, nil
}

var memberName = map[string]string{"#m": membersAttr}

func memberValue(member string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":m": &types.AttributeValueMemberSS{Value: []string{member}},
	}
}

// AddToSet adds member to the string set at key
func (s *Store) AddToSet(ctx context.Context, key, member string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.itemKey(key),
		UpdateExpression:          aws.String("ADD #m :m"),
		ExpressionAttributeNames:  memberName,
		ExpressionAttributeValues: memberValue(member),
	})
	if err != nil {
		return fmt.Errorf("failed to add to %s: %w", key, err)
	}
	return nil
}

// RemoveFromSet removes member and drops the item once the set is empty
func (s *Store) RemoveFromSet(ctx context.Context, key, member string) error {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.itemKey(key),
		UpdateExpression:          aws.String("DELETE #m :m"),
		ExpressionAttributeNames:  memberName,
		ExpressionAttributeValues: memberValue(member),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return fmt.Errorf("failed to remove from %s: %w", key, err)
	}
	if _, ok := out.Attributes[membersAttr]; ok {
		return nil
	}

	// A concurrent AddToSet may have refilled the set.
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name(membersAttr).AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      s.itemKey(key),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		s.logger.Warn("Failed to drop empty set item", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// GetSet returns all members of the set at key
func (s *Store) GetSet(ctx context.Context, key string) ([]string, error) {
	item, err := s.getItem(ctx, key, membersAttr)
	if err != nil {
		return nil, err
	}
	ss, ok := item[membersAttr].(*types.AttributeValueMemberSS)
	if !ok {
		return []string{}, nil
	}
	return ss.Value, nil
}

// Ping checks that the table is reachable
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", s.tableName, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no dedicated connection
func (s *Store) Close() error {
	return nil
}
