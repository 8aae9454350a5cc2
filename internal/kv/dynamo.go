package kv

import (
	"context"
	"errors"
	"fmt"
	"meetinclick/backend/internal/config"
	"meetinclick/backend/internal/models"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type dynamoItem struct {
	Path    string `dynamodbav:"path"`
	Value   []byte `dynamodbav:"value"`
	Version int64  `dynamodbav:"version"`
}

// DynamoStore keeps one item per path in a single table keyed by "path".
// DynamoDB has no pub/sub, so change events go through broker.
type DynamoStore struct {
	client DynamoAPI
	table  string
	broker Broker
}

func NewDynamoStore(client DynamoAPI, table string, broker Broker) *DynamoStore {
	if broker == nil {
		broker = NewMemoryBroker()
	}
	return &DynamoStore{client: client, table: table, broker: broker}
}

// EnsureTable creates the table with on-demand billing when it is missing.
func (s *DynamoStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("kv: describe table %s: %w", s.table, err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("path"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("path"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("kv: create table %s: %w", s.table, err)
	}
	logrus.WithFields(logrus.Fields{"component": "kv", "table": s.table}).Info("created DynamoDB table")
	return nil
}

func (s *DynamoStore) key(path string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"path": &types.AttributeValueMemberS{Value: path}}
}

func (s *DynamoStore) load(ctx context.Context, path string) (*dynamoItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(path),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("kv: dynamodb get %s: %w", path, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("kv: decode item %s: %w", path, err)
	}
	return &item, nil
}

func (s *DynamoStore) Get(ctx context.Context, path string) ([]byte, error) {
	item, err := s.load(ctx, path)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value, nil
}

// Set overwrites unconditionally but still bumps the version so concurrent
// Updates notice it.
func (s *DynamoStore) Set(ctx context.Context, path string, value []byte) error {
	return s.Update(ctx, path, func([]byte, bool) ([]byte, error) {
		return value, nil
	})
}

func (s *DynamoStore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	for attempt := 0; attempt < config.MaxUpdateRetries; attempt++ {
		current, err := s.load(ctx, path)
		if err != nil {
			return err
		}

		var (
			value   []byte
			version int64
		)
		if current != nil {
			value, version = current.Value, current.Version
		}

		next, err := fn(value, current != nil)
		if errors.Is(err, ErrNoWrite) {
			return nil
		}
		if err != nil {
			return err
		}

		item, err := attributevalue.MarshalMap(dynamoItem{Path: path, Value: next, Version: version + 1})
		if err != nil {
			return fmt.Errorf("kv: encode item %s: %w", path, err)
		}
		in := &dynamodb.PutItemInput{
			TableName: aws.String(s.table),
			Item:      item,
		}
		if current == nil {
			in.ConditionExpression = aws.String("attribute_not_exists(#p)")
			in.ExpressionAttributeNames = map[string]string{"#p": "path"}
		} else {
			in.ConditionExpression = aws.String("#v = :expected")
			in.ExpressionAttributeNames = map[string]string{"#v": "version"}
			in.ExpressionAttributeValues = map[string]types.AttributeValue{
				":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
			}
		}

		_, err = s.client.PutItem(ctx, in)
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("kv: dynamodb put %s: %w", path, err)
		}

		s.publish(ctx, path, next, false)
		return nil
	}
	return ErrConflict
}

func (s *DynamoStore) Delete(ctx context.Context, path string) error {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          s.key(path),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("kv: dynamodb delete %s: %w", path, err)
	}
	if len(out.Attributes) == 0 {
		return nil
	}
	s.publish(ctx, path, nil, true)
	return nil
}

func (s *DynamoStore) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	return s.broker.Subscribe(ctx, path)
}

func (s *DynamoStore) publish(ctx context.Context, path string, value []byte, deleted bool) {
	err := s.broker.Publish(ctx, models.ChangeEvent{
		Path:    path,
		Value:   value,
		Deleted: deleted,
		At:      time.Now().UTC(),
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"component": "kv", "path": path}).
			Error("change event not published")
	}
}
