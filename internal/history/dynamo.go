package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"skychat/internal/config"
	"skychat/internal/models"
)

// DynamoAPI is the subset of the DynamoDB client used for history.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoItem mirrors the table layout: UserID hash key, Timestamp range key.
type dynamoItem struct {
	UserID    string `dynamodbav:"UserID"`
	Timestamp string `dynamodbav:"Timestamp"`
	Sender    string `dynamodbav:"Sender"`
	Message   string `dynamodbav:"Message"`
}

type dynamoStore struct {
	api   DynamoAPI
	table string
}

// NewDynamoStore builds a DynamoDB client from the default AWS credential chain.
func NewDynamoStore(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	if cfg.TableName == "" {
		return nil, errors.New("dynamodb table name must be configured")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoStoreWithAPI(client, cfg.TableName), nil
}

// NewDynamoStoreWithAPI uses an already constructed client.
func NewDynamoStoreWithAPI(api DynamoAPI, table string) Store {
	return &dynamoStore{api: api, table: table}
}

func (s *dynamoStore) Put(ctx context.Context, msg models.Message) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		UserID:    msg.UserID,
		Timestamp: msg.Timestamp,
		Sender:    string(msg.Sender),
		Message:   msg.Text,
	})
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func (s *dynamoStore) Query(ctx context.Context, userID string, limit int) ([]models.Message, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("UserID = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	var items []dynamoItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	messages := make([]models.Message, 0, len(items))
	for _, it := range items {
		messages = append(messages, models.Message{
			UserID:    it.UserID,
			Timestamp: it.Timestamp,
			Sender:    models.Sender(it.Sender),
			Text:      it.Message,
		})
	}
	return messages, nil
}

func (s *dynamoStore) Close() error { return nil }
