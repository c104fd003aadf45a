package cwlog

import (
	"context"

	"github.com/advdv/reqlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
)

// Attribute names of the settings table. The partition key is a string attribute "name".
const (
	settingsKeyAttr    = "name"
	settingsValuesAttr = "values"
)

// DynamoAPI is the part of the DynamoDB client used by [DynamoSettings].
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoSettings stores settings lists in a DynamoDB table, one item per key. Values are kept in a list attribute
// so their order survives the round trip.
type DynamoSettings struct {
	client DynamoAPI
	table  string
}

// NewDynamoSettings inits a store on the given table.
func NewDynamoSettings(client DynamoAPI, table string) *DynamoSettings {
	return &DynamoSettings{client: client, table: table}
}

// Get implements [reqlog.SettingsStore].
func (s *DynamoSettings) Get(ctx context.Context, key string) ([]string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{settingsKeyAttr: &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get setting %q", key)
	}
	if out.Item == nil {
		return nil, nil
	}

	list, ok := out.Item[settingsValuesAttr].(*types.AttributeValueMemberL)
	if !ok {
		return nil, errors.Errorf("setting %q has no list of values", key)
	}

	vals := make([]string, 0, len(list.Value))
	for i, av := range list.Value {
		sv, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return nil, errors.Errorf("setting %q has a non-string value at index %d", key, i)
		}
		vals = append(vals, sv.Value)
	}

	return vals, nil
}

// Set implements [reqlog.SettingsStore]. The whole list is replaced in a single write.
func (s *DynamoSettings) Set(ctx context.Context, key string, vals []string) error {
	list := make([]types.AttributeValue, 0, len(vals))
	for _, v := range vals {
		list = append(list, &types.AttributeValueMemberS{Value: v})
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			settingsKeyAttr:    &types.AttributeValueMemberS{Value: key},
			settingsValuesAttr: &types.AttributeValueMemberL{Value: list},
		},
	}); err != nil {
		return errors.Wrapf(err, "failed to put setting %q", key)
	}

	return nil
}

var _ reqlog.SettingsStore = &DynamoSettings{}
