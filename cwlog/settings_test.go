package cwlog_test

import (
	"context"
	"testing"

	"github.com/advdv/reqlog"
	"github.com/advdv/reqlog/cwlog"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDynamo keeps items by the string value of their "name" attribute.
type mockDynamo struct {
	table string
	items map[string]map[string]types.AttributeValue
	err   error
}

func newMockDynamo(table string) *mockDynamo {
	return &mockDynamo{table: table, items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockDynamo) key(table *string, key map[string]types.AttributeValue) (string, error) {
	if aws.ToString(table) != m.table {
		return "", errors.Errorf("ResourceNotFoundException: table %q", aws.ToString(table))
	}
	s, ok := key["name"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("ValidationException: missing key")
	}
	return s.Value, nil
}

func (m *mockDynamo) GetItem(
	_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options),
) (*dynamodb.GetItemOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	k, err := m.key(in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: m.items[k]}, nil
}

func (m *mockDynamo) PutItem(
	_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options),
) (*dynamodb.PutItemOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	k, err := m.key(in.TableName, in.Item)
	if err != nil {
		return nil, err
	}
	m.items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoSettings(t *testing.T) {
	ctx := context.Background()
	store := cwlog.NewDynamoSettings(newMockDynamo("settings"), "settings")

	got, err := store.Get(ctx, reqlog.SensitiveFieldsKey)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Set(ctx, reqlog.SensitiveFieldsKey, []string{"field_ssn", "field_dob", "field_ssn"}))

	got, err = store.Get(ctx, reqlog.SensitiveFieldsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"field_ssn", "field_dob", "field_ssn"}, got)

	require.NoError(t, store.Set(ctx, reqlog.SensitiveFieldsKey, nil))
	got, err = store.Get(ctx, reqlog.SensitiveFieldsKey)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDynamoSettings_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("api error", func(t *testing.T) {
		api := newMockDynamo("settings")
		api.err = errors.New("ProvisionedThroughputExceededException")
		store := cwlog.NewDynamoSettings(api, "settings")

		_, err := store.Get(ctx, "k")
		require.ErrorContains(t, err, `failed to get setting "k"`)
		require.ErrorContains(t, store.Set(ctx, "k", []string{"a"}), `failed to put setting "k"`)
	})

	t.Run("malformed item", func(t *testing.T) {
		api := newMockDynamo("settings")
		api.items["k"] = map[string]types.AttributeValue{
			"name":   &types.AttributeValueMemberS{Value: "k"},
			"values": &types.AttributeValueMemberSS{Value: []string{"a"}},
		}

		_, err := cwlog.NewDynamoSettings(api, "settings").Get(ctx, "k")
		require.ErrorContains(t, err, "has no list of values")
	})

	t.Run("non-string value", func(t *testing.T) {
		api := newMockDynamo("settings")
		api.items["k"] = map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: "k"},
			"values": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: "a"},
				&types.AttributeValueMemberN{Value: "1"},
			}},
		}

		_, err := cwlog.NewDynamoSettings(api, "settings").Get(ctx, "k")
		require.ErrorContains(t, err, "non-string value at index 1")
	})
}

func TestDynamoSettings_BacksFieldPolicy(t *testing.T) {
	ctx := context.Background()
	policy := reqlog.NewFieldPolicy(cwlog.NewDynamoSettings(newMockDynamo("settings"), "settings"))

	require.NoError(t, policy.ReplaceText(ctx, "field_ssn\n\n  field_dob  \n"))

	text, err := policy.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "field_ssn\nfield_dob", text)
}
