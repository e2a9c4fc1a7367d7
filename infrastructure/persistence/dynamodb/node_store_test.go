package dynamodb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/infrastructure/persistence/abstractions"
	"ontology/infrastructure/persistence/retry"
	pkgerrors "ontology/pkg/errors"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func testNode(id string) *entities.Node {
	parent := "parent-1"
	n := &entities.Node{
		ID:        id,
		Title:     "Node " + id,
		NodeType:  valueobjects.NodeTypeActivity,
		CreatedBy: "alice",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	n.EnsureDefaults()
	n.Generalizations = valueobjects.DefaultCollections().WithLink(parent, "Parent")
	n.Properties["description"] = valueobjects.TextValue("a node")
	n.Properties[entities.PropertyParts] = valueobjects.CollectionsValue(valueobjects.DefaultCollections().WithLink("p1", "Part one"))
	n.Inheritance["description"] = entities.InheritedFrom(parent, valueobjects.InheritUnlessAlreadyOverridden)
	n.Inheritance[entities.PropertyParts] = entities.LocalInheritance(valueobjects.AlwaysInherit)
	n.PropertyType["description"] = valueobjects.PropertyTypeString
	n.PropertyType[entities.PropertyParts] = valueobjects.PropertyTypeCollection
	n.Contributors = []string{"alice"}
	return n
}

func storedItem(t *testing.T, n *entities.Node, version int64) map[string]types.AttributeValue {
	t.Helper()
	item, err := marshalMap(toNodeItem(n, version))
	require.NoError(t, err)
	return item
}

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func newTestStore(api *mockAPI) *NodeStore {
	return NewNodeStore(api, "ontology-test", "GSI1", zap.NewNop(), WithRetryConfig(fastRetry(3)))
}

func TestNodeStore_GetDecodesStoredItem(t *testing.T) {
	// Arrange
	api := &mockAPI{}
	original := testNode("n1")
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
		return pk == "NODE#n1" && aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{Item: storedItem(t, original, 4)}, nil)
	store := newTestStore(api)

	// Act
	got, err := store.Get(context.Background(), "n1")

	// Assert
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, original.Title, got.Title)
	assert.Equal(t, original.NodeType, got.NodeType)
	assert.True(t, original.Properties["description"].Equal(got.Properties["description"]))
	assert.True(t, original.Parts().Equal(got.Parts()))
	assert.Equal(t, "parent-1", got.Inheritance["description"].RefID())
	assert.Equal(t, valueobjects.AlwaysInherit, got.Inheritance[entities.PropertyParts].InheritanceType)
	assert.True(t, original.Generalizations.Equal(got.Generalizations))
	assert.Equal(t, original.CreatedAt, got.CreatedAt)
	api.AssertExpectations(t)
}

func TestNodeStore_GetMissingReturnsNil(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)
	store := newTestStore(api)

	got, err := store.Get(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNodeStore_TransactionWritesVersionConditions(t *testing.T) {
	// Arrange
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: storedItem(t, testNode("n1"), 7)}, nil)
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
	store := newTestStore(api)

	// Act
	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx ports.Transaction) error {
		if _, err := tx.Get(ctx, "n1"); err != nil {
			return err
		}
		patch := entities.NodePatch{}
		patch.Set(entities.PathTitle, "Renamed")
		patch.Delete(entities.PropertyPath("description"))
		if err := tx.Update("n1", patch); err != nil {
			return err
		}
		return tx.Set(testNode("n2"))
	})

	// Assert
	require.NoError(t, err)
	input := api.Calls[len(api.Calls)-1].Arguments.Get(1).(*dynamodb.TransactWriteItemsInput)
	require.Len(t, input.TransactItems, 2)

	update := input.TransactItems[0].Update
	require.NotNil(t, update)
	assert.Contains(t, aws.ToString(update.UpdateExpression), "SET")
	assert.Contains(t, aws.ToString(update.UpdateExpression), "REMOVE")
	assert.Contains(t, update.ExpressionAttributeNames, namePlaceholder(update.ExpressionAttributeNames, "version"))
	assertHasNumber(t, update.ExpressionAttributeValues, "7")

	put := input.TransactItems[1].Put
	require.NotNil(t, put)
	assert.Contains(t, aws.ToString(put.ConditionExpression), "attribute_not_exists")
	assert.Equal(t, "NODE#n2", put.Item["PK"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "1", put.Item["version"].(*types.AttributeValueMemberN).Value)
}

func TestNodeStore_ReadButUnwrittenDocumentsAreChecked(t *testing.T) {
	// Arrange
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: storedItem(t, testNode("n1"), 2)}, nil)
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(&dynamodb.TransactWriteItemsOutput{}, nil)
	store := newTestStore(api)

	// Act
	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx ports.Transaction) error {
		if _, err := tx.GetAll(ctx, []string{"n1", "n1"}); err != nil {
			return err
		}
		return tx.Set(testNode("n3"))
	})

	// Assert
	require.NoError(t, err)
	input := api.Calls[len(api.Calls)-1].Arguments.Get(1).(*dynamodb.TransactWriteItemsInput)
	require.Len(t, input.TransactItems, 2)
	check := input.TransactItems[1].ConditionCheck
	require.NotNil(t, check)
	assert.Equal(t, "NODE#n1", check.Key["PK"].(*types.AttributeValueMemberS).Value)
}

func TestNodeStore_CancelledTransactionIsRetried(t *testing.T) {
	// Arrange
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: storedItem(t, testNode("n1"), 2)}, nil)
	cancelled := &types.TransactionCanceledException{
		Message:             aws.String("Transaction cancelled"),
		CancellationReasons: []types.CancellationReason{{Code: aws.String("ConditionalCheckFailed")}},
	}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled).Once()
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()
	store := newTestStore(api)
	runs := 0

	// Act
	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx ports.Transaction) error {
		runs++
		if _, err := tx.Get(ctx, "n1"); err != nil {
			return err
		}
		return tx.Update("n1", entities.NodePatch{entities.PathTitle: entities.SetField("again")})
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	api.AssertNumberOfCalls(t, "TransactWriteItems", 2)
}

func TestNodeStore_PersistentConflictFailsTransaction(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: storedItem(t, testNode("n1"), 2)}, nil)
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: aws.String("None")}, {Code: aws.String("TransactionConflict")}},
	})
	store := newTestStore(api)

	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx ports.Transaction) error {
		if _, err := tx.Get(ctx, "n1"); err != nil {
			return err
		}
		return tx.Update("n1", entities.NodePatch{entities.PathDeleted: entities.SetField(true)})
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransactionFailure(err))
	api.AssertNumberOfCalls(t, "TransactWriteItems", 3)
}

func TestNodeStore_ReadAfterWriteIsRejected(t *testing.T) {
	api := &mockAPI{}
	store := newTestStore(api)

	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx ports.Transaction) error {
		if err := tx.Set(testNode("n1")); err != nil {
			return err
		}
		_, err := tx.Get(ctx, "n2")
		return err
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrReadAfterWrite))
	api.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
}

func TestNodeStore_UpdateOfMissingReadDocumentIsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)
	store := newTestStore(api)

	err := store.RunTransaction(context.Background(), func(ctx context.Context, tx ports.Transaction) error {
		if _, err := tx.Get(ctx, "gone"); err != nil {
			return err
		}
		return tx.Update("gone", entities.NodePatch{entities.PathTitle: entities.SetField("x")})
	})

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNodeStore_QueryPagesFilteredResults(t *testing.T) {
	// Arrange
	api := &mockAPI{}
	first := &dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{storedItem(t, testNode("a"), 1), storedItem(t, testNode("b"), 1)},
		LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "NODE#b"}},
	}
	second := &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{storedItem(t, testNode("c"), 1), storedItem(t, testNode("d"), 1)},
	}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey == nil && aws.ToString(in.IndexName) == "GSI1" && in.FilterExpression != nil
	})).Return(first, nil).Once()
	api.On("Query", mock.Anything, mock.Anything).Return(second, nil).Once()
	store := newTestStore(api)
	criteria := abstractions.Where("deleted", false).
		And("nodeType", abstractions.OpEqual, "activity").
		Page(1, 2)

	// Act
	nodes, err := store.Query(context.Background(), criteria)

	// Assert
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[0].ID)
	assert.Equal(t, "c", nodes[1].ID)
	api.AssertNumberOfCalls(t, "Query", 2)
}

func TestNodeStore_CountSumsPages(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.Select == types.SelectCount && in.ExclusiveStartKey == nil
	})).Return(&dynamodb.QueryOutput{
		Count:            3,
		LastEvaluatedKey: map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "NODE#c"}},
	}, nil).Once()
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Count: 2}, nil).Once()
	store := newTestStore(api)

	total, err := store.Count(context.Background(), abstractions.Where("deleted", false).Page(0, 1))

	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestBuildPatchUpdate_KeepsDottedPropertyNames(t *testing.T) {
	// Arrange
	patch := entities.NodePatch{}
	patch.Set(entities.PropertyPath("v1.2 notes"), valueobjects.TextValue("x"))

	// Act
	update, err := buildPatchUpdate(patch)
	require.NoError(t, err)
	names := map[string]string{}
	expr, err := expressionFor(update)
	require.NoError(t, err)
	for k, v := range expr.Names() {
		names[v] = k
	}

	// Assert
	assert.Contains(t, names, "properties")
	assert.Contains(t, names, "v1.2 notes")
	assert.Contains(t, names, "version")
}

func expressionFor(update expression.UpdateBuilder) (expression.Expression, error) {
	return expression.NewBuilder().WithUpdate(update).Build()
}

func namePlaceholder(names map[string]string, attribute string) string {
	for placeholder, name := range names {
		if name == attribute {
			return placeholder
		}
	}
	return ""
}

func assertHasNumber(t *testing.T, values map[string]types.AttributeValue, n string) {
	t.Helper()
	for _, v := range values {
		if num, ok := v.(*types.AttributeValueMemberN); ok && strings.TrimSpace(num.Value) == n {
			return
		}
	}
	t.Errorf("expected a numeric expression value %s", n)
}
