// Package dynamodb stores node documents and changelog entries in a single
// DynamoDB table.
package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/infrastructure/persistence/abstractions"
	"ontology/infrastructure/persistence/retry"
	pkgerrors "ontology/pkg/errors"
)

// NodeStore implements ports.DocumentStore on DynamoDB with optimistic,
// version-conditioned transactions.
type NodeStore struct {
	client    API
	tableName string
	indexName string
	retry     retry.Config
	fanOut    int
	logger    *zap.Logger
	newID     func() string
}

// Option configures a NodeStore
type Option func(*NodeStore)

// WithRetryConfig sets the commit retry policy
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *NodeStore) { s.retry = cfg }
}

// WithReadFanOut bounds how many documents GetAll reads concurrently
func WithReadFanOut(n int) Option {
	return func(s *NodeStore) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(fn func() string) Option {
	return func(s *NodeStore) { s.newID = fn }
}

// NewNodeStore creates a new DynamoDB node store
func NewNodeStore(client API, tableName, indexName string, logger *zap.Logger, opts ...Option) *NodeStore {
	s := &NodeStore{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		retry:     retry.DefaultConfig(),
		fanOut:    8,
		logger:    logger,
		newID:     valueobjects.NewNodeID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.DocumentStore = (*NodeStore)(nil)

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: nodeKey(id)},
		"SK": &types.AttributeValueMemberS{Value: nodeSortKey},
	}
}

// NewID implements ports.DocumentStore
func (s *NodeStore) NewID() string {
	return s.newID()
}

// Get implements ports.DocumentStore
func (s *NodeStore) Get(ctx context.Context, id string) (*entities.Node, error) {
	node, _, err := s.load(ctx, id)
	return node, err
}

// load reads a node with its version; a missing node yields nil and version 0.
func (s *NodeStore) load(ctx context.Context, id string) (*entities.Node, int64, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("get node", err)
	}
	if len(result.Item) == 0 {
		return nil, 0, nil
	}
	var item nodeItem
	if err := unmarshalMap(result.Item, &item); err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("unmarshal node", err)
	}
	node, err := item.toNode()
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("decode node", err)
	}
	return node, item.Version, nil
}

// Query implements ports.DocumentStore. Filters run server side on the node index;
// offset and limit are applied to the filtered result.
func (s *NodeStore) Query(ctx context.Context, criteria abstractions.QueryCriteria) ([]*entities.Node, error) {
	if err := criteria.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	input, err := s.queryInput(criteria)
	if err != nil {
		return nil, err
	}

	byID, forward := idOrder(criteria.Sort)
	input.ScanIndexForward = aws.Bool(forward)

	// Results already arrive in id order, so reading can stop once the page is full.
	want := 0
	if byID && criteria.Limit > 0 {
		want = criteria.Offset + criteria.Limit
	}

	nodes := make([]*entities.Node, 0)
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query nodes", err)
		}
		for _, raw := range page.Items {
			var item nodeItem
			if err := unmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.NewDatabaseError("unmarshal node", err)
			}
			node, err := item.toNode()
			if err != nil {
				return nil, pkgerrors.NewDatabaseError("decode node", err)
			}
			nodes = append(nodes, node)
		}
		if want > 0 && len(nodes) >= want {
			break
		}
	}

	if !byID {
		abstractions.SortStrings(nodes, criteria.Sort,
			func(n *entities.Node, field string) string {
				v, _ := n.QueryField(field)
				return fmt.Sprint(v)
			},
			func(n *entities.Node) string { return n.ID },
		)
	}
	start, end := abstractions.Window(len(nodes), criteria.Offset, criteria.Limit)
	return nodes[start:end], nil
}

// Count implements ports.DocumentStore
func (s *NodeStore) Count(ctx context.Context, criteria abstractions.QueryCriteria) (int, error) {
	criteria = criteria.WithoutPaging()
	if err := criteria.Validate(); err != nil {
		return 0, pkgerrors.NewValidationError(err.Error())
	}
	input, err := s.queryInput(criteria)
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount

	total := 0
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, pkgerrors.NewDatabaseError("count nodes", err)
		}
		total += int(page.Count)
	}
	return total, nil
}

func (s *NodeStore) queryInput(criteria abstractions.QueryCriteria) (*dynamodb.QueryInput, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(nodesIndexPK)))
	if filter, ok := filterCondition(criteria.Filters); ok {
		builder = builder.WithFilter(filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build node query: %w", err)
	}
	return &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// filterCondition translates criteria filters. A missing attribute is unequal to
// everything, matching the in-memory store.
func filterCondition(filters []abstractions.Filter) (expression.ConditionBuilder, bool) {
	conds := make([]expression.ConditionBuilder, 0, len(filters))
	for _, f := range filters {
		name := expression.Name(f.Field)
		switch f.Operator {
		case abstractions.OpEqual:
			conds = append(conds, name.Equal(expression.Value(f.Value)))
		case abstractions.OpNotEqual:
			conds = append(conds, expression.Or(name.NotEqual(expression.Value(f.Value)), name.AttributeNotExists()))
		case abstractions.OpIn:
			values, _ := f.Value.([]interface{})
			if len(values) == 0 {
				// Nothing can match an empty set.
				conds = append(conds, name.AttributeExists().And(name.AttributeNotExists()))
				continue
			}
			operands := make([]expression.OperandBuilder, 0, len(values)-1)
			for _, v := range values[1:] {
				operands = append(operands, expression.Value(v))
			}
			conds = append(conds, name.In(expression.Value(values[0]), operands...))
		}
	}
	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.And(conds[0], conds[1], conds[2:]...), true
	}
}

// idOrder reports whether sorts ask for nothing but id order, which the index
// sort key already provides, and in which direction.
func idOrder(sorts []abstractions.SortOption) (byID bool, forward bool) {
	switch {
	case len(sorts) == 0:
		return true, true
	case len(sorts) == 1 && sorts[0].Field == "id":
		return true, sorts[0].Order != abstractions.SortDescending
	default:
		return false, true
	}
}

// RunTransaction implements ports.DocumentStore
func (s *NodeStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ports.Transaction) error) error {
	return retry.Do(ctx, s.retry, func(attempt int) error {
		tx := newTransaction(s)
		if err := fn(ctx, tx); err != nil {
			return err
		}
		err := tx.commit(ctx)
		if err != nil && pkgerrors.IsConcurrentModification(err) {
			s.logger.Debug("node transaction conflict",
				zap.Int("attempt", attempt),
				zap.Int("documents", len(tx.order)),
			)
		}
		return err
	})
}
