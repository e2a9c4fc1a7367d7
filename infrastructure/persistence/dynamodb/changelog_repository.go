package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/infrastructure/persistence/abstractions"
	pkgerrors "ontology/pkg/errors"
)

const (
	changelogKeyPrefix  = "NODELOG#"
	changelogSortPrefix = "LOG#"
)

// ChangelogRepository implements ports.ChangelogRepository. Entries of a node share
// a partition and sort by modification time.
type ChangelogRepository struct {
	client    API
	tableName string
	retention time.Duration
}

// ChangelogRecord represents how changelog entries are stored in DynamoDB
type ChangelogRecord struct {
	PK               string                 `dynamodbav:"PK"` // NODELOG#<node_id>
	SK               string                 `dynamodbav:"SK"` // LOG#<modified_at>#<entry_id>
	EntityType       string                 `dynamodbav:"EntityType"`
	EntryID          string                 `dynamodbav:"EntryID"`
	NodeID           string                 `dynamodbav:"NodeID"`
	ModifiedBy       string                 `dynamodbav:"ModifiedBy"`
	ModifiedProperty string                 `dynamodbav:"ModifiedProperty,omitempty"`
	PreviousValue    interface{}            `dynamodbav:"PreviousValue"`
	NewValue         interface{}            `dynamodbav:"NewValue"`
	ModifiedAt       string                 `dynamodbav:"ModifiedAt"`
	ChangeType       string                 `dynamodbav:"ChangeType"`
	FullNode         map[string]interface{} `dynamodbav:"FullNode,omitempty"`
	Reasoning        string                 `dynamodbav:"Reasoning"`
	ChangeDetails    map[string]interface{} `dynamodbav:"ChangeDetails,omitempty"`

	// TTL for automatic cleanup, set only when a retention is configured
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// NewChangelogRepository creates a new DynamoDB changelog repository. A zero
// retention keeps entries forever.
func NewChangelogRepository(client API, tableName string, retention time.Duration) *ChangelogRepository {
	return &ChangelogRepository{
		client:    client,
		tableName: tableName,
		retention: retention,
	}
}

var _ ports.ChangelogRepository = (*ChangelogRepository)(nil)

// Save implements ports.ChangelogRepository
func (r *ChangelogRepository) Save(ctx context.Context, entry *entities.ChangeLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	record, err := r.entryToRecord(entry)
	if err != nil {
		return fmt.Errorf("failed to convert changelog entry to record: %w", err)
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal changelog record: %w", err)
	}
	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save changelog entry", err)
	}
	return nil
}

// ListByNode implements ports.ChangelogRepository
func (r *ChangelogRepository) ListByNode(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(changelogKeyPrefix + nodeID)).
		And(expression.Key("SK").BeginsWith(changelogSortPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false), // newest first
	}

	want := 0
	if limit > 0 {
		want = offset + limit
	}
	entries := make([]*entities.ChangeLogEntry, 0)
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query changelog", err)
		}
		for _, item := range page.Items {
			var record ChangelogRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changelog record: %w", err)
			}
			entry, err := recordToEntry(record)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		if want > 0 && len(entries) >= want {
			break
		}
	}
	start, end := abstractions.Window(len(entries), offset, limit)
	return entries[start:end], nil
}

func (r *ChangelogRepository) entryToRecord(entry *entities.ChangeLogEntry) (*ChangelogRecord, error) {
	previous, err := plainValue(entry.PreviousValue)
	if err != nil {
		return nil, fmt.Errorf("previous value: %w", err)
	}
	next, err := plainValue(entry.NewValue)
	if err != nil {
		return nil, fmt.Errorf("new value: %w", err)
	}
	record := &ChangelogRecord{
		PK:               changelogKeyPrefix + entry.NodeID,
		SK:               fmt.Sprintf("%s%s#%s", changelogSortPrefix, entry.ModifiedAt.UTC().Format(time.RFC3339Nano), entry.ID),
		EntityType:       "CHANGELOG",
		EntryID:          entry.ID,
		NodeID:           entry.NodeID,
		ModifiedBy:       entry.ModifiedBy,
		ModifiedProperty: entry.ModifiedProperty,
		PreviousValue:    previous,
		NewValue:         next,
		ModifiedAt:       entry.ModifiedAt.UTC().Format(time.RFC3339Nano),
		ChangeType:       string(entry.ChangeType),
		Reasoning:        entry.Reasoning,
		ChangeDetails:    entry.ChangeDetails,
	}
	if entry.FullNode != nil {
		full, err := plainValue(entry.FullNode)
		if err != nil {
			return nil, fmt.Errorf("full node: %w", err)
		}
		record.FullNode, _ = full.(map[string]interface{})
	}
	if r.retention > 0 {
		record.TTL = entry.ModifiedAt.Add(r.retention).Unix()
	}
	return record, nil
}

func recordToEntry(record ChangelogRecord) (*entities.ChangeLogEntry, error) {
	modifiedAt, err := time.Parse(time.RFC3339Nano, record.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse changelog timestamp: %w", err)
	}
	entry := &entities.ChangeLogEntry{
		ID:               record.EntryID,
		NodeID:           record.NodeID,
		ModifiedBy:       record.ModifiedBy,
		ModifiedProperty: record.ModifiedProperty,
		PreviousValue:    record.PreviousValue,
		NewValue:         record.NewValue,
		ModifiedAt:       modifiedAt,
		ChangeType:       entities.ChangeType(record.ChangeType),
		Reasoning:        record.Reasoning,
		ChangeDetails:    record.ChangeDetails,
	}
	if len(record.FullNode) > 0 {
		data, err := json.Marshal(record.FullNode)
		if err != nil {
			return nil, fmt.Errorf("failed to encode full node: %w", err)
		}
		var node entities.Node
		if err := json.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to decode full node: %w", err)
		}
		entry.FullNode = &node
	}
	return entry, nil
}

// plainValue reduces a value to maps, slices and scalars through its JSON form so
// that it can be stored as a document attribute.
func plainValue(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
