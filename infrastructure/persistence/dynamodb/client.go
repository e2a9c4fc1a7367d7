package dynamodb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "ontology/pkg/errors"
)

// API is the subset of the DynamoDB client the stores use.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Documents use the json field names of the domain types as attribute names.
func jsonTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }

func jsonTagsDecode(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

func marshalMap(v interface{}) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(v, jsonTags)
}

func unmarshalMap(m map[string]types.AttributeValue, out interface{}) error {
	return attributevalue.UnmarshalMapWithOptions(m, out, jsonTagsDecode)
}

// jsonTagged makes values passed to the expression builder encode with json tags.
type jsonTagged struct {
	v interface{}
}

func (j jsonTagged) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return attributevalue.MarshalWithOptions(j.v, jsonTags)
}

// classifyWriteError maps a failed TransactWriteItems call to the store error model.
// Lost condition checks and conflicting transactions become retryable conflicts.
func classifyWriteError(err error) error {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed", "TransactionConflict":
				return pkgerrors.ErrConcurrentModification.WithCause(err)
			case "ValidationError":
				return pkgerrors.NewDatabaseError("transact write", err).WithCode("VALIDATION")
			}
		}
		return pkgerrors.ErrConcurrentModification.WithCause(err)
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return pkgerrors.ErrConcurrentModification.WithCause(err)
	}
	var conflict *types.TransactionConflictException
	if errors.As(err, &conflict) {
		return pkgerrors.ErrConcurrentModification.WithCause(err)
	}
	return err
}
