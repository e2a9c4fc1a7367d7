package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"ontology/domain/core/entities"
	pkgerrors "ontology/pkg/errors"
)

// maxTransactItems is the TransactWriteItems limit.
const maxTransactItems = 100

type readRecord struct {
	version int64
	exists  bool
}

// pendingWrite is the buffered state of one document: either a full node to put
// or an accumulated patch to apply.
type pendingWrite struct {
	node  *entities.Node
	patch entities.NodePatch
}

type transaction struct {
	store *NodeStore

	mu     sync.Mutex
	reads  map[string]readRecord
	writes map[string]*pendingWrite
	order  []string
}

func newTransaction(store *NodeStore) *transaction {
	return &transaction{
		store:  store,
		reads:  make(map[string]readRecord),
		writes: make(map[string]*pendingWrite),
	}
}

func (tx *transaction) Get(ctx context.Context, id string) (*entities.Node, error) {
	tx.mu.Lock()
	written := len(tx.order) > 0
	tx.mu.Unlock()
	if written {
		return nil, pkgerrors.ErrReadAfterWrite.WithDetail("id", id)
	}

	node, version, err := tx.store.load(ctx, id)
	if err != nil {
		return nil, err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.reads[id] = readRecord{version: version, exists: node != nil}
	if node == nil {
		return nil, nil
	}
	return node.Clone(), nil
}

func (tx *transaction) GetAll(ctx context.Context, ids []string) (map[string]*entities.Node, error) {
	var mu sync.Mutex
	out := make(map[string]*entities.Node, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tx.store.fanOut)
	for _, id := range uniqueIDs(ids) {
		id := id
		g.Go(func() error {
			n, err := tx.Get(gctx, id)
			if err != nil {
				return err
			}
			if n != nil {
				mu.Lock()
				out[id] = n
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *transaction) Set(node *entities.Node) error {
	if node == nil || node.ID == "" {
		return fmt.Errorf("set: node must have an id")
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	w := tx.pending(node.ID)
	w.node = node.Clone()
	w.patch = nil
	return nil
}

func (tx *transaction) Update(id string, patch entities.NodePatch) error {
	if id == "" {
		return fmt.Errorf("update: empty id")
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	w := tx.pending(id)
	if w.node != nil {
		if err := w.node.ApplyPatch(patch); err != nil {
			return pkgerrors.NewDatabaseError("update", err)
		}
		return nil
	}
	if w.patch == nil {
		w.patch = make(entities.NodePatch, len(patch))
	}
	w.patch.Merge(patch)
	return nil
}

func (tx *transaction) pending(id string) *pendingWrite {
	w, ok := tx.writes[id]
	if !ok {
		w = &pendingWrite{}
		tx.writes[id] = w
		tx.order = append(tx.order, id)
	}
	return w
}

// transactItems builds the write set. Every read document is guarded by the version
// it had when read, so a concurrent commit cancels the whole transaction.
func (tx *transaction) transactItems() ([]types.TransactWriteItem, error) {
	table := aws.String(tx.store.tableName)
	items := make([]types.TransactWriteItem, 0, len(tx.order)+len(tx.reads))

	for _, id := range tx.order {
		w := tx.writes[id]
		read, wasRead := tx.reads[id]
		key := itemKey(id)

		if w.node != nil {
			version := read.version + 1
			item, err := marshalMap(toNodeItem(w.node, version))
			if err != nil {
				return nil, fmt.Errorf("marshal node %s: %w", id, err)
			}
			cond := expression.Name("PK").AttributeNotExists()
			if wasRead && read.exists {
				cond = expression.Name(versionAttribute).Equal(expression.Value(read.version))
			}
			expr, err := expression.NewBuilder().WithCondition(cond).Build()
			if err != nil {
				return nil, fmt.Errorf("build put condition for %s: %w", id, err)
			}
			items = append(items, types.TransactWriteItem{Put: &types.Put{
				TableName:                 table,
				Item:                      item,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}})
			continue
		}

		if wasRead && !read.exists {
			return nil, pkgerrors.NewNotFoundError("Node").WithDetails(map[string]interface{}{"id": id})
		}
		if w.patch.IsEmpty() {
			if wasRead {
				continue
			}
			return nil, fmt.Errorf("update %s: empty patch", id)
		}
		update, err := buildPatchUpdate(w.patch)
		if err != nil {
			return nil, err
		}
		cond := expression.Name("PK").AttributeExists()
		if wasRead {
			cond = expression.Name(versionAttribute).Equal(expression.Value(read.version))
		}
		expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build update for %s: %w", id, err)
		}
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:                 table,
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}})
	}

	checks, err := tx.conditionChecks(table)
	if err != nil {
		return nil, err
	}
	items = append(items, checks...)

	if len(items) > maxTransactItems {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf(
			"transaction touches %d documents, the limit is %d", len(items), maxTransactItems))
	}
	return items, nil
}

// conditionChecks guards documents that were read but not written.
func (tx *transaction) conditionChecks(table *string) ([]types.TransactWriteItem, error) {
	ids := make([]string, 0, len(tx.reads))
	for id := range tx.reads {
		if w, written := tx.writes[id]; written && (w.node != nil || !w.patch.IsEmpty()) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]types.TransactWriteItem, 0, len(ids))
	for _, id := range ids {
		read := tx.reads[id]
		cond := expression.Name("PK").AttributeNotExists()
		if read.exists {
			cond = expression.Name(versionAttribute).Equal(expression.Value(read.version))
		}
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return nil, fmt.Errorf("build condition check for %s: %w", id, err)
		}
		items = append(items, types.TransactWriteItem{ConditionCheck: &types.ConditionCheck{
			TableName:                 table,
			Key:                       itemKey(id),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}})
	}
	return items, nil
}

func (tx *transaction) commit(ctx context.Context) error {
	if len(tx.order) == 0 {
		return nil
	}
	items, err := tx.transactItems()
	if err != nil {
		return err
	}
	writes := 0
	for _, item := range items {
		if item.ConditionCheck == nil {
			writes++
		}
	}
	if writes == 0 {
		return nil
	}
	_, err = tx.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return classifyWriteError(err)
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
