package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/infrastructure/persistence/abstractions"
	"ontology/infrastructure/persistence/retry"
	pkgerrors "ontology/pkg/errors"
)

func fastRetry(attempts int) retry.Config {
	return retry.Config{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
}

func node(id string, nodeType valueobjects.NodeType) *entities.Node {
	n := &entities.Node{ID: id, Title: "node " + id, NodeType: nodeType}
	n.EnsureDefaults()
	return n
}

func TestStore_TransactionCommitsAllWrites(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	store.Put(node("a", valueobjects.NodeTypeActivity))

	// Act
	err := store.RunTransaction(ctx, func(ctx context.Context, tx ports.Transaction) error {
		a, err := tx.Get(ctx, "a")
		if err != nil {
			return err
		}
		require.NotNil(t, a)
		if err := tx.Set(node("b", valueobjects.NodeTypeActor)); err != nil {
			return err
		}
		return tx.Update("a", entities.NodePatch{entities.PathTitle: entities.SetField("renamed")})
	})

	// Assert
	require.NoError(t, err)
	a, _ := store.Get(ctx, "a")
	b, _ := store.Get(ctx, "b")
	assert.Equal(t, "renamed", a.Title)
	require.NotNil(t, b)
}

func TestStore_ReadAfterWriteIsRejected(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop())

	err := store.RunTransaction(ctx, func(ctx context.Context, tx ports.Transaction) error {
		if err := tx.Set(node("a", valueobjects.NodeTypeActivity)); err != nil {
			return err
		}
		_, err := tx.Get(ctx, "a")
		return err
	})

	assert.ErrorIs(t, err, pkgerrors.ErrReadAfterWrite)
	missing, _ := store.Get(ctx, "a")
	assert.Nil(t, missing)
}

func TestStore_ConflictIsRetried(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var store *Store
	store = NewStore(zap.NewNop(),
		WithRetryConfig(fastRetry(3)),
		WithBeforeCommit(func(attempt int) {
			if attempt == 1 {
				n, _ := store.Get(context.Background(), "a")
				n.Title = "concurrent"
				store.Put(n)
			}
		}),
	)
	store.Put(node("a", valueobjects.NodeTypeActivity))
	runs := 0

	// Act
	err := store.RunTransaction(ctx, func(ctx context.Context, tx ports.Transaction) error {
		runs++
		a, err := tx.Get(ctx, "a")
		if err != nil {
			return err
		}
		return tx.Update("a", entities.NodePatch{entities.PathTitle: entities.SetField(a.Title + "+1")})
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	a, _ := store.Get(ctx, "a")
	assert.Equal(t, "concurrent+1", a.Title)
}

func TestStore_ExhaustedRetriesReportTransactionFailure(t *testing.T) {
	ctx := context.Background()
	var store *Store
	store = NewStore(zap.NewNop(),
		WithRetryConfig(fastRetry(2)),
		WithBeforeCommit(func(int) {
			n, _ := store.Get(context.Background(), "a")
			store.Put(n)
		}),
	)
	store.Put(node("a", valueobjects.NodeTypeActivity))

	err := store.RunTransaction(ctx, func(ctx context.Context, tx ports.Transaction) error {
		if _, err := tx.Get(ctx, "a"); err != nil {
			return err
		}
		return tx.Update("a", entities.NodePatch{entities.PathDeleted: entities.SetField(true)})
	})

	assert.True(t, pkgerrors.IsTransactionFailure(err))
	a, _ := store.Get(ctx, "a")
	assert.False(t, a.Deleted)
}

func TestStore_SetOfUnreadExistingDocumentConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop(), WithRetryConfig(fastRetry(1)))
	store.Put(node("a", valueobjects.NodeTypeActivity))

	err := store.RunTransaction(ctx, func(ctx context.Context, tx ports.Transaction) error {
		return tx.Set(node("a", valueobjects.NodeTypeActor))
	})

	assert.True(t, pkgerrors.IsTransactionFailure(err))
}

func TestStore_QueryFiltersSortsAndPages(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	for i := 9; i >= 0; i-- {
		store.Put(node(fmt.Sprintf("n%02d", i), valueobjects.NodeTypeActivity))
	}
	deleted := node("n99", valueobjects.NodeTypeActivity)
	deleted.Deleted = true
	store.Put(deleted)
	store.Put(node("x01", valueobjects.NodeTypeActor))

	criteria := abstractions.Where("deleted", false).
		And("nodeType", abstractions.OpEqual, "activity").
		OrderBy("id", abstractions.SortAscending).
		Page(2, 3)

	// Act
	page, err := store.Query(ctx, criteria)
	require.NoError(t, err)
	total, err := store.Count(ctx, criteria)
	require.NoError(t, err)

	// Assert
	require.Len(t, page, 3)
	assert.Equal(t, "n02", page[0].ID)
	assert.Equal(t, "n04", page[2].ID)
	assert.Equal(t, 10, total)
}

func TestStore_GetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(zap.NewNop())
	store.Put(node("a", valueobjects.NodeTypeActivity))

	first, _ := store.Get(ctx, "a")
	first.Title = "mutated"
	second, _ := store.Get(ctx, "a")

	assert.Equal(t, "node a", second.Title)
}
