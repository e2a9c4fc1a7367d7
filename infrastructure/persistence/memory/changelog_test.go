package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ontology/domain/core/entities"
)

func TestChangelogRepository_ListsNewestFirstWithPaging(t *testing.T) {
	// Arrange
	repo := NewChangelogRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, change := range []entities.ChangeType{entities.ChangeAddNode, entities.ChangeAddProperty, entities.ChangeModifyElements} {
		require.NoError(t, repo.Save(ctx, &entities.ChangeLogEntry{
			NodeID:     "n1",
			ModifiedAt: base.Add(time.Duration(i) * time.Hour),
			ChangeType: change,
		}))
	}
	require.NoError(t, repo.Save(ctx, &entities.ChangeLogEntry{NodeID: "other", ModifiedAt: base}))

	// Act
	all, err := repo.ListByNode(ctx, "n1", 0, 0)
	require.NoError(t, err)
	page, err := repo.ListByNode(ctx, "n1", 1, 1)
	require.NoError(t, err)

	// Assert
	require.Len(t, all, 3)
	assert.Equal(t, entities.ChangeModifyElements, all[0].ChangeType)
	assert.Equal(t, entities.ChangeAddNode, all[2].ChangeType)
	assert.NotEmpty(t, all[0].ID)
	require.Len(t, page, 1)
	assert.Equal(t, entities.ChangeAddProperty, page[0].ChangeType)
}

func TestChangelogRepository_SameInstantKeepsLatestFirst(t *testing.T) {
	repo := NewChangelogRepository()
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &entities.ChangeLogEntry{NodeID: "n1", ModifiedAt: at, ChangeType: entities.ChangeAddNode}))
	require.NoError(t, repo.Save(ctx, &entities.ChangeLogEntry{NodeID: "n1", ModifiedAt: at, ChangeType: entities.ChangeDeleteNode}))

	list, err := repo.ListByNode(ctx, "n1", 10, 0)

	require.NoError(t, err)
	assert.Equal(t, entities.ChangeDeleteNode, list[0].ChangeType)
	assert.Equal(t, entities.ChangeAddNode, list[1].ChangeType)
}

func TestChangelogRepository_FailWith(t *testing.T) {
	repo := NewChangelogRepository()
	repo.FailWith(errors.New("down"))

	err := repo.Save(context.Background(), &entities.ChangeLogEntry{NodeID: "n1"})

	assert.EqualError(t, err, "down")
	assert.Empty(t, repo.All("n1"))
}
