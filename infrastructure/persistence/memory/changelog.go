package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/infrastructure/persistence/abstractions"
)

// ChangelogRepository keeps changelog entries in memory, grouped by node.
type ChangelogRepository struct {
	mu      sync.RWMutex
	entries map[string][]*entities.ChangeLogEntry

	// failWith, when set, is returned by Save.
	failWith error
}

// NewChangelogRepository creates an empty repository
func NewChangelogRepository() *ChangelogRepository {
	return &ChangelogRepository{entries: make(map[string][]*entities.ChangeLogEntry)}
}

var _ ports.ChangelogRepository = (*ChangelogRepository)(nil)

// FailWith makes every following Save return err; nil restores normal behaviour.
func (r *ChangelogRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Save implements ports.ChangelogRepository
func (r *ChangelogRepository) Save(ctx context.Context, entry *entities.ChangeLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	stored := *entry
	if entry.FullNode != nil {
		stored.FullNode = entry.FullNode.Clone()
	}
	r.entries[entry.NodeID] = append(r.entries[entry.NodeID], &stored)
	return nil
}

// ListByNode implements ports.ChangelogRepository
func (r *ChangelogRepository) ListByNode(ctx context.Context, nodeID string, limit, offset int) ([]*entities.ChangeLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	stored := r.entries[nodeID]
	list := make([]*entities.ChangeLogEntry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		list = append(list, stored[i])
	}
	r.mu.RUnlock()

	// Ties on ModifiedAt keep the later insertion first.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ModifiedAt.After(list[j].ModifiedAt)
	})

	start, end := abstractions.Window(len(list), offset, limit)
	out := make([]*entities.ChangeLogEntry, 0, end-start)
	for _, e := range list[start:end] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// All returns every entry of a node in insertion order.
func (r *ChangelogRepository) All(nodeID string) []*entities.ChangeLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*entities.ChangeLogEntry(nil), r.entries[nodeID]...)
}
