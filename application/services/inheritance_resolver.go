package services

import (
	"context"
	"fmt"

	"ontology/application/ports"
	"ontology/domain/core/inheritance"
)

// StoreInheritanceResolver reads parent data straight from the document store.
type StoreInheritanceResolver struct {
	store ports.DocumentStore
}

// NewStoreInheritanceResolver creates a resolver backed by store
func NewStoreInheritanceResolver(store ports.DocumentStore) *StoreInheritanceResolver {
	return &StoreInheritanceResolver{store: store}
}

// ParentNodeData returns the inheritable state of parentID, or nil when the parent is
// missing or deleted.
func (r *StoreInheritanceResolver) ParentNodeData(ctx context.Context, parentID string) (*inheritance.ParentData, error) {
	if parentID == "" {
		return nil, nil
	}
	parent, err := r.store.Get(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("load parent %s: %w", parentID, err)
	}
	if parent == nil || parent.Deleted {
		return nil, nil
	}
	return inheritance.FromNode(parent), nil
}
