package memory

import (
	"context"
	"fmt"

	"ontology/domain/core/entities"
	pkgerrors "ontology/pkg/errors"
)

type write struct {
	id    string
	node  *entities.Node
	patch entities.NodePatch
}

type transaction struct {
	store  *Store
	reads  map[string]int64 // version seen; 0 when the document was missing
	writes []write
}

func (tx *transaction) Get(ctx context.Context, id string) (*entities.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tx.writes) > 0 {
		return nil, pkgerrors.ErrReadAfterWrite.WithDetail("id", id)
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	doc, ok := tx.store.docs[id]
	if !ok {
		tx.reads[id] = 0
		return nil, nil
	}
	tx.reads[id] = doc.Version
	return doc.node.Clone(), nil
}

func (tx *transaction) GetAll(ctx context.Context, ids []string) (map[string]*entities.Node, error) {
	out := make(map[string]*entities.Node, len(ids))
	for _, id := range ids {
		n, err := tx.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			out[id] = n
		}
	}
	return out, nil
}

func (tx *transaction) Set(node *entities.Node) error {
	if node == nil || node.ID == "" {
		return fmt.Errorf("set: node must have an id")
	}
	tx.writes = append(tx.writes, write{id: node.ID, node: node.Clone()})
	return nil
}

func (tx *transaction) Update(id string, patch entities.NodePatch) error {
	if id == "" {
		return fmt.Errorf("update: empty id")
	}
	cp := make(entities.NodePatch, len(patch))
	cp.Merge(patch)
	tx.writes = append(tx.writes, write{id: id, patch: cp})
	return nil
}

// commit validates every read version and every precondition, then applies all writes.
func (tx *transaction) commit() error {
	if len(tx.writes) == 0 {
		return nil
	}
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seen := range tx.reads {
		if s.docs[id].Version != seen {
			return pkgerrors.ErrConcurrentModification.WithDetail("id", id)
		}
	}

	staged := make(map[string]*entities.Node)
	order := make([]string, 0)
	for _, w := range tx.writes {
		current, isStaged := staged[w.id]
		if !isStaged {
			doc, exists := s.docs[w.id]
			_, wasRead := tx.reads[w.id]
			switch {
			case w.node != nil && exists && !wasRead:
				return pkgerrors.ErrConcurrentModification.WithDetail("id", w.id)
			case w.node == nil && !exists:
				return pkgerrors.NewNotFoundError("Node").WithDetails(map[string]interface{}{"id": w.id})
			}
			if exists {
				current = doc.node.Clone()
			}
			order = append(order, w.id)
		}

		if w.node != nil {
			current = w.node.Clone()
		} else {
			if current == nil {
				return pkgerrors.NewNotFoundError("Node").WithDetails(map[string]interface{}{"id": w.id})
			}
			if err := current.ApplyPatch(w.patch); err != nil {
				return pkgerrors.NewDatabaseError("update", err)
			}
		}
		staged[w.id] = current
	}

	for _, id := range order {
		s.putLocked(staged[id])
	}
	return nil
}
