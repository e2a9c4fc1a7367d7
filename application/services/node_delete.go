package services

import (
	"context"

	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/events"
	pkgerrors "ontology/pkg/errors"
)

// ImpactSummary counts the back-references a delete removed, per relationship kind.
type ImpactSummary struct {
	AffectedNodeIDs []string `json:"affectedNodeIds"`
	Generalizations int      `json:"generalizations"`
	Specializations int      `json:"specializations"`
	Parts           int      `json:"parts"`
	IsPartOf        int      `json:"isPartOf"`
}

// DeleteResult is the outcome of DeleteNode.
type DeleteResult struct {
	Node   *entities.Node `json:"node"`
	Impact ImpactSummary  `json:"impactSummary"`
}

// DeleteNode soft-deletes a node and removes it from the relationship sets of every
// neighbour. Neighbours themselves are never deleted.
func (s *NodeService) DeleteNode(ctx context.Context, id, user, reasoning string) (*DeleteResult, error) {
	var res *DeleteResult
	err := s.observe(ctx, "DeleteNode", func(ctx context.Context) error {
		var err error
		res, err = s.deleteNode(ctx, id, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("node deleted",
		zap.String("nodeID", id),
		zap.Strings("affected", res.Impact.AffectedNodeIDs),
	)
	s.recordChange(ctx, entities.ChangeLogEntry{
		NodeID:        id,
		ModifiedBy:    user,
		PreviousValue: map[string]interface{}{"deleted": false},
		NewValue:      map[string]interface{}{"deleted": true},
		ModifiedAt:    res.Node.UpdatedAt,
		ChangeType:    entities.ChangeDeleteNode,
		Reasoning:     reasoning,
		ChangeDetails: map[string]interface{}{
			"nodeTitle":       res.Node.Title,
			"affectedNodeIds": res.Impact.AffectedNodeIDs,
		},
	}, res.Node)
	s.publish(ctx, events.NewNodeDeleted(id, user, res.Impact.AffectedNodeIDs, res.Node.UpdatedAt))
	s.invalidate(ctx, append([]string{id}, res.Impact.AffectedNodeIDs...)...)
	return res, nil
}

func (s *NodeService) deleteNode(ctx context.Context, id, user string) (*DeleteResult, error) {
	now := s.now().UTC()
	var res *DeleteResult
	err := s.transact(ctx, "DeleteNode", func(ctx context.Context, tx ports.Transaction) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return nodeNotFound(id)
		}
		if current.Deleted {
			return pkgerrors.NewInvalidStateError("Node is already deleted")
		}

		refs := relationSetsOf(current.Relationships())
		neighbours, err := tx.GetAll(ctx, refs.ids())
		if err != nil {
			return err
		}

		node := current.Clone()
		node.Deleted = true
		node.UpdatedAt = now
		node.Contributors = entities.AddContributor(node.Contributors, user)

		patch := entities.NodePatch{}
		patch.Set(entities.PathDeleted, true)
		patch.Set(entities.PathUpdatedAt, now)
		patch.Set(entities.PathContributors, node.Contributors)
		if err := tx.Update(id, patch); err != nil {
			return err
		}

		edits := newNeighbourEdits(neighbours)
		for _, r := range allRelations {
			for _, neighbourID := range refs[r] {
				edits.unlink(neighbourID, r, id)
			}
		}
		if err := edits.flush(tx, now); err != nil {
			return err
		}

		res = &DeleteResult{
			Node: node,
			Impact: ImpactSummary{
				AffectedNodeIDs: edits.touched(),
				Generalizations: edits.counts[relGeneralizations],
				Specializations: edits.counts[relSpecializations],
				Parts:           edits.counts[relParts],
				IsPartOf:        edits.counts[relIsPartOf],
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
