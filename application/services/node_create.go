package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/inheritance"
	"ontology/domain/core/valueobjects"
	"ontology/domain/events"
	pkgerrors "ontology/pkg/errors"
)

// NodeInput is the caller-supplied content of a new node.
type NodeInput struct {
	Title           string
	NodeType        valueobjects.NodeType
	Root            string
	Properties      map[string]valueobjects.PropertyValue
	PropertyType    map[string]string
	Inheritance     map[string]valueobjects.InheritanceType
	TextValue       map[string]string
	Generalizations valueobjects.Collections
	Specializations valueobjects.Collections
}

// CreateNodeRequest asks for a new node.
type CreateNodeRequest struct {
	Node      NodeInput
	Reasoning string
}

// CreateNode validates the request, merges the properties inherited from the first
// generalization and writes the node together with the back-references on every
// neighbour.
func (s *NodeService) CreateNode(ctx context.Context, req CreateNodeRequest, user string) (*entities.Node, error) {
	var created *entities.Node
	var touched []string
	err := s.observe(ctx, "CreateNode", func(ctx context.Context) error {
		var err error
		created, touched, err = s.createNode(ctx, req, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("node created",
		zap.String("nodeID", created.ID),
		zap.String("nodeType", string(created.NodeType)),
		zap.Int("neighbours", len(touched)),
	)
	s.recordChange(ctx, entities.ChangeLogEntry{
		NodeID:     created.ID,
		ModifiedBy: user,
		NewValue: map[string]interface{}{
			"id":       created.ID,
			"title":    created.Title,
			"nodeType": string(created.NodeType),
		},
		ModifiedAt: created.CreatedAt,
		ChangeType: entities.ChangeAddNode,
		Reasoning:  req.Reasoning,
		ChangeDetails: map[string]interface{}{
			"nodeTitle": created.Title,
			"nodeType":  string(created.NodeType),
		},
	}, created)
	s.publish(ctx, events.NewNodeCreated(created.ID, user, created.Title, string(created.NodeType),
		created.FirstParentID(), touched, created.CreatedAt))
	s.invalidate(ctx, append([]string{created.ID}, touched...)...)
	return created, nil
}

func (s *NodeService) createNode(ctx context.Context, req CreateNodeRequest, user string) (*entities.Node, []string, error) {
	in := req.Node
	if err := s.validateTitle(in.Title); err != nil {
		return nil, nil, err
	}
	if err := validateNodeType(in.NodeType); err != nil {
		return nil, nil, err
	}

	parts, _, err := relationshipProperty(in.Properties, entities.PropertyParts)
	if err != nil {
		return nil, nil, err
	}
	isPartOf, _, err := relationshipProperty(in.Properties, entities.PropertyIsPartOf)
	if err != nil {
		return nil, nil, err
	}
	if err := s.validateRelationships("", entities.RelationshipSet{
		Generalizations: in.Generalizations,
		Specializations: in.Specializations,
		Parts:           parts,
		IsPartOf:        isPartOf,
	}); err != nil {
		return nil, nil, err
	}
	for name := range in.Properties {
		if err := s.validatePropertyName(name); err != nil {
			return nil, nil, err
		}
	}

	generalizations := in.Generalizations.Flatten()
	specializations := s.normalizer.Normalize(in.Specializations)
	parts = s.normalizer.Normalize(parts)
	isPartOf = s.normalizer.Normalize(isPartOf)

	child := inheritance.ChildInput{
		Properties:   make(map[string]valueobjects.PropertyValue, len(in.Properties)+2),
		PropertyType: make(map[string]string, len(in.PropertyType)),
		Inheritance:  make(map[string]valueobjects.InheritanceType, len(in.Inheritance)),
	}
	for k, v := range in.Properties {
		child.Properties[k] = v.Clone()
	}
	child.Properties[entities.PropertyParts] = valueobjects.CollectionsValue(parts)
	child.Properties[entities.PropertyIsPartOf] = valueobjects.CollectionsValue(isPartOf)
	for k, t := range in.PropertyType {
		child.PropertyType[k] = t
	}
	for k, t := range in.Inheritance {
		child.Inheritance[k] = t
	}

	id := s.store.NewID()
	now := s.now().UTC()
	requested := relationSets{
		relGeneralizations: generalizations.IDs(),
		relSpecializations: specializations.IDs(),
		relParts:           parts.IDs(),
		relIsPartOf:        isPartOf.IDs(),
	}

	var node *entities.Node
	var touched []string
	err = s.transact(ctx, "CreateNode", func(ctx context.Context, tx ports.Transaction) error {
		refs := requested.clone()
		neighbours, err := tx.GetAll(ctx, refs.ids())
		if err != nil {
			return err
		}
		if err := s.missingTargets(refs, neighbours); err != nil {
			return err
		}

		var parent *inheritance.ParentData
		if parentID := generalizations.FirstID(); parentID != "" {
			parent, err = s.resolver.ParentNodeData(ctx, parentID)
			if err != nil {
				return err
			}
			if parent == nil && s.config.RequireExistingTargets {
				return pkgerrors.NewValidationError(fmt.Sprintf("Parent node %s not found", parentID))
			}
		}
		merged := inheritance.Merge(parent, child)

		node = &entities.Node{
			ID:                     id,
			Title:                  in.Title,
			NodeType:               in.NodeType,
			Root:                   in.Root,
			Properties:             merged.Properties,
			Inheritance:            merged.Inheritance,
			PropertyType:           merged.PropertyType,
			TextValue:              copyTextValue(in.TextValue),
			Generalizations:        generalizations,
			Specializations:        specializations,
			Contributors:           []string{user},
			ContributorsByProperty: map[string][]string{},
			CreatedBy:              user,
			PropertyOf:             map[string]valueobjects.Collections{},
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		node.EnsureDefaults()

		// Parts inherited from the parent need their back-references too.
		refs[relParts] = node.Parts().IDs()
		if err := readMore(ctx, tx, neighbours, refs[relParts]); err != nil {
			return err
		}

		if err := tx.Set(node); err != nil {
			return err
		}

		// Neighbours only gain a back-reference. A specialization whose first parent
		// becomes this node keeps its properties until it is next re-parented.
		edits := newNeighbourEdits(neighbours)
		for _, r := range allRelations {
			for _, neighbourID := range refs[r] {
				edits.link(neighbourID, r, id, node.Title)
			}
		}
		touched = edits.touched()
		return edits.flush(tx, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return node, touched, nil
}

func copyTextValue(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
