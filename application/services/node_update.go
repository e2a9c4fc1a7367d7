package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/inheritance"
	"ontology/domain/core/valueobjects"
	"ontology/domain/events"
	pkgerrors "ontology/pkg/errors"
)

// NodeUpdate is a partial update of a node. Nil fields are left unchanged; Properties
// and PropertyType are merged key by key.
type NodeUpdate struct {
	Title           *string
	NodeType        *valueobjects.NodeType
	Root            *string
	Generalizations valueobjects.Collections
	Specializations valueobjects.Collections
	Properties      map[string]valueobjects.PropertyValue
	PropertyType    map[string]string
}

// IsEmpty reports whether the update changes nothing.
func (u NodeUpdate) IsEmpty() bool {
	return u.Title == nil && u.NodeType == nil && u.Root == nil &&
		u.Generalizations == nil && u.Specializations == nil &&
		len(u.Properties) == 0 && len(u.PropertyType) == 0
}

type updateOutcome struct {
	before        *entities.Node
	after         *entities.Node
	changed       []string
	touched       []string
	parentChanged bool
}

// UpdateNode applies upd to the node and keeps every neighbour's back-references in
// step with the new relationship sets. When the first generalization changes the
// inherited properties are recomputed from the new parent.
func (s *NodeService) UpdateNode(ctx context.Context, id string, upd NodeUpdate, user, reasoning string) (*entities.Node, error) {
	var out *updateOutcome
	err := s.observe(ctx, "UpdateNode", func(ctx context.Context) error {
		var err error
		out, err = s.updateNode(ctx, id, upd, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out.changed) == 0 {
		return out.after, nil
	}

	s.logger.Info("node updated",
		zap.String("nodeID", id),
		zap.Strings("changed", out.changed),
		zap.Bool("parentChanged", out.parentChanged),
	)
	s.recordChange(ctx, entities.ChangeLogEntry{
		NodeID:        id,
		ModifiedBy:    user,
		PreviousValue: fieldSnapshot(out.before, out.changed),
		NewValue:      fieldSnapshot(out.after, out.changed),
		ModifiedAt:    out.after.UpdatedAt,
		ChangeType:    entities.ChangeModifyElements,
		Reasoning:     reasoning,
		ChangeDetails: map[string]interface{}{
			"changedFields": out.changed,
			"parentChanged": out.parentChanged,
		},
	}, out.after)
	s.publish(ctx, events.NewNodeUpdated(id, user, out.changed, out.touched, out.parentChanged, out.after.UpdatedAt))
	s.invalidate(ctx, append([]string{id}, out.touched...)...)
	return out.after, nil
}

func (s *NodeService) updateNode(ctx context.Context, id string, upd NodeUpdate, user string) (*updateOutcome, error) {
	if upd.Title != nil {
		if err := s.validateTitle(*upd.Title); err != nil {
			return nil, err
		}
	}
	if upd.NodeType != nil {
		if err := validateNodeType(*upd.NodeType); err != nil {
			return nil, err
		}
	}
	for name := range upd.Properties {
		if err := s.validatePropertyName(name); err != nil {
			return nil, err
		}
	}
	parts, partsSupplied, err := relationshipProperty(upd.Properties, entities.PropertyParts)
	if err != nil {
		return nil, err
	}
	isPartOf, isPartOfSupplied, err := relationshipProperty(upd.Properties, entities.PropertyIsPartOf)
	if err != nil {
		return nil, err
	}

	// Duplicates are checked on the values as supplied; normalizing first would merge
	// repeated collections and hide them.
	patched := make(map[string]valueobjects.PropertyValue, len(upd.Properties))
	for k, v := range upd.Properties {
		patched[k] = v.Clone()
	}
	var normParts, normIsPartOf, generalizations, specializations valueobjects.Collections
	if partsSupplied {
		normParts = s.normalizer.Normalize(parts)
		patched[entities.PropertyParts] = valueobjects.CollectionsValue(normParts)
	}
	if isPartOfSupplied {
		normIsPartOf = s.normalizer.Normalize(isPartOf)
		patched[entities.PropertyIsPartOf] = valueobjects.CollectionsValue(normIsPartOf)
	}
	if upd.Generalizations != nil {
		generalizations = s.normalizer.Normalize(upd.Generalizations)
	}
	if upd.Specializations != nil {
		specializations = s.normalizer.Normalize(upd.Specializations)
	}

	now := s.now().UTC()
	var out *updateOutcome
	err = s.transact(ctx, "UpdateNode", func(ctx context.Context, tx ports.Transaction) error {
		current, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return nodeNotFound(id)
		}
		if current.Deleted {
			return pkgerrors.NewInvalidStateError("Cannot update deleted node")
		}

		supplied := current.Relationships()
		requested := current.Relationships()
		if generalizations != nil {
			supplied.Generalizations = upd.Generalizations
			requested.Generalizations = generalizations
		}
		if specializations != nil {
			supplied.Specializations = upd.Specializations
			requested.Specializations = specializations
		}
		if partsSupplied {
			supplied.Parts = parts
			requested.Parts = normParts
		}
		if isPartOfSupplied {
			supplied.IsPartOf = isPartOf
			requested.IsPartOf = normIsPartOf
		}
		if err := s.validateRelationships(id, supplied); err != nil {
			return err
		}

		before := relationSetsOf(current.Relationships())
		wanted := relationSetsOf(requested)
		all := make(relationSets, len(allRelations))
		for _, r := range allRelations {
			all[r] = append(append([]string(nil), before[r]...), wanted[r]...)
		}
		neighbours, err := tx.GetAll(ctx, all.ids())
		if err != nil {
			return err
		}
		if err := s.missingTargets(addedIDs(before, wanted), neighbours); err != nil {
			return err
		}

		node := current.Clone()
		changed := make(map[string]bool)
		if upd.Title != nil && *upd.Title != node.Title {
			node.Title = *upd.Title
			changed["title"] = true
		}
		if upd.NodeType != nil && *upd.NodeType != node.NodeType {
			node.NodeType = *upd.NodeType
			changed["nodeType"] = true
		}
		if upd.Root != nil && *upd.Root != node.Root {
			node.Root = *upd.Root
			changed["root"] = true
		}
		if generalizations != nil && !generalizations.Equal(node.Generalizations) {
			node.Generalizations = generalizations
			changed["generalizations"] = true
		}
		if specializations != nil && !specializations.Equal(node.Specializations) {
			node.Specializations = specializations
			changed["specializations"] = true
		}

		oldParent, newParent := current.FirstParentID(), node.FirstParentID()
		parentChanged := oldParent != newParent
		var propsChanged []string
		if parentChanged {
			propsChanged, err = s.remergeProperties(ctx, node, patched, upd.PropertyType)
		} else {
			propsChanged = patchProperties(node, patched, upd.PropertyType)
		}
		if err != nil {
			return err
		}
		for _, k := range propsChanged {
			changed["properties."+k] = true
			node.ContributorsByProperty[k] = entities.AddContributor(node.ContributorsByProperty[k], user)
		}
		if len(changed) == 0 {
			out = &updateOutcome{before: current, after: current, touched: []string{}}
			return nil
		}

		node.Contributors = entities.AddContributor(node.Contributors, user)
		node.UpdatedAt = now

		// A new parent can bring inherited parts that need back-references.
		after := relationSetsOf(node.Relationships())
		if err := readMore(ctx, tx, neighbours, after[relParts]); err != nil {
			return err
		}
		if err := tx.Set(node); err != nil {
			return err
		}

		edits := newNeighbourEdits(neighbours)
		for _, r := range allRelations {
			edits.diff(r, before[r], after[r], id, node.Title)
		}
		if err := edits.flush(tx, now); err != nil {
			return err
		}

		out = &updateOutcome{
			before:        current,
			after:         node,
			changed:       sortedKeysOf(changed),
			touched:       edits.touched(),
			parentChanged: parentChanged,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// remergeProperties recomputes node's properties against its new first parent. The
// node's local values survive, patched values win, and anything inherited from the
// old parent is dropped.
func (s *NodeService) remergeProperties(ctx context.Context, node *entities.Node, patched map[string]valueobjects.PropertyValue, types map[string]string) ([]string, error) {
	local := inheritance.LocalInput(node)
	for k, v := range patched {
		local.Properties[k] = v
		if _, ok := local.Inheritance[k]; !ok {
			local.Inheritance[k] = valueobjects.InheritUnlessAlreadyOverridden
		}
		delete(local.PropertyType, k)
	}
	for k, t := range types {
		local.PropertyType[k] = t
	}

	var parent *inheritance.ParentData
	if parentID := node.FirstParentID(); parentID != "" {
		var err error
		parent, err = s.resolver.ParentNodeData(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil && s.config.RequireExistingTargets {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("Parent node %s not found", parentID))
		}
	}
	merged := inheritance.Merge(parent, local)

	changed := make([]string, 0)
	for k, v := range merged.Properties {
		if old, ok := node.Properties[k]; !ok || !old.Equal(v) {
			changed = append(changed, k)
		}
	}
	for k := range node.Properties {
		if _, ok := merged.Properties[k]; !ok {
			changed = append(changed, k)
			delete(node.ContributorsByProperty, k)
		}
	}
	node.Properties = merged.Properties
	node.Inheritance = merged.Inheritance
	node.PropertyType = merged.PropertyType
	sort.Strings(changed)
	return changed, nil
}

// patchProperties merges patched values into node while the parent stays the same.
// A changed value that was inherited becomes a local override; a new key is local.
func patchProperties(node *entities.Node, patched map[string]valueobjects.PropertyValue, types map[string]string) []string {
	changed := make([]string, 0)
	for _, k := range sortedPropertyKeys(patched) {
		v := patched[k]
		old, exists := node.Properties[k]
		switch {
		case !exists:
			node.Properties[k] = v
			node.Inheritance[k] = entities.LocalInheritance(valueobjects.InheritUnlessAlreadyOverridden)
			node.PropertyType[k] = valueobjects.InferPropertyType(v)
		case old.Equal(v):
			continue
		default:
			node.Properties[k] = v
			if inh := node.Inheritance[k]; inh.IsInherited() {
				node.Inheritance[k] = entities.LocalInheritance(inh.InheritanceType)
			}
		}
		changed = append(changed, k)
	}
	for k, t := range types {
		if _, ok := node.Properties[k]; !ok || node.PropertyType[k] == t {
			continue
		}
		node.PropertyType[k] = t
		changed = append(changed, k)
	}
	return uniqueSorted(changed)
}

// addedIDs returns, per relation, the ids in after that were not in before.
func addedIDs(before, after relationSets) relationSets {
	out := make(relationSets, len(allRelations))
	for _, r := range allRelations {
		old := make(map[string]bool, len(before[r]))
		for _, id := range before[r] {
			old[id] = true
		}
		for _, id := range after[r] {
			if !old[id] {
				out[r] = append(out[r], id)
			}
		}
	}
	return out
}

// fieldSnapshot captures the named fields of n for a changelog entry.
func fieldSnapshot(n *entities.Node, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		field, key := entities.SplitPath(f)
		switch field {
		case "title":
			out[f] = n.Title
		case "nodeType":
			out[f] = string(n.NodeType)
		case "root":
			out[f] = n.Root
		case "generalizations":
			out[f] = n.Generalizations.Clone()
		case "specializations":
			out[f] = n.Specializations.Clone()
		case "properties":
			if v, ok := n.Properties[key]; ok {
				out[f] = v.Interface()
			} else {
				out[f] = nil
			}
		}
	}
	return out
}

func sortedKeysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedPropertyKeys(m map[string]valueobjects.PropertyValue) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func uniqueSorted(in []string) []string {
	sort.Strings(in)
	out := make([]string, 0, len(in))
	for _, s := range in {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
