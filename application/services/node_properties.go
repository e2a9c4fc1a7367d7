package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/domain/events"
	pkgerrors "ontology/pkg/errors"
)

// AddPropertyRequest adds one property to a node.
type AddPropertyRequest struct {
	NodeID          string
	Name            string
	Value           valueobjects.PropertyValue
	Reasoning       string
	InheritanceType *valueobjects.InheritanceType
	PropertyType    *string
}

// UpdatePropertiesRequest sets, retypes and deletes properties of a node in one write.
type UpdatePropertiesRequest struct {
	NodeID           string
	Values           map[string]valueobjects.PropertyValue
	Reasoning        string
	InheritanceRules map[string]valueobjects.InheritanceType
	Deletions        []string
	PropertyTypes    map[string]string
}

// UpdatePropertiesResult is the node after UpdateNodeProperties and the sorted names of
// every property it changed or deleted.
type UpdatePropertiesResult struct {
	Node              *entities.Node `json:"node"`
	UpdatedProperties []string       `json:"updatedProperties"`
}

// AddNodeProperty adds a new local property to a node.
func (s *NodeService) AddNodeProperty(ctx context.Context, req AddPropertyRequest, user string) (*entities.Node, error) {
	if err := s.validatePropertyName(req.Name); err != nil {
		return nil, err
	}
	if req.InheritanceType != nil && !req.InheritanceType.IsValid() {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid inheritance type %q", *req.InheritanceType))
	}

	propertyType := valueobjects.InferPropertyType(req.Value)
	if req.PropertyType != nil && *req.PropertyType != "" {
		propertyType = *req.PropertyType
	}
	rule := valueobjects.InheritUnlessAlreadyOverridden
	if req.InheritanceType != nil {
		rule = *req.InheritanceType
	}

	var node *entities.Node
	err := s.observe(ctx, "AddNodeProperty", func(ctx context.Context) error {
		now := s.now().UTC()
		return s.transact(ctx, "AddNodeProperty", func(ctx context.Context, tx ports.Transaction) error {
			current, err := tx.Get(ctx, req.NodeID)
			if err != nil {
				return err
			}
			if current == nil {
				return nodeNotFound(req.NodeID)
			}
			if current.Deleted {
				return pkgerrors.NewInvalidStateError("Cannot add property to deleted node")
			}
			if current.HasProperty(req.Name) {
				return pkgerrors.NewConflictError(fmt.Sprintf("Property '%s' already exists on node", req.Name))
			}

			n := current.Clone()
			n.Properties[req.Name] = req.Value.Clone()
			n.Inheritance[req.Name] = entities.LocalInheritance(rule)
			n.PropertyType[req.Name] = propertyType
			n.ContributorsByProperty[req.Name] = []string{user}
			n.Contributors = entities.AddContributor(n.Contributors, user)
			n.UpdatedAt = now

			patch := entities.NodePatch{}
			patch.Set(entities.PropertyPath(req.Name), n.Properties[req.Name])
			patch.Set(entities.InheritancePath(req.Name), n.Inheritance[req.Name])
			patch.Set(entities.PropertyTypePath(req.Name), propertyType)
			patch.Set(entities.ContributorsPath(req.Name), n.ContributorsByProperty[req.Name])
			patch.Set(entities.PathContributors, n.Contributors)
			patch.Set(entities.PathUpdatedAt, now)
			if err := tx.Update(req.NodeID, patch); err != nil {
				return err
			}
			node = n
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("property added",
		zap.String("nodeID", node.ID),
		zap.String("property", req.Name),
		zap.String("propertyType", propertyType),
	)
	s.recordChange(ctx, entities.ChangeLogEntry{
		NodeID:           node.ID,
		ModifiedBy:       user,
		ModifiedProperty: req.Name,
		PreviousValue:    nil,
		NewValue:         req.Value.Interface(),
		ModifiedAt:       node.UpdatedAt,
		ChangeType:       entities.ChangeAddProperty,
		Reasoning:        req.Reasoning,
		ChangeDetails: map[string]interface{}{
			"propertyType":    propertyType,
			"inheritanceType": rule.String(),
		},
	}, node)
	s.publish(ctx, events.NewNodePropertyAdded(node.ID, user, req.Name, propertyType, node.UpdatedAt))
	s.invalidate(ctx, node.ID)
	return node, nil
}

type propertyChange struct {
	name     string
	previous valueobjects.PropertyValue
	next     valueobjects.PropertyValue
}

type propertiesOutcome struct {
	node    *entities.Node
	changes []propertyChange
	deleted []propertyChange
}

// UpdateNodeProperties applies value changes, inheritance rules, type overrides and
// deletions in a single write. Values equal to the stored ones are skipped, and when
// nothing changes the node is returned without writing.
func (s *NodeService) UpdateNodeProperties(ctx context.Context, req UpdatePropertiesRequest, user string) (*UpdatePropertiesResult, error) {
	types, err := s.validatePropertiesRequest(req)
	if err != nil {
		return nil, err
	}

	var out *propertiesOutcome
	err = s.observe(ctx, "UpdateNodeProperties", func(ctx context.Context) error {
		var err error
		out, err = s.updateNodeProperties(ctx, req, types, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(out.changes)+len(out.deleted))
	changedNames := make([]string, 0, len(out.changes))
	deletedNames := make([]string, 0, len(out.deleted))
	for _, c := range out.changes {
		names = append(names, c.name)
		changedNames = append(changedNames, c.name)
	}
	for _, d := range out.deleted {
		names = append(names, d.name)
		deletedNames = append(deletedNames, d.name)
	}
	sort.Strings(names)
	result := &UpdatePropertiesResult{Node: out.node, UpdatedProperties: names}
	if len(names) == 0 {
		return result, nil
	}

	s.logger.Info("properties updated",
		zap.String("nodeID", out.node.ID),
		zap.Strings("changed", changedNames),
		zap.Strings("deleted", deletedNames),
	)
	for _, c := range out.changes {
		s.recordChange(ctx, entities.ChangeLogEntry{
			NodeID:           out.node.ID,
			ModifiedBy:       user,
			ModifiedProperty: c.name,
			PreviousValue:    c.previous.Interface(),
			NewValue:         c.next.Interface(),
			ModifiedAt:       out.node.UpdatedAt,
			ChangeType:       entities.ChangeModifyElements,
			Reasoning:        req.Reasoning,
		}, out.node)
	}
	for _, d := range out.deleted {
		s.recordChange(ctx, entities.ChangeLogEntry{
			NodeID:           out.node.ID,
			ModifiedBy:       user,
			ModifiedProperty: d.name,
			PreviousValue:    d.previous.Interface(),
			NewValue:         nil,
			ModifiedAt:       out.node.UpdatedAt,
			ChangeType:       entities.ChangeRemoveProperty,
			Reasoning:        req.Reasoning,
		}, out.node)
	}
	s.publish(ctx, events.NewNodePropertiesUpdated(out.node.ID, user, changedNames, deletedNames, out.node.UpdatedAt))
	s.invalidate(ctx, out.node.ID)
	return result, nil
}

// validatePropertiesRequest checks names and returns the type overrides keyed by bare
// property name.
func (s *NodeService) validatePropertiesRequest(req UpdatePropertiesRequest) (map[string]string, error) {
	relationship := func(name string) bool {
		return name == entities.PropertyParts || name == entities.PropertyIsPartOf
	}
	for name := range req.Values {
		if err := s.validatePropertyName(name); err != nil {
			return nil, err
		}
		if relationship(name) {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("%s is a relationship; change it with a node update", name))
		}
	}
	deleting := make(map[string]bool, len(req.Deletions))
	for _, name := range req.Deletions {
		if relationship(name) {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("%s is a relationship and cannot be deleted", name))
		}
		if _, ok := req.Values[name]; ok {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("property %s is both updated and deleted", name))
		}
		deleting[name] = true
	}
	for name, rule := range req.InheritanceRules {
		if !rule.IsValid() {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid inheritance type for %s", name))
		}
	}

	types := make(map[string]string, len(req.PropertyTypes))
	for key, t := range req.PropertyTypes {
		name := strings.TrimPrefix(key, entities.PrefixPropertyType)
		if name == "" {
			return nil, pkgerrors.NewValidationError("property type override without a property name")
		}
		types[name] = t
	}
	return types, nil
}

func (s *NodeService) updateNodeProperties(ctx context.Context, req UpdatePropertiesRequest, types map[string]string, user string) (*propertiesOutcome, error) {
	now := s.now().UTC()
	var out *propertiesOutcome
	err := s.transact(ctx, "UpdateNodeProperties", func(ctx context.Context, tx ports.Transaction) error {
		current, err := tx.Get(ctx, req.NodeID)
		if err != nil {
			return err
		}
		if current == nil {
			return nodeNotFound(req.NodeID)
		}
		if current.Deleted {
			return pkgerrors.NewInvalidStateError("Cannot update properties of deleted node")
		}

		n := current.Clone()
		patch := entities.NodePatch{}
		changed := make(map[string]propertyChange)
		touch := func(name string) {
			if _, ok := changed[name]; !ok {
				changed[name] = propertyChange{name: name, previous: current.Properties[name], next: n.Properties[name]}
			}
		}

		for _, name := range sortedPropertyKeys(req.Values) {
			value := req.Values[name]
			old, exists := current.Properties[name]
			if exists && old.Equal(value) {
				continue
			}
			n.Properties[name] = value.Clone()
			patch.Set(entities.PropertyPath(name), n.Properties[name])

			inh, hasInh := n.Inheritance[name]
			switch {
			case !hasInh:
				n.Inheritance[name] = entities.LocalInheritance(valueobjects.InheritUnlessAlreadyOverridden)
				patch.Set(entities.InheritancePath(name), n.Inheritance[name])
			case inh.IsInherited():
				n.Inheritance[name] = entities.LocalInheritance(inh.InheritanceType)
				patch.Set(entities.InheritancePath(name), n.Inheritance[name])
			}
			if _, typed := n.PropertyType[name]; !typed {
				n.PropertyType[name] = valueobjects.InferPropertyType(value)
				patch.Set(entities.PropertyTypePath(name), n.PropertyType[name])
			}
			touch(name)
		}

		for name, rule := range req.InheritanceRules {
			if !n.HasProperty(name) {
				continue
			}
			inh := n.Inheritance[name]
			if inh.InheritanceType == rule {
				continue
			}
			inh.InheritanceType = rule
			n.Inheritance[name] = inh
			patch.Set(entities.InheritancePath(name), inh)
			touch(name)
		}

		for name, t := range types {
			if !n.HasProperty(name) || n.PropertyType[name] == t {
				continue
			}
			n.PropertyType[name] = t
			patch.Set(entities.PropertyTypePath(name), t)
			touch(name)
		}

		deleted := make([]propertyChange, 0)
		for _, name := range uniqueSorted(append([]string(nil), req.Deletions...)) {
			if !current.HasProperty(name) {
				continue
			}
			deleted = append(deleted, propertyChange{name: name, previous: current.Properties[name]})
			delete(n.Properties, name)
			delete(n.Inheritance, name)
			delete(n.PropertyType, name)
			delete(n.ContributorsByProperty, name)
			patch.Delete(entities.PropertyPath(name))
			patch.Delete(entities.InheritancePath(name))
			patch.Delete(entities.PropertyTypePath(name))
			patch.Delete(entities.ContributorsPath(name))
			if _, ok := n.TextValue[name]; ok {
				delete(n.TextValue, name)
				patch.Delete(entities.PrefixTextValue + name)
			}
		}

		changes := make([]propertyChange, 0, len(changed))
		for _, name := range sortedChangeKeys(changed) {
			c := changed[name]
			c.next = n.Properties[name]
			changes = append(changes, c)
			n.ContributorsByProperty[name] = entities.AddContributor(n.ContributorsByProperty[name], user)
			patch.Set(entities.ContributorsPath(name), n.ContributorsByProperty[name])
		}

		out = &propertiesOutcome{node: n, changes: changes, deleted: deleted}
		if len(changes) == 0 && len(deleted) == 0 {
			out.node = current
			return nil
		}

		n.Contributors = entities.AddContributor(n.Contributors, user)
		n.UpdatedAt = now
		patch.Set(entities.PathContributors, n.Contributors)
		patch.Set(entities.PathUpdatedAt, now)
		return tx.Update(req.NodeID, patch)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sortedChangeKeys(m map[string]propertyChange) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
