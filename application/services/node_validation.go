package services

import (
	"fmt"
	"strings"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	pkgerrors "ontology/pkg/errors"
)

func (s *NodeService) validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return pkgerrors.NewValidationError("title is required")
	}
	if len(title) > s.config.MaxTitleLength {
		return pkgerrors.NewValidationError(fmt.Sprintf("title exceeds %d characters", s.config.MaxTitleLength))
	}
	return nil
}

func validateNodeType(t valueobjects.NodeType) error {
	if !t.IsValid() {
		return pkgerrors.NewValidationError(fmt.Sprintf("invalid node type %q", t)).
			WithCode("INVALID_NODE_TYPE")
	}
	return nil
}

func (s *NodeService) validatePropertyName(name string) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.NewValidationError("property name is required")
	}
	if len(name) > s.config.MaxPropertyNameLength {
		return pkgerrors.NewValidationError(fmt.Sprintf("property name exceeds %d characters", s.config.MaxPropertyNameLength))
	}
	return nil
}

// relationshipProperty extracts a relationship-typed property from request
// properties. ok is false when the property was not supplied.
func relationshipProperty(props map[string]valueobjects.PropertyValue, name string) (valueobjects.Collections, bool, error) {
	v, ok := props[name]
	if !ok {
		return nil, false, nil
	}
	if v.IsNull() {
		return valueobjects.Collections{}, true, nil
	}
	cs, isCollections := v.Collections()
	if !isCollections {
		if list, isList := v.TextList(); isList && len(list) == 0 {
			return valueobjects.Collections{}, true, nil
		}
		return nil, false, pkgerrors.NewValidationError(fmt.Sprintf("property %s must be a list of collections", name))
	}
	return cs, true, nil
}

// validateRelationships runs the pure structural checks: well-formed ids, the size
// limit, no self reference, no duplicates within a collection and no id that is
// both a generalization and a specialization.
func (s *NodeService) validateRelationships(selfID string, set entities.RelationshipSet) error {
	for _, r := range allRelations {
		var cs valueobjects.Collections
		switch r {
		case relGeneralizations:
			cs = set.Generalizations
		case relSpecializations:
			cs = set.Specializations
		case relParts:
			cs = set.Parts
		default:
			cs = set.IsPartOf
		}
		ids := cs.IDs()
		if len(ids) > s.config.MaxReferencesPerSet {
			return pkgerrors.NewValidationError(fmt.Sprintf("too many %s references: %d, the limit is %d",
				relationKinds[r], len(ids), s.config.MaxReferencesPerSet))
		}
		for _, c := range cs {
			for _, link := range c.Nodes {
				if err := valueobjects.ValidateNodeID(link.ID); err != nil {
					return err
				}
				if selfID != "" && link.ID == selfID {
					return pkgerrors.NewValidationError("a node cannot reference itself").
						WithDetails(map[string]interface{}{"id": selfID, "relation": relationKinds[r]})
				}
			}
		}
	}

	if report := s.duplicates.Validate(set); !report.Valid {
		return report.Err()
	}
	if ids := s.circular.Detect(set.Generalizations, set.Specializations); len(ids) > 0 {
		return pkgerrors.NewCircularReferenceError(ids)
	}
	return nil
}

// missingTargets checks that every referenced id was read and is not deleted.
// Kinds are checked in relation order and the first failure is reported.
func (s *NodeService) missingTargets(refs relationSets, read map[string]*entities.Node) error {
	if !s.config.RequireExistingTargets {
		return nil
	}
	for _, r := range allRelations {
		missing := make([]string, 0)
		for _, id := range refs[r] {
			if n, ok := read[id]; !ok || n.Deleted {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return pkgerrors.NewMissingReferenceError(relationKinds[r], missing)
		}
	}
	return nil
}
