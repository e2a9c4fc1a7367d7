// Package inheritance computes the property set a node receives from its first
// generalization.
package inheritance

import (
	"sort"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
)

// ParentData is the inheritable state of a parent node.
type ParentData struct {
	ID           string
	Properties   map[string]valueobjects.PropertyValue
	Inheritance  map[string]entities.Inheritance
	PropertyType map[string]string
}

// FromNode extracts the inheritable state of n.
func FromNode(n *entities.Node) *ParentData {
	c := n.Clone()
	return &ParentData{
		ID:           c.ID,
		Properties:   c.Properties,
		Inheritance:  c.Inheritance,
		PropertyType: c.PropertyType,
	}
}

// ChildInput is what the child brings to the merge: explicitly supplied values,
// explicit property types and the inheritance types of its local properties.
type ChildInput struct {
	Properties   map[string]valueobjects.PropertyValue
	PropertyType map[string]string
	Inheritance  map[string]valueobjects.InheritanceType
}

// Result is the merged property state of the child.
type Result struct {
	Properties   map[string]valueobjects.PropertyValue
	Inheritance  map[string]entities.Inheritance
	PropertyType map[string]string
}

// Merge combines parent and child. A nil parent yields the child's own properties,
// all local. parts and isPartOf always end up present; isPartOf is never inherited.
func Merge(parent *ParentData, child ChildInput) Result {
	res := Result{
		Properties:   make(map[string]valueobjects.PropertyValue),
		Inheritance:  make(map[string]entities.Inheritance),
		PropertyType: make(map[string]string),
	}

	if parent != nil {
		for _, key := range sortedKeys(parent.Properties) {
			if key == entities.PropertyIsPartOf {
				continue
			}
			value, inh := mergeProperty(parent, key, child)
			res.Properties[key] = value
			res.Inheritance[key] = inh
		}
		for k, t := range parent.PropertyType {
			res.PropertyType[k] = t
		}
	}

	for _, key := range sortedKeys(child.Properties) {
		if _, done := res.Properties[key]; done || key == entities.PropertyIsPartOf {
			continue
		}
		res.Properties[key] = child.Properties[key].Clone()
		res.Inheritance[key] = entities.LocalInheritance(child.Inheritance[key])
	}

	if _, ok := res.Properties[entities.PropertyParts]; !ok {
		res.Properties[entities.PropertyParts] = valueobjects.CollectionsValue(valueobjects.DefaultCollections())
		res.Inheritance[entities.PropertyParts] = entities.LocalInheritance(valueobjects.InheritUnlessAlreadyOverridden)
	}

	isPartOf, ok := child.Properties[entities.PropertyIsPartOf]
	if !ok || isPartOf.Kind() != valueobjects.KindCollections {
		isPartOf = valueobjects.CollectionsValue(valueobjects.DefaultCollections())
	}
	res.Properties[entities.PropertyIsPartOf] = isPartOf.Clone()
	res.Inheritance[entities.PropertyIsPartOf] = entities.LocalInheritance(valueobjects.NeverInherit)

	for k, inh := range res.Inheritance {
		if _, supplied := child.Properties[k]; supplied && !inh.IsInherited() {
			res.PropertyType[k] = valueobjects.InferPropertyType(res.Properties[k])
		}
	}
	for k, t := range child.PropertyType {
		res.PropertyType[k] = t
	}
	for k, v := range res.Properties {
		if _, ok := res.PropertyType[k]; !ok {
			res.PropertyType[k] = valueobjects.InferPropertyType(v)
		}
	}
	for k := range res.PropertyType {
		if _, ok := res.Properties[k]; !ok {
			delete(res.PropertyType, k)
		}
	}
	return res
}

func mergeProperty(parent *ParentData, key string, child ChildInput) (valueobjects.PropertyValue, entities.Inheritance) {
	parentValue := parent.Properties[key]
	rule := parent.Inheritance[key].InheritanceType
	childValue, supplied := child.Properties[key]

	switch rule {
	case valueobjects.NeverInherit:
		if supplied {
			return childValue.Clone(), entities.LocalInheritance(rule)
		}
		return emptyLike(parentValue), entities.LocalInheritance(rule)

	case valueobjects.AlwaysInherit:
		if supplied {
			if merged, ok := unionCollections(parentValue, childValue); ok {
				return merged, entities.InheritedFrom(parent.ID, rule)
			}
		}
		return parentValue.Clone(), entities.InheritedFrom(parent.ID, rule)

	case valueobjects.InheritAfterReview:
		if supplied {
			return childValue.Clone(), entities.LocalInheritance(rule)
		}
		return emptyLike(parentValue), entities.InheritedFrom(parent.ID, rule)

	default:
		if !supplied {
			return parentValue.Clone(), entities.InheritedFrom(parent.ID, rule)
		}
		if merged, ok := unionCollections(parentValue, childValue); ok {
			if merged.Equal(parentValue) {
				return merged, entities.InheritedFrom(parent.ID, rule)
			}
			return merged, entities.LocalInheritance(valueobjects.InheritUnlessAlreadyOverridden)
		}
		if childValue.Equal(parentValue) {
			return parentValue.Clone(), entities.InheritedFrom(parent.ID, rule)
		}
		return childValue.Clone(), entities.LocalInheritance(valueobjects.InheritUnlessAlreadyOverridden)
	}
}

// unionCollections merges two collection-typed values; ok is false when either side
// holds another kind.
func unionCollections(parentValue, childValue valueobjects.PropertyValue) (valueobjects.PropertyValue, bool) {
	pc, ok := parentValue.Collections()
	if !ok {
		return valueobjects.PropertyValue{}, false
	}
	cc, ok := childValue.Collections()
	if !ok {
		return valueobjects.PropertyValue{}, false
	}
	return valueobjects.CollectionsValue(pc.Union(cc)), true
}

func emptyLike(v valueobjects.PropertyValue) valueobjects.PropertyValue {
	if v.Kind() == valueobjects.KindCollections {
		return valueobjects.CollectionsValue(valueobjects.DefaultCollections())
	}
	return valueobjects.NullValue()
}

// LocalInput collects the properties of n that are owned by n itself, together with
// their inheritance types and property types. It is the child side of a re-merge
// after the first generalization changes.
func LocalInput(n *entities.Node) ChildInput {
	in := ChildInput{
		Properties:   make(map[string]valueobjects.PropertyValue),
		PropertyType: make(map[string]string),
		Inheritance:  make(map[string]valueobjects.InheritanceType),
	}
	for k, v := range n.Properties {
		inh, ok := n.Inheritance[k]
		if ok && inh.IsInherited() {
			continue
		}
		in.Properties[k] = v.Clone()
		in.Inheritance[k] = inh.InheritanceType
		if t, ok := n.PropertyType[k]; ok {
			in.PropertyType[k] = t
		}
	}
	return in
}

func sortedKeys(m map[string]valueobjects.PropertyValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
