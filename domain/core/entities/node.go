package entities

import (
	"sort"
	"time"

	"ontology/domain/core/valueobjects"
)

// Relationship property names stored in Node.Properties.
const (
	PropertyParts    = "parts"
	PropertyIsPartOf = "isPartOf"
)

// Inheritance describes where a property value comes from.
// Ref is nil when the value is local to the node.
type Inheritance struct {
	Ref             *string                      `json:"ref"`
	InheritanceType valueobjects.InheritanceType `json:"inheritanceType"`
}

// IsInherited reports whether the value was copied from another node.
func (i Inheritance) IsInherited() bool {
	return i.Ref != nil
}

// RefID returns the referenced node id or "".
func (i Inheritance) RefID() string {
	if i.Ref == nil {
		return ""
	}
	return *i.Ref
}

// LocalInheritance is the inheritance record of a value owned by the node itself.
func LocalInheritance(t valueobjects.InheritanceType) Inheritance {
	return Inheritance{InheritanceType: t}
}

// InheritedFrom is the inheritance record of a value copied from parentID.
func InheritedFrom(parentID string, t valueobjects.InheritanceType) Inheritance {
	ref := parentID
	return Inheritance{Ref: &ref, InheritanceType: t}
}

// Node is a single ontology document.
type Node struct {
	ID                     string                                `json:"id"`
	Title                  string                                `json:"title"`
	NodeType               valueobjects.NodeType                 `json:"nodeType"`
	Deleted                bool                                  `json:"deleted"`
	Root                   string                                `json:"root,omitempty"`
	Properties             map[string]valueobjects.PropertyValue `json:"properties"`
	Inheritance            map[string]Inheritance                `json:"inheritance"`
	PropertyType           map[string]string                     `json:"propertyType"`
	TextValue              map[string]string                     `json:"textValue,omitempty"`
	Generalizations        valueobjects.Collections              `json:"generalizations"`
	Specializations        valueobjects.Collections              `json:"specializations"`
	Contributors           []string                              `json:"contributors"`
	ContributorsByProperty map[string][]string                   `json:"contributorsByProperty"`
	CreatedBy              string                                `json:"createdBy"`
	Locked                 bool                                  `json:"locked"`
	PropertyOf             map[string]valueobjects.Collections   `json:"propertyOf,omitempty"`
	CreatedAt              time.Time                             `json:"createdAt"`
	UpdatedAt              time.Time                             `json:"updatedAt"`
}

// EnsureDefaults replaces nil maps and relationship lists with empty values so that
// callers never have to nil-check a decoded document.
func (n *Node) EnsureDefaults() {
	if n.Properties == nil {
		n.Properties = make(map[string]valueobjects.PropertyValue)
	}
	if n.Inheritance == nil {
		n.Inheritance = make(map[string]Inheritance)
	}
	if n.PropertyType == nil {
		n.PropertyType = make(map[string]string)
	}
	if n.ContributorsByProperty == nil {
		n.ContributorsByProperty = make(map[string][]string)
	}
	if n.Contributors == nil {
		n.Contributors = []string{}
	}
	if n.Generalizations == nil {
		n.Generalizations = valueobjects.DefaultCollections()
	}
	if n.Specializations == nil {
		n.Specializations = valueobjects.DefaultCollections()
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Properties = make(map[string]valueobjects.PropertyValue, len(n.Properties))
	for k, v := range n.Properties {
		out.Properties[k] = v.Clone()
	}
	out.Inheritance = make(map[string]Inheritance, len(n.Inheritance))
	for k, v := range n.Inheritance {
		if v.Ref != nil {
			ref := *v.Ref
			v.Ref = &ref
		}
		out.Inheritance[k] = v
	}
	out.PropertyType = copyStringMap(n.PropertyType)
	if n.TextValue != nil {
		out.TextValue = copyStringMap(n.TextValue)
	}
	out.Generalizations = n.Generalizations.Clone()
	out.Specializations = n.Specializations.Clone()
	out.Contributors = append([]string(nil), n.Contributors...)
	out.ContributorsByProperty = make(map[string][]string, len(n.ContributorsByProperty))
	for k, v := range n.ContributorsByProperty {
		out.ContributorsByProperty[k] = append([]string(nil), v...)
	}
	if n.PropertyOf != nil {
		out.PropertyOf = make(map[string]valueobjects.Collections, len(n.PropertyOf))
		for k, v := range n.PropertyOf {
			out.PropertyOf[k] = v.Clone()
		}
	}
	out.EnsureDefaults()
	return &out
}

// FirstParentID returns the id of the first generalization, the node properties are
// inherited from.
func (n *Node) FirstParentID() string {
	return n.Generalizations.FirstID()
}

// RelationshipProperty returns the collections stored under a relationship property,
// or the default shape when the property is missing or not relationship-typed.
func (n *Node) RelationshipProperty(name string) valueobjects.Collections {
	if v, ok := n.Properties[name]; ok {
		if cs, ok := v.Collections(); ok {
			return cs
		}
	}
	return valueobjects.DefaultCollections()
}

// Parts returns the collections of nodes this node is composed of.
func (n *Node) Parts() valueobjects.Collections {
	return n.RelationshipProperty(PropertyParts)
}

// IsPartOf returns the collections of nodes this node is a part of.
func (n *Node) IsPartOf() valueobjects.Collections {
	return n.RelationshipProperty(PropertyIsPartOf)
}

// HasProperty reports whether the node defines the property.
func (n *Node) HasProperty(name string) bool {
	_, ok := n.Properties[name]
	return ok
}

// PropertyNames returns property names in sorted order.
func (n *Node) PropertyNames() []string {
	names := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Relationships bundles the four relationship sets of a node.
func (n *Node) Relationships() RelationshipSet {
	return RelationshipSet{
		Generalizations: n.Generalizations,
		Specializations: n.Specializations,
		Parts:           n.Parts(),
		IsPartOf:        n.IsPartOf(),
	}
}

// RelationshipSet holds the four relationship sets checked for duplicates.
// A nil field means the set was not supplied.
type RelationshipSet struct {
	Generalizations valueobjects.Collections
	Specializations valueobjects.Collections
	Parts           valueobjects.Collections
	IsPartOf        valueobjects.Collections
}

// QueryField exposes the top-level scalar fields that document queries filter or
// sort on. The bool is false when the node has no value for field.
func (n *Node) QueryField(field string) (interface{}, bool) {
	switch field {
	case "id":
		return n.ID, true
	case "title":
		return n.Title, true
	case "nodeType":
		return string(n.NodeType), true
	case "deleted":
		return n.Deleted, true
	case "root":
		return n.Root, n.Root != ""
	case "createdBy":
		return n.CreatedBy, true
	case "locked":
		return n.Locked, true
	default:
		return nil, false
	}
}

// AddContributor appends user to the contributor list unless already present.
func AddContributor(list []string, user string) []string {
	for _, c := range list {
		if c == user {
			return append([]string(nil), list...)
		}
	}
	return append(append([]string(nil), list...), user)
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
