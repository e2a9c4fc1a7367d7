package entities

import (
	"fmt"
	"sort"
	"strings"

	"ontology/domain/core/valueobjects"
)

// PatchOp is the action a FieldPatch performs on one field.
type PatchOp int

const (
	NoChange PatchOp = iota
	Set
	Delete
)

// FieldPatch is a single-field mutation: set a value, delete the field, or leave it alone.
type FieldPatch struct {
	Op    PatchOp
	Value any
}

// SetField builds a patch that stores value.
func SetField(value any) FieldPatch { return FieldPatch{Op: Set, Value: value} }

// DeleteField builds a patch that removes the field.
func DeleteField() FieldPatch { return FieldPatch{Op: Delete} }

// Patch paths.
const (
	PathTitle                = "title"
	PathNodeType             = "nodeType"
	PathRoot                 = "root"
	PathDeleted              = "deleted"
	PathContributors         = "contributors"
	PathGeneralizations      = "generalizations"
	PathSpecializations      = "specializations"
	PathUpdatedAt            = "updatedAt"
	PrefixProperties         = "properties."
	PrefixInheritance        = "inheritance."
	PrefixPropertyType       = "propertyType."
	PrefixContributorsByProp = "contributorsByProperty."
	PrefixTextValue          = "textValue."
)

// NodePatch maps field paths to patches. Nested map entries are addressed as
// "<map>.<key>"; keys may themselves contain dots.
type NodePatch map[string]FieldPatch

// Set records a Set patch for path.
func (p NodePatch) Set(path string, value any) { p[path] = SetField(value) }

// Delete records a Delete patch for path.
func (p NodePatch) Delete(path string) { p[path] = DeleteField() }

// Paths returns the patched paths in sorted order, NoChange entries excluded.
func (p NodePatch) Paths() []string {
	paths := make([]string, 0, len(p))
	for k, fp := range p {
		if fp.Op != NoChange {
			paths = append(paths, k)
		}
	}
	sort.Strings(paths)
	return paths
}

// IsEmpty reports whether the patch would change nothing.
func (p NodePatch) IsEmpty() bool {
	return len(p.Paths()) == 0
}

// Merge copies every entry of other into p, other winning on conflicts.
func (p NodePatch) Merge(other NodePatch) {
	for k, v := range other {
		p[k] = v
	}
}

// SplitPath splits a patch path into its top-level field and the map key, if any.
func SplitPath(path string) (field, key string) {
	field, key, _ = strings.Cut(path, ".")
	return field, key
}

// ApplyPatch applies patch to n in place. Values must carry the Go type of the target
// field; a mismatch is reported as an error and leaves n partially updated.
func (n *Node) ApplyPatch(patch NodePatch) error {
	n.EnsureDefaults()
	for _, path := range patch.Paths() {
		if err := n.applyField(path, patch[path]); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) applyField(path string, fp FieldPatch) error {
	field, key := SplitPath(path)
	del := fp.Op == Delete

	switch field {
	case PathTitle:
		return assign(path, fp, del, &n.Title)
	case PathRoot:
		return assign(path, fp, del, &n.Root)
	case PathNodeType:
		return assign(path, fp, del, &n.NodeType)
	case PathDeleted:
		return assign(path, fp, del, &n.Deleted)
	case PathContributors:
		return assign(path, fp, del, &n.Contributors)
	case PathGeneralizations:
		return assign(path, fp, del, &n.Generalizations)
	case PathSpecializations:
		return assign(path, fp, del, &n.Specializations)
	case PathUpdatedAt:
		return assign(path, fp, del, &n.UpdatedAt)
	}

	if key == "" {
		return fmt.Errorf("unknown patch path %q", path)
	}

	switch field + "." {
	case PrefixProperties:
		return assignEntry(path, fp, del, n.Properties, key)
	case PrefixInheritance:
		return assignEntry(path, fp, del, n.Inheritance, key)
	case PrefixPropertyType:
		return assignEntry(path, fp, del, n.PropertyType, key)
	case PrefixContributorsByProp:
		return assignEntry(path, fp, del, n.ContributorsByProperty, key)
	case PrefixTextValue:
		if n.TextValue == nil {
			n.TextValue = make(map[string]string)
		}
		return assignEntry(path, fp, del, n.TextValue, key)
	default:
		return fmt.Errorf("unknown patch path %q", path)
	}
}

func assign[T any](path string, fp FieldPatch, del bool, target *T) error {
	if del {
		var zero T
		*target = zero
		return nil
	}
	v, ok := fp.Value.(T)
	if !ok {
		return fmt.Errorf("patch %q: expected %T, got %T", path, *target, fp.Value)
	}
	*target = v
	return nil
}

func assignEntry[T any](path string, fp FieldPatch, del bool, target map[string]T, key string) error {
	if del {
		delete(target, key)
		return nil
	}
	v, ok := fp.Value.(T)
	if !ok {
		var zero T
		return fmt.Errorf("patch %q: expected %T, got %T", path, zero, fp.Value)
	}
	target[key] = v
	return nil
}

// PropertyPath, InheritancePath and friends build nested patch paths.
func PropertyPath(name string) string { return PrefixProperties + name }
func InheritancePath(name string) string { return PrefixInheritance + name }
func PropertyTypePath(name string) string { return PrefixPropertyType + name }
func ContributorsPath(name string) string { return PrefixContributorsByProp + name }

// SetRelationship records a Set patch for a relationship property.
func (p NodePatch) SetRelationship(name string, cs valueobjects.Collections) {
	p.Set(PropertyPath(name), valueobjects.CollectionsValue(cs))
}
