package entities

import (
	"testing"

	"ontology/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode() *Node {
	n := &Node{ID: "n1", Title: "Sell goods"}
	n.EnsureDefaults()
	n.Properties["description"] = valueobjects.TextValue("d")
	n.Inheritance["description"] = InheritedFrom("p", valueobjects.InheritUnlessAlreadyOverridden)
	n.PropertyType["description"] = valueobjects.PropertyTypeString
	return n
}

func TestNode_CloneIsDeep(t *testing.T) {
	// Arrange
	n := newTestNode()

	// Act
	c := n.Clone()
	*c.Inheritance["description"].Ref = "other"
	c.Properties["description"] = valueobjects.TextValue("changed")
	c.Generalizations[0].Nodes = append(c.Generalizations[0].Nodes, valueobjects.LinkNode{ID: "x"})

	// Assert
	assert.Equal(t, "p", n.Inheritance["description"].RefID())
	assert.True(t, n.Properties["description"].Equal(valueobjects.TextValue("d")))
	assert.Empty(t, n.Generalizations[0].Nodes)
}

func TestNode_ApplyPatch(t *testing.T) {
	// Arrange
	n := newTestNode()
	patch := NodePatch{}
	patch.Set(PathTitle, "Trade goods")
	patch.Set(PropertyPath("status"), valueobjects.TextValue("s"))
	patch.Set(InheritancePath("status"), LocalInheritance(valueobjects.NeverInherit))
	patch.Delete(PropertyPath("description"))
	patch.Delete(InheritancePath("description"))
	patch[PathDeleted] = FieldPatch{Op: NoChange, Value: true}

	// Act
	err := n.ApplyPatch(patch)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Trade goods", n.Title)
	assert.False(t, n.Deleted)
	assert.False(t, n.HasProperty("description"))
	assert.NotContains(t, n.Inheritance, "description")
	assert.Equal(t, valueobjects.NeverInherit, n.Inheritance["status"].InheritanceType)
}

func TestNode_ApplyPatch_TypeMismatch(t *testing.T) {
	n := newTestNode()

	err := n.ApplyPatch(NodePatch{PathTitle: SetField(42)})

	assert.Error(t, err)
}

func TestNode_ApplyPatch_DottedPropertyName(t *testing.T) {
	n := newTestNode()

	require.NoError(t, n.ApplyPatch(NodePatch{PropertyPath("a.b"): SetField(valueobjects.NumberValue(1))}))

	assert.True(t, n.HasProperty("a.b"))
}

func TestNode_RelationshipDefaults(t *testing.T) {
	n := newTestNode()

	assert.Equal(t, valueobjects.DefaultCollections(), n.Parts())
	assert.Equal(t, "", n.FirstParentID())

	n.Generalizations = valueobjects.Collections{{CollectionName: "main", Nodes: []valueobjects.LinkNode{{ID: "p"}}}}
	assert.Equal(t, "p", n.FirstParentID())
}

func TestAddContributor(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, AddContributor([]string{"a"}, "b"))
	assert.Equal(t, []string{"a"}, AddContributor([]string{"a"}, "a"))
}
