package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_UnmarshalCoercesNullNodes(t *testing.T) {
	var cs Collections
	require.NoError(t, json.Unmarshal([]byte(`[{"collectionName":"main","nodes":null},{"collectionName":"x"}]`), &cs))

	require.Len(t, cs, 2)
	for _, c := range cs {
		assert.NotNil(t, c.Nodes)
	}
}

func TestCollections_WithLinkAndWithoutLink(t *testing.T) {
	// Arrange
	cs := Collections{{CollectionName: "tools", Nodes: []LinkNode{{ID: "a"}}}}

	// Act
	added := cs.WithLink("b", "B")
	again := added.WithLink("a", "")
	removed := again.WithoutLink("a")

	// Assert
	assert.Equal(t, []string{"b", "a"}, added.IDs())
	assert.Equal(t, MainCollection, added[0].CollectionName)
	assert.Equal(t, added.IDs(), again.IDs())
	assert.Equal(t, []string{"b"}, removed.IDs())
	assert.Len(t, removed, 2)
	assert.Equal(t, []string{"a"}, cs.IDs(), "receiver must not be mutated")
}

func TestCollections_Union(t *testing.T) {
	parent := Collections{{CollectionName: "main", Nodes: []LinkNode{{ID: "p1"}}}}
	child := Collections{
		{CollectionName: "main", Nodes: []LinkNode{{ID: "p1"}, {ID: "c1"}}},
		{CollectionName: "extra", Nodes: []LinkNode{{ID: "c2"}}},
	}

	got := parent.Union(child)

	assert.Equal(t, []string{"p1", "c1", "c2"}, got.IDs())
	assert.Equal(t, "extra", got[1].CollectionName)
}

func TestCollections_Flatten(t *testing.T) {
	cs := Collections{
		{CollectionName: "a", Nodes: []LinkNode{{ID: "1"}}},
		{CollectionName: "b", Nodes: []LinkNode{{ID: "2"}, {ID: "1"}}},
	}

	flat := cs.Flatten()

	require.Len(t, flat, 1)
	assert.Equal(t, MainCollection, flat[0].CollectionName)
	assert.Equal(t, []string{"1", "2"}, flat.IDs())
}

func TestInheritanceType_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]InheritanceType{"x": NeverInherit})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":"neverInherit"}`, string(data))

	var parsed InheritanceType
	require.NoError(t, parsed.UnmarshalText([]byte("inheritUnlessAlreadyOverRidden")))
	assert.Equal(t, InheritUnlessAlreadyOverridden, parsed)

	assert.Error(t, parsed.UnmarshalText([]byte("sometimes")))
}
