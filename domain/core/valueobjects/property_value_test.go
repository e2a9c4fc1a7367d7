package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferPropertyType(t *testing.T) {
	tests := []struct {
		name  string
		value PropertyValue
		want  string
	}{
		{"text", TextValue("hello"), PropertyTypeString},
		{"null", NullValue(), PropertyTypeString},
		{"number", NumberValue(4), PropertyTypeNumber},
		{"bool", BoolValue(true), PropertyTypeBoolean},
		{"string list", TextListValue([]string{"a"}), PropertyTypeStringArray},
		{"collections", CollectionsValue(DefaultCollections()), PropertyTypeCollection},
		{"object", ObjectValue(map[string]any{"k": 1}), PropertyTypeObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferPropertyType(tt.value))
		})
	}
}

func TestFromAny_DecodesCollections(t *testing.T) {
	// Arrange
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`[{"collectionName":"main","nodes":[{"id":"a","title":"A"}]},{"collectionName":"tools"}]`), &raw))

	// Act
	v := FromAny(raw)

	// Assert
	cs, ok := v.Collections()
	require.True(t, ok)
	require.Len(t, cs, 2)
	assert.Equal(t, []LinkNode{{ID: "a", Title: "A"}}, cs[0].Nodes)
	assert.NotNil(t, cs[1].Nodes)
	assert.Empty(t, cs[1].Nodes)
}

func TestFromAny_MixedSliceIsObject(t *testing.T) {
	v := FromAny([]any{"a", 1.0})
	assert.Equal(t, KindObject, v.Kind())
}

func TestPropertyValue_JSONDecodeSelectsKind(t *testing.T) {
	var props map[string]PropertyValue
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":2,"c":false,"d":["p","q"],"e":null}`), &props))

	assert.Equal(t, KindText, props["a"].Kind())
	assert.Equal(t, KindNumber, props["b"].Kind())
	assert.Equal(t, KindBool, props["c"].Kind())
	assert.Equal(t, KindTextList, props["d"].Kind())
	assert.True(t, props["e"].IsNull())
}

func TestPropertyValue_Equal(t *testing.T) {
	assert.True(t, TextValue("a").Equal(TextValue("a")))
	assert.False(t, TextValue("a").Equal(TextValue("b")))
	assert.False(t, TextValue("1").Equal(NumberValue(1)))
	assert.True(t, ObjectValue(map[string]any{"n": 1}).Equal(ObjectValue(map[string]any{"n": 1.0})))

	withTitle := CollectionsValue(Collections{{CollectionName: "main", Nodes: []LinkNode{{ID: "a", Title: "A"}}}})
	withoutTitle := CollectionsValue(Collections{{CollectionName: "main", Nodes: []LinkNode{{ID: "a"}}}})
	assert.True(t, withTitle.Equal(withoutTitle))
}

func TestPropertyValue_CloneIsDeep(t *testing.T) {
	// Arrange
	original := CollectionsValue(Collections{{CollectionName: "main", Nodes: []LinkNode{{ID: "a"}}}})

	// Act
	cloned := original.Clone()
	cs, _ := cloned.Collections()
	cs[0].Nodes[0].ID = "changed"

	// Assert
	assert.True(t, original.Equal(cloned))
	orig, _ := original.Collections()
	assert.Equal(t, "a", orig[0].Nodes[0].ID)
}

func TestPropertyValue_IsEmpty(t *testing.T) {
	assert.True(t, NullValue().IsEmpty())
	assert.True(t, TextValue("").IsEmpty())
	assert.True(t, CollectionsValue(DefaultCollections()).IsEmpty())
	assert.False(t, NumberValue(0).IsEmpty())
	assert.False(t, TextValue("x").IsEmpty())
}
