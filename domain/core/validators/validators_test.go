package validators

import (
	"testing"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	pkgerrors "ontology/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func links(ids ...string) []valueobjects.LinkNode {
	out := make([]valueobjects.LinkNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, valueobjects.LinkNode{ID: id})
	}
	return out
}

func mainOf(ids ...string) valueobjects.Collections {
	return valueobjects.Collections{{CollectionName: "main", Nodes: links(ids...)}}
}

func TestNormalizeCollection_EmptyInput(t *testing.T) {
	for _, in := range []valueobjects.Collections{nil, {}} {
		got := NormalizeCollection(in)

		require.Len(t, got, 1)
		assert.Equal(t, "main", got[0].CollectionName)
		assert.NotNil(t, got[0].Nodes)
		assert.Empty(t, got[0].Nodes)
	}
}

func TestNormalizeCollection_BlankNamesFoldIntoMain(t *testing.T) {
	// Arrange
	in := valueobjects.Collections{
		{CollectionName: "", Nodes: links("a")},
		{CollectionName: "tools", Nodes: nil},
		{CollectionName: "   ", Nodes: links("b", "a")},
	}

	// Act
	got := NormalizeCollection(in)

	// Assert
	require.Len(t, got, 2)
	assert.Equal(t, "main", got[0].CollectionName)
	assert.Equal(t, []string{"a", "b"}, got[:1].IDs())
	assert.Equal(t, "tools", got[1].CollectionName)
	assert.NotNil(t, got[1].Nodes)
}

func TestNormalizeCollection_AddsMainWhenMissing(t *testing.T) {
	got := NormalizeCollection(valueobjects.Collections{{CollectionName: "tools", Nodes: links("a")}})

	require.Len(t, got, 2)
	assert.Equal(t, "tools", got[0].CollectionName)
	assert.Equal(t, "main", got[1].CollectionName)
	assert.Empty(t, got[1].Nodes)
}

func TestNormalizeCollection_MergesRepeatedNames(t *testing.T) {
	in := valueobjects.Collections{
		{CollectionName: "tools", Nodes: links("a")},
		{CollectionName: "main", Nodes: links("x", "x")},
		{CollectionName: "tools", Nodes: links("a", "b")},
	}

	got := NormalizeCollection(in)

	require.Len(t, got, 2)
	assert.Equal(t, "tools", got[0].CollectionName)
	assert.Len(t, got[0].Nodes, 2)
	assert.Len(t, got[1].Nodes, 2, "duplicates inside one input collection are left for validation")
}

func TestDetectCircularReferences(t *testing.T) {
	g := mainOf("a", "b")
	s := mainOf("b", "c")

	assert.Equal(t, []string{"b"}, DetectCircularReferences(g, s))
	assert.Empty(t, DetectCircularReferences(nil, s))
	assert.Empty(t, DetectCircularReferences(mainOf("a"), mainOf("c")))
}

func TestDetectCircularReferences_IgnoresArgumentOrder(t *testing.T) {
	g := mainOf("a", "b", "d")
	s := mainOf("d", "c", "b")

	assert.ElementsMatch(t, DetectCircularReferences(g, s), DetectCircularReferences(s, g))
	assert.ElementsMatch(t, []string{"b", "d"}, DetectCircularReferences(s, g))
	assert.Empty(t, DetectCircularReferences(nil, s))
	assert.Empty(t, DetectCircularReferences(s, nil))
	assert.NotNil(t, DetectCircularReferences(nil, s))
}

func TestDetectCircularReferences_ReportsEachIDOnce(t *testing.T) {
	g := valueobjects.Collections{{CollectionName: "main", Nodes: links("a")}, {CollectionName: "x", Nodes: links("a")}}
	s := valueobjects.Collections{{CollectionName: "main", Nodes: links("a")}, {CollectionName: "y", Nodes: links("a")}}

	assert.Equal(t, []string{"a"}, DetectCircularReferences(g, s))
}

func TestValidateNoDuplicateNodeIDs(t *testing.T) {
	// Arrange
	set := entities.RelationshipSet{Generalizations: mainOf("x", "x")}

	// Act
	report := ValidateNoDuplicateNodeIDs(set)

	// Assert
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"x"}, report.Generalizations["main"])
	assert.Empty(t, report.Specializations)
	assert.Empty(t, report.Parts)
	assert.Empty(t, report.IsPartOf)

	err := report.Err()
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateReference))
}

func TestValidateNoDuplicateNodeIDs_RecordsOncePerID(t *testing.T) {
	set := entities.RelationshipSet{
		Parts: valueobjects.Collections{
			{CollectionName: "", Nodes: links("p", "p", "p", "q")},
			{CollectionName: "other", Nodes: links("q")},
		},
	}

	report := ValidateNoDuplicateNodeIDs(set)

	assert.False(t, report.Valid)
	assert.Equal(t, map[string][]string{"main": {"p"}}, report.Parts)
}

func TestValidateNoDuplicateNodeIDs_Valid(t *testing.T) {
	report := ValidateNoDuplicateNodeIDs(entities.RelationshipSet{
		Generalizations: mainOf("a"),
		Specializations: mainOf("b"),
	})

	assert.True(t, report.Valid)
	assert.NoError(t, report.Err())
}
