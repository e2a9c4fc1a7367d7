package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	"ontology/domain/events"
	pkgerrors "ontology/pkg/errors"
)

func TestAddNodeProperty(t *testing.T) {
	t.Run("adds a local property with an inferred type", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(makeNode("n", nil))

		// Act
		n, err := f.service.AddNodeProperty(context.Background(), AddPropertyRequest{
			NodeID: "n",
			Name:   "tags",
			Value:  valueobjects.TextListValue([]string{"a", "b"}),
		}, "bob")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, valueobjects.PropertyTypeStringArray, n.PropertyType["tags"])
		assert.Nil(t, n.Inheritance["tags"].Ref)
		assert.Equal(t, valueobjects.InheritUnlessAlreadyOverridden, n.Inheritance["tags"].InheritanceType)
		assert.Equal(t, []string{"bob"}, n.ContributorsByProperty["tags"])
		assert.Contains(t, n.Contributors, "bob")

		stored := f.load(t, "n")
		assert.True(t, stored.HasProperty("tags"))
		assert.Equal(t, []string{"n"}, f.spy.updates)
		f.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.DomainEvent) bool {
			return e.GetEventType() == events.TypeNodePropertyAdded
		}))
	})

	t.Run("explicit type and inheritance win", func(t *testing.T) {
		f := newFixture(t)
		f.seed(makeNode("n", nil))
		rule := valueobjects.NeverInherit
		ptype := "markdown"

		n, err := f.service.AddNodeProperty(context.Background(), AddPropertyRequest{
			NodeID:          "n",
			Name:            "notes",
			Value:           valueobjects.TextValue("# hi"),
			InheritanceType: &rule,
			PropertyType:    &ptype,
		}, "bob")

		require.NoError(t, err)
		assert.Equal(t, "markdown", n.PropertyType["notes"])
		assert.Equal(t, valueobjects.NeverInherit, n.Inheritance["notes"].InheritanceType)
	})

	t.Run("existing property conflicts", func(t *testing.T) {
		f := newFixture(t)
		f.seed(makeNode("n", map[string]valueobjects.PropertyValue{"x": valueobjects.TextValue("1")}))

		_, err := f.service.AddNodeProperty(context.Background(), AddPropertyRequest{
			NodeID: "n", Name: "x", Value: valueobjects.TextValue("2"),
		}, "bob")

		require.True(t, pkgerrors.IsConflict(err))
		assert.Equal(t, "Property 'x' already exists on node", pkgerrors.GetAppError(err).Message)
	})

	t.Run("deleted node is rejected", func(t *testing.T) {
		f := newFixture(t)
		gone := makeNode("n", nil)
		gone.Deleted = true
		f.seed(gone)

		_, err := f.service.AddNodeProperty(context.Background(), AddPropertyRequest{
			NodeID: "n", Name: "x", Value: valueobjects.TextValue("2"),
		}, "bob")

		require.True(t, pkgerrors.IsInvalidState(err))
		assert.Equal(t, "Cannot add property to deleted node", pkgerrors.GetAppError(err).Message)
	})
}

func TestUpdateNodeProperties_IdenticalValuesWriteNothing(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.seed(makeNode("n", map[string]valueobjects.PropertyValue{
		"status": valueobjects.TextValue("open"),
		"budget": valueobjects.NumberValue(3),
	}))

	// Act
	res, err := f.service.UpdateNodeProperties(context.Background(), UpdatePropertiesRequest{
		NodeID: "n",
		Values: map[string]valueobjects.PropertyValue{
			"status": valueobjects.TextValue("open"),
			"budget": valueobjects.NumberValue(3),
		},
	}, "bob")

	// Assert
	require.NoError(t, err)
	assert.Empty(t, res.UpdatedProperties)
	assert.NotNil(t, res.UpdatedProperties)
	assert.Empty(t, f.spy.updates)
	assert.Empty(t, f.changelog.All("n"))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestUpdateNodeProperties_AppliesChangesRulesTypesAndDeletions(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.seed(makeNode("P", map[string]valueobjects.PropertyValue{
		"description": valueobjects.TextValue("d"),
		"status":      valueobjects.TextValue("s"),
		"legacy":      valueobjects.TextValue("old"),
		"score":       valueobjects.NumberValue(1),
	}))
	n := createChild(t, f, NodeInput{Generalizations: links("P")})

	// Act
	res, err := f.service.UpdateNodeProperties(context.Background(), UpdatePropertiesRequest{
		NodeID: n.ID,
		Values: map[string]valueobjects.PropertyValue{
			"description": valueobjects.TextValue("mine"),
			"status":      valueobjects.TextValue("s"),
		},
		InheritanceRules: map[string]valueobjects.InheritanceType{
			"score": valueobjects.AlwaysInherit,
		},
		PropertyTypes: map[string]string{
			"propertyType.status": "enum",
		},
		Deletions: []string{"legacy", "never-existed"},
		Reasoning: "tidy",
	}, "bob")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"description", "legacy", "score", "status"}, res.UpdatedProperties)

	stored := f.load(t, n.ID)
	assert.Equal(t, "mine", stored.Properties["description"].String())
	assert.Nil(t, stored.Inheritance["description"].Ref)
	assert.Equal(t, valueobjects.AlwaysInherit, stored.Inheritance["score"].InheritanceType)
	assert.Equal(t, "P", stored.Inheritance["score"].RefID())
	assert.Equal(t, "enum", stored.PropertyType["status"])
	assert.Equal(t, "P", stored.Inheritance["status"].RefID())
	assert.False(t, stored.HasProperty("legacy"))
	assert.NotContains(t, stored.Inheritance, "legacy")
	assert.NotContains(t, stored.PropertyType, "legacy")
	assert.Equal(t, []string{"bob"}, stored.ContributorsByProperty["description"])
	assert.Equal(t, []string{"alice", "bob"}, stored.Contributors)
	assert.Equal(t, []string{n.ID}, f.spy.updates)

	var modified, removed []string
	for _, e := range f.changelog.All(n.ID) {
		switch e.ChangeType {
		case entities.ChangeModifyElements:
			modified = append(modified, e.ModifiedProperty)
		case entities.ChangeRemoveProperty:
			removed = append(removed, e.ModifiedProperty)
		}
	}
	assert.Equal(t, []string{"description", "score", "status"}, modified)
	assert.Equal(t, []string{"legacy"}, removed)
}

func TestUpdateNodeProperties_Rejections(t *testing.T) {
	f := newFixture(t)
	gone := makeNode("gone", nil)
	gone.Deleted = true
	f.seed(makeNode("n", nil), gone)
	ctx := context.Background()

	_, err := f.service.UpdateNodeProperties(ctx, UpdatePropertiesRequest{
		NodeID: "gone",
		Values: map[string]valueobjects.PropertyValue{"x": valueobjects.TextValue("1")},
	}, "bob")
	assert.True(t, pkgerrors.IsInvalidState(err))

	_, err = f.service.UpdateNodeProperties(ctx, UpdatePropertiesRequest{
		NodeID: "n",
		Values: map[string]valueobjects.PropertyValue{
			entities.PropertyParts: valueobjects.CollectionsValue(links("x")),
		},
	}, "bob")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.service.UpdateNodeProperties(ctx, UpdatePropertiesRequest{
		NodeID:    "n",
		Values:    map[string]valueobjects.PropertyValue{"x": valueobjects.TextValue("1")},
		Deletions: []string{"x"},
	}, "bob")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.service.UpdateNodeProperties(ctx, UpdatePropertiesRequest{NodeID: "missing"}, "bob")
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Empty(t, f.spy.updates)
}
