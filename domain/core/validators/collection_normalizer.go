package validators

import (
	"strings"

	"ontology/domain/core/valueobjects"
)

// CollectionNormalizer canonicalizes relationship groupings.
type CollectionNormalizer struct{}

// NewCollectionNormalizer creates the default normalizer
func NewCollectionNormalizer() *CollectionNormalizer {
	return &CollectionNormalizer{}
}

// Normalize implements ports.CollectionNormalizer
func (CollectionNormalizer) Normalize(collections valueobjects.Collections) valueobjects.Collections {
	return NormalizeCollection(collections)
}

// NormalizeCollection returns the canonical form of collections:
//   - empty input yields a single empty "main" collection
//   - nil node lists become empty lists
//   - blank or whitespace-only names are folded into "main"
//   - collections sharing a name are merged, keeping first-seen order
//   - "main" is always present; it is appended when no input supplied it
//
// Ids repeated inside one input collection are kept so that duplicate validation still
// sees them; merging skips ids already contributed by an earlier input of the same name.
func NormalizeCollection(collections valueobjects.Collections) valueobjects.Collections {
	if len(collections) == 0 {
		return valueobjects.DefaultCollections()
	}

	result := make(valueobjects.Collections, 0, len(collections)+1)
	index := make(map[string]int, len(collections))
	seen := make(map[string]map[string]bool, len(collections))

	for _, c := range collections {
		name := strings.TrimSpace(c.CollectionName)
		if name == "" {
			name = valueobjects.MainCollection
		} else {
			name = c.CollectionName
		}

		i, ok := index[name]
		if !ok {
			i = len(result)
			index[name] = i
			seen[name] = make(map[string]bool)
			result = append(result, valueobjects.Collection{CollectionName: name, Nodes: []valueobjects.LinkNode{}})
		}

		earlier := seen[name]
		contributed := make(map[string]bool, len(c.Nodes))
		for _, n := range c.Nodes {
			if n.ID == "" || earlier[n.ID] {
				continue
			}
			contributed[n.ID] = true
			result[i].Nodes = append(result[i].Nodes, n)
		}
		for id := range contributed {
			earlier[id] = true
		}
	}

	if _, ok := index[valueobjects.MainCollection]; !ok {
		result = append(result, valueobjects.Collection{CollectionName: valueobjects.MainCollection, Nodes: []valueobjects.LinkNode{}})
	}
	return result
}
