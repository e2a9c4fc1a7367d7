package valueobjects

import (
	"encoding/json"
)

// MainCollection is the collection every relationship set is guaranteed to contain.
const MainCollection = "main"

// LinkNode is a reference from one node to another inside a collection.
type LinkNode struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Collection is a named grouping of node references.
type Collection struct {
	CollectionName string     `json:"collectionName"`
	Nodes          []LinkNode `json:"nodes"`
}

// UnmarshalJSON decodes a collection and coerces a missing or null node list to empty.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var raw struct {
		CollectionName string     `json:"collectionName"`
		Nodes          []LinkNode `json:"nodes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.CollectionName = raw.CollectionName
	c.Nodes = raw.Nodes
	if c.Nodes == nil {
		c.Nodes = []LinkNode{}
	}
	return nil
}

// Collections is an ordered list of named groupings.
type Collections []Collection

// DefaultCollections returns the canonical empty shape: one empty main collection.
func DefaultCollections() Collections {
	return Collections{{CollectionName: MainCollection, Nodes: []LinkNode{}}}
}

// IDs returns every referenced id in order of appearance, without repeats.
func (cs Collections) IDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, c := range cs {
		for _, n := range c.Nodes {
			if n.ID == "" || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Contains reports whether id is referenced by any collection.
func (cs Collections) Contains(id string) bool {
	for _, c := range cs {
		for _, n := range c.Nodes {
			if n.ID == id {
				return true
			}
		}
	}
	return false
}

// FirstID returns the first referenced id, or "" when there is none.
func (cs Collections) FirstID() string {
	for _, c := range cs {
		for _, n := range c.Nodes {
			if n.ID != "" {
				return n.ID
			}
		}
	}
	return ""
}

// Clone returns a deep copy; a nil receiver clones to nil.
func (cs Collections) Clone() Collections {
	if cs == nil {
		return nil
	}
	out := make(Collections, len(cs))
	for i, c := range cs {
		nodes := make([]LinkNode, len(c.Nodes))
		copy(nodes, c.Nodes)
		out[i] = Collection{CollectionName: c.CollectionName, Nodes: nodes}
	}
	return out
}

// WithLink returns a copy with id appended to the main collection, unless id is already
// referenced anywhere. The main collection is created when missing.
func (cs Collections) WithLink(id, title string) Collections {
	out := cs.Clone()
	if out.Contains(id) {
		return out
	}
	for i := range out {
		if out[i].CollectionName == MainCollection {
			out[i].Nodes = append(out[i].Nodes, LinkNode{ID: id, Title: title})
			return out
		}
	}
	return append(Collections{{CollectionName: MainCollection, Nodes: []LinkNode{{ID: id, Title: title}}}}, out...)
}

// WithoutLink returns a copy with every reference to id removed from all collections.
// Collections themselves are kept even when they become empty.
func (cs Collections) WithoutLink(id string) Collections {
	out := cs.Clone()
	for i := range out {
		kept := out[i].Nodes[:0]
		for _, n := range out[i].Nodes {
			if n.ID != id {
				kept = append(kept, n)
			}
		}
		out[i].Nodes = kept
	}
	return out
}

// Flatten merges every collection into a single main collection, dropping repeated ids.
func (cs Collections) Flatten() Collections {
	seen := make(map[string]bool)
	nodes := make([]LinkNode, 0)
	for _, c := range cs {
		for _, n := range c.Nodes {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			nodes = append(nodes, n)
		}
	}
	return Collections{{CollectionName: MainCollection, Nodes: nodes}}
}

// Union returns cs extended with every link of other that cs does not yet reference.
// Links from a named collection in other land in the same-named collection of the result.
func (cs Collections) Union(other Collections) Collections {
	out := cs.Clone()
	if out == nil {
		out = Collections{}
	}
	for _, oc := range other {
		idx := -1
		for i := range out {
			if out[i].CollectionName == oc.CollectionName {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, Collection{CollectionName: oc.CollectionName, Nodes: []LinkNode{}})
			idx = len(out) - 1
		}
		for _, n := range oc.Nodes {
			if !out.Contains(n.ID) {
				out[idx].Nodes = append(out[idx].Nodes, n)
			}
		}
	}
	return out
}

// Equal compares names, order and referenced ids. Titles are ignored.
func (cs Collections) Equal(other Collections) bool {
	if len(cs) != len(other) {
		return false
	}
	for i := range cs {
		if cs[i].CollectionName != other[i].CollectionName || len(cs[i].Nodes) != len(other[i].Nodes) {
			return false
		}
		for j := range cs[i].Nodes {
			if cs[i].Nodes[j].ID != other[i].Nodes[j].ID {
				return false
			}
		}
	}
	return true
}
