package services

import (
	"context"
	"sort"
	"time"

	"ontology/application/ports"
	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
)

// relation names one of the four relationship sets of a node.
type relation int

const (
	relGeneralizations relation = iota
	relSpecializations
	relParts
	relIsPartOf
)

var relationKinds = map[relation]string{
	relGeneralizations: "generalization",
	relSpecializations: "specialization",
	relParts:           "part",
	relIsPartOf:        "isPartOf",
}

// inverse is the set on the neighbour that mirrors r: a node's generalization lists
// the node among its specializations, a part lists the node as a whole.
func (r relation) inverse() relation {
	switch r {
	case relGeneralizations:
		return relSpecializations
	case relSpecializations:
		return relGeneralizations
	case relParts:
		return relIsPartOf
	default:
		return relParts
	}
}

func (r relation) read(n *entities.Node) valueobjects.Collections {
	switch r {
	case relGeneralizations:
		return n.Generalizations
	case relSpecializations:
		return n.Specializations
	case relParts:
		return n.Parts()
	default:
		return n.IsPartOf()
	}
}

// write stores cs on n and records the matching patch entry.
func (r relation) write(n *entities.Node, patch entities.NodePatch, cs valueobjects.Collections) {
	switch r {
	case relGeneralizations:
		n.Generalizations = cs
		patch.Set(entities.PathGeneralizations, cs)
	case relSpecializations:
		n.Specializations = cs
		patch.Set(entities.PathSpecializations, cs)
	case relParts:
		n.Properties[entities.PropertyParts] = valueobjects.CollectionsValue(cs)
		patch.SetRelationship(entities.PropertyParts, cs)
	default:
		n.Properties[entities.PropertyIsPartOf] = valueobjects.CollectionsValue(cs)
		patch.SetRelationship(entities.PropertyIsPartOf, cs)
	}
}

var allRelations = []relation{relGeneralizations, relSpecializations, relParts, relIsPartOf}

// relationSets maps each relation to the ids it references.
type relationSets map[relation][]string

func relationSetsOf(set entities.RelationshipSet) relationSets {
	return relationSets{
		relGeneralizations: set.Generalizations.IDs(),
		relSpecializations: set.Specializations.IDs(),
		relParts:           set.Parts.IDs(),
		relIsPartOf:        set.IsPartOf.IDs(),
	}
}

// ids returns every referenced id across all relations, without repeats.
func (rs relationSets) ids() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, r := range allRelations {
		for _, id := range rs[r] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (rs relationSets) clone() relationSets {
	out := make(relationSets, len(rs))
	for r, ids := range rs {
		out[r] = append([]string(nil), ids...)
	}
	return out
}

// readMore reads the ids not yet present in nodes and adds the ones that exist.
func readMore(ctx context.Context, tx ports.Transaction, nodes map[string]*entities.Node, ids []string) error {
	unread := make([]string, 0)
	for _, id := range ids {
		if _, ok := nodes[id]; !ok {
			unread = append(unread, id)
		}
	}
	if len(unread) == 0 {
		return nil
	}
	more, err := tx.GetAll(ctx, unread)
	if err != nil {
		return err
	}
	for id, n := range more {
		nodes[id] = n
	}
	return nil
}

// neighbourEdits accumulates back-reference changes on the neighbours read in a
// transaction. Edits to the same neighbour compose into one patch.
type neighbourEdits struct {
	nodes   map[string]*entities.Node
	patches map[string]entities.NodePatch
	counts  map[relation]int
}

func newNeighbourEdits(nodes map[string]*entities.Node) *neighbourEdits {
	return &neighbourEdits{
		nodes:   nodes,
		patches: make(map[string]entities.NodePatch),
		counts:  make(map[relation]int),
	}
}

// writable reports whether a neighbour may receive a back-reference write.
// Deleted nodes are left untouched.
func (e *neighbourEdits) writable(id string) (*entities.Node, bool) {
	n, ok := e.nodes[id]
	if !ok || n == nil || n.Deleted {
		return nil, false
	}
	return n, true
}

// link adds selfID to the set of neighbour id that mirrors r, unless it is already there.
func (e *neighbourEdits) link(id string, r relation, selfID, title string) {
	n, ok := e.writable(id)
	if !ok {
		return
	}
	target := r.inverse()
	current := target.read(n)
	if current.Contains(selfID) {
		return
	}
	target.write(n, e.patch(id), current.WithLink(selfID, title))
	e.counts[r]++
}

// unlink removes selfID from every collection of the mirroring set of neighbour id.
func (e *neighbourEdits) unlink(id string, r relation, selfID string) {
	n, ok := e.writable(id)
	if !ok {
		return
	}
	target := r.inverse()
	current := target.read(n)
	if !current.Contains(selfID) {
		return
	}
	target.write(n, e.patch(id), current.WithoutLink(selfID))
	e.counts[r]++
}

// diff links added ids and unlinks removed ones for relation r.
func (e *neighbourEdits) diff(r relation, before, after []string, selfID, title string) {
	old := make(map[string]bool, len(before))
	for _, id := range before {
		old[id] = true
	}
	next := make(map[string]bool, len(after))
	for _, id := range after {
		next[id] = true
		if !old[id] {
			e.link(id, r, selfID, title)
		}
	}
	for _, id := range before {
		if !next[id] {
			e.unlink(id, r, selfID)
		}
	}
}

func (e *neighbourEdits) patch(id string) entities.NodePatch {
	p, ok := e.patches[id]
	if !ok {
		p = entities.NodePatch{}
		e.patches[id] = p
	}
	return p
}

// touched returns the ids of every neighbour that received a write, sorted.
func (e *neighbourEdits) touched() []string {
	ids := make([]string, 0, len(e.patches))
	for id := range e.patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// flush buffers one Update per touched neighbour.
func (e *neighbourEdits) flush(tx ports.Transaction, now time.Time) error {
	for _, id := range e.touched() {
		p := e.patches[id]
		p.Set(entities.PathUpdatedAt, now)
		if err := tx.Update(id, p); err != nil {
			return err
		}
	}
	return nil
}
