// Package abstractions holds the store-agnostic query model shared by the
// document store implementations.
package abstractions

import (
	"fmt"
	"sort"
)

// QueryCriteria represents database-agnostic query parameters
type QueryCriteria struct {
	Filters []Filter
	Sort    []SortOption
	Limit   int
	Offset  int
}

// Filter represents a query filter condition
type Filter struct {
	Field    string
	Operator FilterOperator
	Value    interface{}
}

// FilterOperator defines the type of comparison
type FilterOperator string

const (
	OpEqual    FilterOperator = "eq"
	OpNotEqual FilterOperator = "ne"
	OpIn       FilterOperator = "in"
)

// SortOption defines sorting parameters
type SortOption struct {
	Field string
	Order SortOrder
}

// SortOrder defines the sorting direction
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// Where starts a criteria with a single equality filter.
func Where(field string, value interface{}) QueryCriteria {
	return QueryCriteria{}.And(field, OpEqual, value)
}

// And returns a copy of c with one more filter.
func (c QueryCriteria) And(field string, op FilterOperator, value interface{}) QueryCriteria {
	out := c
	out.Filters = append(append([]Filter(nil), c.Filters...), Filter{Field: field, Operator: op, Value: value})
	return out
}

// OrderBy returns a copy of c sorted by field.
func (c QueryCriteria) OrderBy(field string, order SortOrder) QueryCriteria {
	out := c
	out.Sort = append(append([]SortOption(nil), c.Sort...), SortOption{Field: field, Order: order})
	return out
}

// Page returns a copy of c with offset and limit set.
func (c QueryCriteria) Page(offset, limit int) QueryCriteria {
	out := c
	out.Offset = offset
	out.Limit = limit
	return out
}

// WithoutPaging drops offset, limit and sort, as used for counting.
func (c QueryCriteria) WithoutPaging() QueryCriteria {
	return QueryCriteria{Filters: c.Filters}
}

// Validate rejects operators the stores cannot evaluate.
func (c QueryCriteria) Validate() error {
	for _, f := range c.Filters {
		switch f.Operator {
		case OpEqual, OpNotEqual:
		case OpIn:
			if _, ok := f.Value.([]interface{}); !ok {
				return fmt.Errorf("filter %q: %s requires []interface{}", f.Field, f.Operator)
			}
		default:
			return fmt.Errorf("filter %q: unsupported operator %q", f.Field, f.Operator)
		}
	}
	if c.Offset < 0 || c.Limit < 0 {
		return fmt.Errorf("offset and limit must not be negative")
	}
	return nil
}

// Matches evaluates every filter against a document through lookup, which returns the
// value of a field and whether the document has it. A missing field equals nothing.
func (c QueryCriteria) Matches(lookup func(field string) (interface{}, bool)) bool {
	for _, f := range c.Filters {
		v, ok := lookup(f.Field)
		switch f.Operator {
		case OpEqual:
			if !ok || v != f.Value {
				return false
			}
		case OpNotEqual:
			if ok && v == f.Value {
				return false
			}
		case OpIn:
			if !ok || !contains(f.Value, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func contains(list interface{}, v interface{}) bool {
	items, _ := list.([]interface{})
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// SortStrings orders items by the string keys key returns for each sort option,
// falling back to id order so results are stable.
func SortStrings[T any](items []T, sorts []SortOption, key func(item T, field string) string, id func(item T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, s := range sorts {
			a, b := key(items[i], s.Field), key(items[j], s.Field)
			if a == b {
				continue
			}
			if s.Order == SortDescending {
				return a > b
			}
			return a < b
		}
		return id(items[i]) < id(items[j])
	})
}

// Window applies offset and limit to n items and returns the half-open range to keep.
// A zero limit keeps everything after offset.
func Window(n, offset, limit int) (start, end int) {
	if offset > n {
		offset = n
	}
	end = n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

// VersionedEntity carries the optimistic-locking version of a stored document
type VersionedEntity struct {
	Version int64
}
