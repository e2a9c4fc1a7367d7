package validators

import (
	"strings"

	"ontology/domain/core/entities"
	"ontology/domain/core/valueobjects"
	pkgerrors "ontology/pkg/errors"
)

// Relationship set names used in duplicate reports.
const (
	SetGeneralizations = "generalizations"
	SetSpecializations = "specializations"
	SetParts           = "parts"
	SetIsPartOf        = "isPartOf"
)

// DuplicateReport lists repeated ids per relationship set, keyed by collection name.
type DuplicateReport struct {
	Valid           bool
	Generalizations map[string][]string
	Specializations map[string][]string
	Parts           map[string][]string
	IsPartOf        map[string][]string
}

// Err converts an invalid report into a validation error; a valid report yields nil.
func (r DuplicateReport) Err() error {
	if r.Valid {
		return nil
	}
	return pkgerrors.NewDuplicateReferenceError(map[string]map[string][]string{
		SetGeneralizations: r.Generalizations,
		SetSpecializations: r.Specializations,
		SetParts:           r.Parts,
		SetIsPartOf:        r.IsPartOf,
	})
}

// DuplicateValidator checks relationship sets for repeated references.
type DuplicateValidator struct{}

func NewDuplicateValidator() *DuplicateValidator {
	return &DuplicateValidator{}
}

// Validate implements ports.DuplicateValidator
func (DuplicateValidator) Validate(set entities.RelationshipSet) DuplicateReport {
	return ValidateNoDuplicateNodeIDs(set)
}

// ValidateNoDuplicateNodeIDs scans the four relationship sets.
func ValidateNoDuplicateNodeIDs(set entities.RelationshipSet) DuplicateReport {
	report := DuplicateReport{
		Generalizations: DetectDuplicateNodeIDs(set.Generalizations),
		Specializations: DetectDuplicateNodeIDs(set.Specializations),
		Parts:           DetectDuplicateNodeIDs(set.Parts),
		IsPartOf:        DetectDuplicateNodeIDs(set.IsPartOf),
	}
	report.Valid = len(report.Generalizations) == 0 &&
		len(report.Specializations) == 0 &&
		len(report.Parts) == 0 &&
		len(report.IsPartOf) == 0
	return report
}

// DetectDuplicateNodeIDs returns, per collection name, each id seen more than once.
// An id is recorded at its second occurrence only. Blank names report under "main";
// two inputs sharing a name are checked as one collection.
func DetectDuplicateNodeIDs(collections valueobjects.Collections) map[string][]string {
	result := make(map[string][]string)
	counts := make(map[string]map[string]int)

	for _, c := range collections {
		name := c.CollectionName
		if strings.TrimSpace(name) == "" {
			name = valueobjects.MainCollection
		}
		if counts[name] == nil {
			counts[name] = make(map[string]int)
		}
		for _, n := range c.Nodes {
			if n.ID == "" {
				continue
			}
			counts[name][n.ID]++
			if counts[name][n.ID] == 2 {
				result[name] = append(result[name], n.ID)
			}
		}
	}
	return result
}
