package validators

import "ontology/domain/core/valueobjects"

// CircularDetector finds nodes referenced as both generalization and specialization.
type CircularDetector struct{}

func NewCircularDetector() *CircularDetector {
	return &CircularDetector{}
}

// Detect implements ports.CircularDetector
func (CircularDetector) Detect(generalizations, specializations valueobjects.Collections) []string {
	return DetectCircularReferences(generalizations, specializations)
}

// DetectCircularReferences returns the ids present in both sets, each once, in the order
// they appear among the specializations.
func DetectCircularReferences(generalizations, specializations valueobjects.Collections) []string {
	result := []string{}
	if generalizations == nil || specializations == nil {
		return result
	}

	parents := make(map[string]bool)
	for _, id := range generalizations.IDs() {
		parents[id] = true
	}
	for _, id := range specializations.IDs() {
		if parents[id] {
			result = append(result, id)
		}
	}
	return result
}
