package valueobjects

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "ontology/pkg/errors"
)

// NewNodeID allocates a fresh identifier for a node document.
func NewNodeID() string {
	return uuid.NewString()
}

// ValidateNodeID checks that an identifier supplied by a caller can address a document.
// Identifiers are opaque: ids imported from older stores are not UUIDs.
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.NewValidationError("node ID cannot be empty")
	}
	if strings.ContainsAny(id, "/#") {
		return pkgerrors.NewValidationError("node ID contains reserved characters")
	}
	return nil
}
