package valueobjects

import (
	"fmt"

	pkgerrors "ontology/pkg/errors"
)

// InheritanceType controls how a property flows from a parent node to its specializations.
type InheritanceType int

const (
	// InheritUnlessAlreadyOverridden copies the parent value unless the child holds its own.
	InheritUnlessAlreadyOverridden InheritanceType = iota
	// NeverInherit keeps the property local to the node that defines it.
	NeverInherit
	// AlwaysInherit forces the parent value onto the child.
	AlwaysInherit
	// InheritAfterReview marks the parent value as pending until a contributor accepts it.
	InheritAfterReview
)

var inheritanceTypeNames = map[InheritanceType]string{
	InheritUnlessAlreadyOverridden: "inheritUnlessAlreadyOverRidden",
	NeverInherit:                   "neverInherit",
	AlwaysInherit:                  "alwaysInherit",
	InheritAfterReview:             "inheritAfterReview",
}

// String returns the stored wire name.
func (t InheritanceType) String() string {
	if name, ok := inheritanceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("InheritanceType(%d)", int(t))
}

// IsValid reports whether t is one of the four known variants.
func (t InheritanceType) IsValid() bool {
	_, ok := inheritanceTypeNames[t]
	return ok
}

// ParseInheritanceType parses a wire name. An empty string yields the default variant.
func ParseInheritanceType(s string) (InheritanceType, error) {
	if s == "" {
		return InheritUnlessAlreadyOverridden, nil
	}
	for t, name := range inheritanceTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, pkgerrors.NewValidationError(fmt.Sprintf("unknown inheritance type %q", s)).
		WithCode("INVALID_INHERITANCE_TYPE")
}

// MarshalText implements encoding.TextMarshaler
func (t InheritanceType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid inheritance type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *InheritanceType) UnmarshalText(text []byte) error {
	parsed, err := ParseInheritanceType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
