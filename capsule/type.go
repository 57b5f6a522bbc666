package capsule

import "fmt"

// Type classifies the kind of knowledge a capsule carries.
type Type string

const (
	// TypeTechnicalRoute is a staged technical route or roadmap.
	TypeTechnicalRoute Type = "technical_route"

	// TypePaper is a published or internal paper.
	TypePaper Type = "paper"

	// TypeCase is an applied case study.
	TypeCase Type = "case"

	// TypeExperimentData is a structured experiment record.
	TypeExperimentData Type = "experiment_data"

	// TypeKnowledge is a free-form knowledge entry.
	TypeKnowledge Type = "knowledge"
)

// IsValid returns true if the capsule type is valid.
func (t Type) IsValid() bool {
	switch t {
	case TypeTechnicalRoute, TypePaper, TypeCase, TypeExperimentData, TypeKnowledge:
		return true
	default:
		return false
	}
}

// String returns the string representation of the capsule type.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a string into a Type value.
// Returns an error if the string is not a valid capsule type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid capsule type: %s", s)
	}
	return t, nil
}

// AllTypes returns all valid capsule types.
func AllTypes() []Type {
	return []Type{
		TypeTechnicalRoute,
		TypePaper,
		TypeCase,
		TypeExperimentData,
		TypeKnowledge,
	}
}
