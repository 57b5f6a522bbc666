package graph

import (
	"fmt"
	"reflect"
)

// Common relationship types. The type is a free-form case-sensitive
// string; these constants only name the conventional ones.
const (
	RelUses           = "USES"
	RelDerivedFrom    = "DERIVED_FROM"
	RelAffiliatedWith = "AFFILIATED_WITH"
	RelCites          = "CITES"
	RelDevelops       = "DEVELOPS"
)

// PropConfidence is the optional numeric confidence property,
// constrained to [0,1].
const PropConfidence = "confidence"

// Relationship is a directed typed edge from source to target. There is
// no implicit reverse edge. Multiple relationships may exist between the
// same ordered pair as long as they differ in type or properties.
type Relationship struct {
	// ID is the unique relationship identifier.
	ID string `json:"id"`

	// SourceID and TargetID are the endpoint node identifiers.
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`

	// Type is the free-form, case-sensitive relationship type.
	Type string `json:"type"`

	// Properties holds edge attributes, including the optional
	// confidence value.
	Properties map[string]any `json:"properties,omitempty"`

	// Seq is the index-assigned insertion sequence. Traversals visit
	// neighbors in Seq order, which makes path search deterministic and
	// lets a hydrated graph traverse identically to the original.
	Seq int64 `json:"seq"`
}

// Confidence returns the confidence property and whether it is set.
func (r *Relationship) Confidence() (float64, bool) {
	v, ok := r.Properties[PropConfidence]
	if !ok {
		return 0, false
	}
	f, ok := toFloat(v)
	return f, ok
}

// Validate checks the relationship's required fields and the confidence
// range.
func (r *Relationship) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("relationship endpoints are required")
	}
	if r.Type == "" {
		return fmt.Errorf("relationship type is required")
	}
	if v, ok := r.Properties[PropConfidence]; ok {
		f, numeric := toFloat(v)
		if !numeric {
			return fmt.Errorf("confidence must be numeric, got %T", v)
		}
		if f < 0 || f > 1 {
			return fmt.Errorf("confidence must be between 0 and 1, got %g", f)
		}
	}
	return nil
}

// Clone returns a copy of the relationship with its own properties map.
func (r *Relationship) Clone() *Relationship {
	out := *r
	if r.Properties != nil {
		out.Properties = make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			out.Properties[k] = v
		}
	}
	return &out
}

// sameEdge reports whether the relationship duplicates (source, target,
// type, properties). Duplicate adds are idempotent no-ops.
func (r *Relationship) sameEdge(sourceID, targetID, relType string, props map[string]any) bool {
	if r.SourceID != sourceID || r.TargetID != targetID || r.Type != relType {
		return false
	}
	if len(r.Properties) == 0 && len(props) == 0 {
		return true
	}
	return reflect.DeepEqual(r.Properties, props)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
