package score

import (
	"fmt"
	"math"

	"github.com/bcic-ai/knowledge-sdk/coreerr"
)

// Dimension names the four DATM quality dimensions.
type Dimension string

const (
	// DimensionTruth measures factual correctness.
	DimensionTruth Dimension = "truth"

	// DimensionGoodness measures safety and ethical soundness.
	DimensionGoodness Dimension = "goodness"

	// DimensionBeauty measures clarity and presentation quality.
	DimensionBeauty Dimension = "beauty"

	// DimensionIntelligence measures practical utility.
	DimensionIntelligence Dimension = "intelligence"
)

// IsValid returns true if the dimension is one of the four DATM dimensions.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionTruth, DimensionGoodness, DimensionBeauty, DimensionIntelligence:
		return true
	default:
		return false
	}
}

// String returns the string representation of the dimension.
func (d Dimension) String() string {
	return string(d)
}

// AllDimensions returns the four DATM dimensions in canonical order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionTruth,
		DimensionGoodness,
		DimensionBeauty,
		DimensionIntelligence,
	}
}

// Breakdown is an optional per-dimension factor breakdown supplied by an
// external evaluation pipeline. It maps a dimension to named factor values.
// Breakdowns exist for explainability only; the overall score is always
// derived from the four sub-scores alone.
type Breakdown map[Dimension]map[string]float64

// DATMScore holds the four DATM sub-scores, each constrained to [0,100].
// The overall score is never stored: it is recomputed from the sub-scores
// on every read so it can never go stale.
type DATMScore struct {
	// Truth is the factual-correctness sub-score.
	Truth float64 `json:"truth"`

	// Goodness is the safety sub-score.
	Goodness float64 `json:"goodness"`

	// Beauty is the presentation sub-score.
	Beauty float64 `json:"beauty"`

	// Intelligence is the utility sub-score.
	Intelligence float64 `json:"intelligence"`

	// Factors is the optional per-dimension factor breakdown,
	// used only for explainability.
	Factors Breakdown `json:"factors,omitempty"`
}

// Inputs carries the four raw sub-scores for score computation.
type Inputs struct {
	Truth        float64 `json:"truth"`
	Goodness     float64 `json:"goodness"`
	Beauty       float64 `json:"beauty"`
	Intelligence float64 `json:"intelligence"`
}

// Compute validates the inputs and returns a DATMScore.
// Returns this result:
//
//	score, err := score.Compute(95, 75, 80, 90)
//	// score.Overall() == 85.0
//
// It fails with a validation error if any input is outside [0,100]
// or is not a finite number.
func Compute(truth, goodness, beauty, intelligence float64) (DATMScore, error) {
	inputs := map[Dimension]float64{
		DimensionTruth:        truth,
		DimensionGoodness:     goodness,
		DimensionBeauty:       beauty,
		DimensionIntelligence: intelligence,
	}

	for _, dim := range AllDimensions() {
		if err := validateSubScore(dim, inputs[dim]); err != nil {
			return DATMScore{}, err
		}
	}

	return DATMScore{
		Truth:        truth,
		Goodness:     goodness,
		Beauty:       beauty,
		Intelligence: intelligence,
	}, nil
}

// Compute builds a DATMScore from the inputs, validating each sub-score.
func (in Inputs) Compute() (DATMScore, error) {
	return Compute(in.Truth, in.Goodness, in.Beauty, in.Intelligence)
}

// validateSubScore checks a single sub-score for range and finiteness.
func validateSubScore(dim Dimension, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return coreerr.NewValidationError("score.Compute",
			fmt.Errorf("%s must be a finite number", dim))
	}
	if v < 0 || v > 100 {
		return coreerr.NewValidationError("score.Compute",
			fmt.Errorf("%s must be between 0 and 100, got %g", dim, v))
	}
	return nil
}

// Validate checks that all sub-scores are finite and within [0,100],
// and that any factor breakdown references valid dimensions with
// finite factor values.
func (s DATMScore) Validate() error {
	inputs := map[Dimension]float64{
		DimensionTruth:        s.Truth,
		DimensionGoodness:     s.Goodness,
		DimensionBeauty:       s.Beauty,
		DimensionIntelligence: s.Intelligence,
	}
	for _, dim := range AllDimensions() {
		if err := validateSubScore(dim, inputs[dim]); err != nil {
			return err
		}
	}

	for dim, factors := range s.Factors {
		if !dim.IsValid() {
			return coreerr.NewValidationError("score.Validate",
				fmt.Errorf("unknown dimension in factor breakdown: %s", dim))
		}
		for name, v := range factors {
			if name == "" {
				return coreerr.NewValidationError("score.Validate",
					fmt.Errorf("empty factor name for dimension %s", dim))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return coreerr.NewValidationError("score.Validate",
					fmt.Errorf("factor %s/%s must be a finite number", dim, name))
			}
		}
	}

	return nil
}

// Overall returns the arithmetic mean of the four sub-scores at full
// precision. It is a pure function of the sub-scores and is recomputed
// on every call.
func (s DATMScore) Overall() float64 {
	return (s.Truth + s.Goodness + s.Beauty + s.Intelligence) / 4
}

// Display returns the overall score rounded to one decimal place.
// Ranking and comparison always use the full-precision Overall value;
// Display exists only for presentation.
func (s DATMScore) Display() float64 {
	return math.Round(s.Overall()*10) / 10
}

// WithFactors returns a copy of the score with the factor breakdown for one
// dimension set. The breakdown does not influence Overall.
func (s DATMScore) WithFactors(dim Dimension, factors map[string]float64) DATMScore {
	out := s
	out.Factors = make(Breakdown, len(s.Factors)+1)
	for d, f := range s.Factors {
		out.Factors[d] = f
	}
	out.Factors[dim] = factors
	return out
}

// Recompute validates a factor breakdown supplied by an external evaluation
// pipeline and attaches it to the score. The core only validates and
// aggregates; it never derives factor weights itself, and the overall score
// is unchanged by the breakdown.
func Recompute(s DATMScore, breakdown Breakdown) (DATMScore, error) {
	out := s
	out.Factors = breakdown
	if err := out.Validate(); err != nil {
		return DATMScore{}, err
	}
	return out, nil
}
