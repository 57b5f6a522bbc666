package capsule

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Content is the typed payload of a capsule. Each capsule type has its own
// content variant with its own validated schema, so a paper payload can never
// be silently read as an experiment record.
type Content interface {
	// Kind returns the capsule type this content variant belongs to.
	Kind() Type

	// Text returns the searchable text of the payload, used for
	// free-text search over capsule content.
	Text() string

	// Validate checks the variant's required fields.
	Validate() error
}

// RouteStage is a single stage in a technical route.
type RouteStage struct {
	// Order is the 1-based position of the stage.
	Order int `json:"order"`

	// Title is a short stage name.
	Title string `json:"title"`

	// Detail describes the work in this stage.
	Detail string `json:"detail,omitempty"`
}

// TechnicalRoute is the content variant for technical_route capsules.
type TechnicalRoute struct {
	// Overview summarizes the route.
	Overview string `json:"overview"`

	// Stages are the ordered stages of the route.
	Stages []RouteStage `json:"stages,omitempty"`
}

// Kind returns TypeTechnicalRoute.
func (c TechnicalRoute) Kind() Type { return TypeTechnicalRoute }

// Text returns the searchable text of the route.
func (c TechnicalRoute) Text() string {
	parts := []string{c.Overview}
	for _, s := range c.Stages {
		parts = append(parts, s.Title, s.Detail)
	}
	return strings.Join(parts, "\n")
}

// Validate checks that the route has an overview and well-ordered stages.
func (c TechnicalRoute) Validate() error {
	if c.Overview == "" {
		return fmt.Errorf("technical route overview is required")
	}
	for i, s := range c.Stages {
		if s.Order < 1 {
			return fmt.Errorf("stage at index %d: order must be >= 1", i)
		}
		if s.Title == "" {
			return fmt.Errorf("stage at index %d: title is required", i)
		}
	}
	return nil
}

// Paper is the content variant for paper capsules.
type Paper struct {
	// Abstract is the paper abstract.
	Abstract string `json:"abstract"`

	// DOI is the digital object identifier, if any.
	DOI string `json:"doi,omitempty"`

	// Venue is the journal or conference.
	Venue string `json:"venue,omitempty"`

	// Year is the publication year.
	Year int `json:"year,omitempty"`
}

// Kind returns TypePaper.
func (c Paper) Kind() Type { return TypePaper }

// Text returns the searchable text of the paper.
func (c Paper) Text() string {
	return strings.Join([]string{c.Abstract, c.Venue, c.DOI}, "\n")
}

// Validate checks that the paper has an abstract.
func (c Paper) Validate() error {
	if c.Abstract == "" {
		return fmt.Errorf("paper abstract is required")
	}
	return nil
}

// Case is the content variant for case capsules.
type Case struct {
	// Background describes the problem context.
	Background string `json:"background"`

	// Approach describes what was done.
	Approach string `json:"approach,omitempty"`

	// Outcome describes the result.
	Outcome string `json:"outcome,omitempty"`
}

// Kind returns TypeCase.
func (c Case) Kind() Type { return TypeCase }

// Text returns the searchable text of the case.
func (c Case) Text() string {
	return strings.Join([]string{c.Background, c.Approach, c.Outcome}, "\n")
}

// Validate checks that the case has a background.
func (c Case) Validate() error {
	if c.Background == "" {
		return fmt.Errorf("case background is required")
	}
	return nil
}

// ExperimentData is the content variant for experiment_data capsules.
type ExperimentData struct {
	// Procedure describes the experimental procedure.
	Procedure string `json:"procedure"`

	// Metrics maps metric names to measured values.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// DatasetURI points at the backing dataset, if any.
	DatasetURI string `json:"dataset_uri,omitempty"`
}

// Kind returns TypeExperimentData.
func (c ExperimentData) Kind() Type { return TypeExperimentData }

// Text returns the searchable text of the experiment record.
func (c ExperimentData) Text() string {
	parts := []string{c.Procedure, c.DatasetURI}
	for name := range c.Metrics {
		parts = append(parts, name)
	}
	return strings.Join(parts, "\n")
}

// Validate checks that the experiment record has a procedure.
func (c ExperimentData) Validate() error {
	if c.Procedure == "" {
		return fmt.Errorf("experiment procedure is required")
	}
	return nil
}

// Knowledge is the content variant for knowledge capsules.
type Knowledge struct {
	// Body is the knowledge text.
	Body string `json:"body"`

	// References are related capsule or external identifiers.
	References []string `json:"references,omitempty"`
}

// Kind returns TypeKnowledge.
func (c Knowledge) Kind() Type { return TypeKnowledge }

// Text returns the searchable text of the entry.
func (c Knowledge) Text() string { return c.Body }

// Validate checks that the entry has a body.
func (c Knowledge) Validate() error {
	if c.Body == "" {
		return fmt.Errorf("knowledge body is required")
	}
	return nil
}

// contentEnvelope is the wire shape of a Content value: the variant kind
// plus the variant payload. The kind tag selects the concrete type on decode.
type contentEnvelope struct {
	Kind    Type            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalContent encodes a content variant with its kind tag.
func MarshalContent(c Content) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("content is nil")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s content: %w", c.Kind(), err)
	}
	return json.Marshal(contentEnvelope{Kind: c.Kind(), Payload: payload})
}

// UnmarshalContent decodes a tagged content envelope into the concrete
// variant selected by its kind tag.
func UnmarshalContent(data []byte) (Content, error) {
	var env contentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode content envelope: %w", err)
	}

	var c Content
	switch env.Kind {
	case TypeTechnicalRoute:
		c = &TechnicalRoute{}
	case TypePaper:
		c = &Paper{}
	case TypeCase:
		c = &Case{}
	case TypeExperimentData:
		c = &ExperimentData{}
	case TypeKnowledge:
		c = &Knowledge{}
	default:
		return nil, fmt.Errorf("unknown content kind: %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, c); err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", env.Kind, err)
	}

	return deref(c), nil
}

// deref returns the value form of the decoded variant so that decoded
// content compares equal to the value types callers construct.
func deref(c Content) Content {
	switch v := c.(type) {
	case *TechnicalRoute:
		return *v
	case *Paper:
		return *v
	case *Case:
		return *v
	case *ExperimentData:
		return *v
	case *Knowledge:
		return *v
	default:
		return c
	}
}
