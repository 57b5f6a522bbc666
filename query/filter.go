package query

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/bcic-ai/knowledge-sdk/capsule"
	"github.com/bcic-ai/knowledge-sdk/store"
)

// Filter extends the store filter with an optional CEL expression.
//
// The expression is evaluated against capsule attributes after the
// structured conditions and must yield a boolean. Available variables:
//
//	title, kind, status, institution, created_by  (string)
//	tags                                          (list of string)
//	truth, goodness, beauty, intelligence, overall (double)
//	version                                       (int)
//
// Example:
//
//	query.Filter{
//		Filter:     store.Filter{MinTruth: 90},
//		Expression: `overall >= 80.0 && "solar" in tags`,
//	}
type Filter struct {
	store.Filter

	// Expression is an optional CEL predicate over capsule attributes.
	Expression string `json:"expression,omitempty"`
}

// newCelEnv declares the capsule attributes visible to filter expressions.
func newCelEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("title", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("institution", cel.StringType),
		cel.Variable("created_by", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("truth", cel.DoubleType),
		cel.Variable("goodness", cel.DoubleType),
		cel.Variable("beauty", cel.DoubleType),
		cel.Variable("intelligence", cel.DoubleType),
		cel.Variable("overall", cel.DoubleType),
		cel.Variable("version", cel.IntType),
	)
}

// compileExpression compiles a CEL predicate and checks it returns a bool.
func compileExpression(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", iss.Err())
	}
	if ast.OutputType().String() != cel.BoolType.String() {
		return nil, fmt.Errorf("filter expression must evaluate to a boolean, got %s", ast.OutputType())
	}
	return env.Program(ast)
}

// celActivation maps a capsule onto the expression variables.
func celActivation(c *capsule.Capsule) map[string]any {
	tags := make([]string, len(c.Metadata.Tags))
	copy(tags, c.Metadata.Tags)

	return map[string]any{
		"title":        c.Title,
		"kind":         c.Type.String(),
		"status":       c.Status.String(),
		"institution":  c.Metadata.Institution,
		"created_by":   c.CreatedBy,
		"tags":         tags,
		"truth":        c.Score.Truth,
		"goodness":     c.Score.Goodness,
		"beauty":       c.Score.Beauty,
		"intelligence": c.Score.Intelligence,
		"overall":      c.Score.Overall(),
		"version":      c.Version,
	}
}
