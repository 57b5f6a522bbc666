// Package score implements the DATM quality model: four sub-scores
// (Truth, Goodness, Beauty, Intelligence), each constrained to [0,100],
// with a derived overall score that is always the arithmetic mean of the
// four and is recomputed on every read.
//
// # Computation
//
// Compute validates and builds a score; Overall returns the full-precision
// mean; Display rounds to one decimal place for presentation:
//
//	s, err := score.Compute(95, 75, 80, 90)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(s.Display()) // 85.0
//
// # Ranking
//
// Compare produces a deterministic descending ranking: overall first, then
// truth, then goodness, then original order. The same input always yields
// the same output.
//
// # Factor breakdowns
//
// External evaluation pipelines may attach per-dimension factor breakdowns
// via Recompute. Breakdowns are validated and stored for explainability but
// never influence the overall score.
package score
