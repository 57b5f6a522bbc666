package store

import (
	"strings"
	"unicode"

	"github.com/bcic-ai/knowledge-sdk/capsule"
)

// stopwords are common tokens excluded from the keyword index. They add
// index volume without narrowing anything.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "in": {},
	"is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// tokenize lowercases the text and splits it into keyword tokens on any
// non-letter, non-digit rune, dropping stopwords.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// keywordIndex is an inverted index from keyword token to capsule IDs.
// It narrows the candidate set for free-text search; the substring match
// in Filter.Matches remains the contract.
type keywordIndex struct {
	byToken map[string]map[string]struct{}
	byDoc   map[string][]string
}

func newKeywordIndex() *keywordIndex {
	return &keywordIndex{
		byToken: make(map[string]map[string]struct{}),
		byDoc:   make(map[string][]string),
	}
}

// index replaces the indexed tokens for the given capsule.
func (i *keywordIndex) index(id, text string) {
	i.remove(id)

	tokens := tokenize(text)
	i.byDoc[id] = tokens
	for _, tok := range tokens {
		ids, ok := i.byToken[tok]
		if !ok {
			ids = make(map[string]struct{})
			i.byToken[tok] = ids
		}
		ids[id] = struct{}{}
	}
}

// remove drops the capsule from the index.
func (i *keywordIndex) remove(id string) {
	for _, tok := range i.byDoc[id] {
		ids := i.byToken[tok]
		delete(ids, id)
		if len(ids) == 0 {
			delete(i.byToken, tok)
		}
	}
	delete(i.byDoc, id)
}

// candidates returns the IDs that can possibly contain the query as a
// substring, or ok=false when the query yields no usable tokens and the
// caller must scan everything.
//
// Every separator-free run of a matching substring lies inside a single
// indexed token, so collecting the IDs of tokens containing each query
// token and intersecting across query tokens yields a superset of the
// true matches.
func (i *keywordIndex) candidates(query string) (map[string]struct{}, bool) {
	qtokens := tokenize(query)
	if len(qtokens) == 0 {
		return nil, false
	}

	var result map[string]struct{}
	for _, qt := range qtokens {
		// Stopwords are not indexed, so a query token that could hide
		// inside one forces a full scan.
		for sw := range stopwords {
			if strings.Contains(sw, qt) {
				return nil, false
			}
		}

		ids := make(map[string]struct{})
		for tok, docs := range i.byToken {
			if !strings.Contains(tok, qt) {
				continue
			}
			for id := range docs {
				ids[id] = struct{}{}
			}
		}
		if result == nil {
			result = ids
			continue
		}
		for id := range result {
			if _, ok := ids[id]; !ok {
				delete(result, id)
			}
		}
	}
	return result, true
}

// matchesQuery reports whether the capsule's title or content text contains
// the query, case-insensitively.
func matchesQuery(c *capsule.Capsule, query string) bool {
	return strings.Contains(strings.ToLower(c.SearchText()), strings.ToLower(query))
}
