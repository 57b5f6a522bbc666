package score

import "sort"

// Compare ranks the given scores in descending order by their overall score.
// Ties are broken by truth, then goodness; scores still tied after that keep
// their original relative order (stable sort), so repeated calls with
// identical input always produce identical output.
//
// The input slice is not modified; a new slice is returned.
func Compare(scores []DATMScore) []DATMScore {
	ranked := make([]DATMScore, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		oi, oj := ranked[i].Overall(), ranked[j].Overall()
		if oi != oj {
			return oi > oj
		}
		if ranked[i].Truth != ranked[j].Truth {
			return ranked[i].Truth > ranked[j].Truth
		}
		if ranked[i].Goodness != ranked[j].Goodness {
			return ranked[i].Goodness > ranked[j].Goodness
		}
		return false
	})

	return ranked
}

// Less reports whether a ranks strictly before b under the Compare ordering.
// It is exported so the store can rank capsules with the exact same rules.
func Less(a, b DATMScore) bool {
	oa, ob := a.Overall(), b.Overall()
	if oa != ob {
		return oa > ob
	}
	if a.Truth != b.Truth {
		return a.Truth > b.Truth
	}
	if a.Goodness != b.Goodness {
		return a.Goodness > b.Goodness
	}
	return false
}
