package intersect

import "sort"

// Stats describes how an intersection was computed.
type Stats struct {
	// Inputs is the number of sequences handed to the intersector.
	Inputs int
	// Consumed is how many of them were read before the running set was
	// exhausted. It equals Inputs unless the early exit fired.
	Consumed int
}

// Intersect returns the sorted tokens that appear in every sequence.
func Intersect(seqs [][]string) []string {
	common, _ := IntersectStats(seqs)
	return common
}

// IntersectStats is Intersect plus bookkeeping about the early exit.
//
// The running set is seeded from the first sequence and narrowed by each
// later one in order. Once it is empty the remaining sequences cannot change
// the result, so they are skipped.
func IntersectStats(seqs [][]string) ([]string, Stats) {
	stats := Stats{Inputs: len(seqs)}
	if len(seqs) == 0 {
		return []string{}, stats
	}

	common := toSet(seqs[0])
	stats.Consumed = 1

	for _, seq := range seqs[1:] {
		if len(common) == 0 {
			break
		}
		current := toSet(seq)
		for tok := range common {
			if _, ok := current[tok]; !ok {
				delete(common, tok)
			}
		}
		stats.Consumed++
	}

	out := make([]string, 0, len(common))
	for tok := range common {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out, stats
}

func toSet(seq []string) map[string]struct{} {
	set := make(map[string]struct{}, len(seq))
	for _, tok := range seq {
		set[tok] = struct{}{}
	}
	return set
}
