package report

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// RevisionStats measures how much reflective revision changed the raw
// output, averaged over records that have both texts.
type RevisionStats struct {
	Pairs           int     `json:"pairs"`
	MeanLevenshtein float64 `json:"mean_levenshtein"`
	MeanSimilarity  float64 `json:"mean_similarity"`
}

// RevisionMagnitude computes edit distance and a 0-1 similarity for each
// (raw, revised) pair. Identical texts score similarity 1; two empty
// texts are skipped.
func RevisionMagnitude(pairs [][2]string) *RevisionStats {
	dmp := diffmatchpatch.New()
	out := &RevisionStats{}
	var levSum, simSum float64

	for _, pair := range pairs {
		raw, revised := pair[0], pair[1]
		longest := len([]rune(raw))
		if n := len([]rune(revised)); n > longest {
			longest = n
		}
		if longest == 0 {
			continue
		}
		diffs := dmp.DiffMain(raw, revised, false)
		lev := dmp.DiffLevenshtein(diffs)

		out.Pairs++
		levSum += float64(lev)
		simSum += 1 - float64(lev)/float64(longest)
	}

	if out.Pairs > 0 {
		out.MeanLevenshtein = levSum / float64(out.Pairs)
		out.MeanSimilarity = simSum / float64(out.Pairs)
	}
	return out
}
