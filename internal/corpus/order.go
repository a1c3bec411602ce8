package corpus

import (
	"regexp"
	"sort"

	"github.com/jakobytes/elias-1848/internal/models"
)

// MoveToFront returns verses of poems whose ID matches pattern first, followed
// by all others. Relative order inside both groups is kept, so contiguous poems
// stay contiguous.
func MoveToFront(verses []models.Verse, pattern *regexp.Regexp) []models.Verse {
	order := MoveToFrontOrder(verses, pattern)
	out := make([]models.Verse, len(order))
	for k, i := range order {
		out[k] = verses[i]
	}
	return out
}

// MoveToFrontOrder returns the input positions of the verses in the order
// MoveToFront produces.
func MoveToFrontOrder(verses []models.Verse, pattern *regexp.Regexp) []int {
	out := make([]int, 0, len(verses))
	var rest []int
	for i, v := range verses {
		if pattern.MatchString(v.PoemID) {
			out = append(out, i)
		} else {
			rest = append(rest, i)
		}
	}
	return append(out, rest...)
}

// SortByLength regroups verses into runs of equal poem ID and orders the runs
// from the longest poem to the shortest. Runs of equal length keep input order.
func SortByLength(verses []models.Verse) []models.Verse {
	var runs [][]models.Verse
	for i, v := range verses {
		if i > 0 && v.PoemID == verses[i-1].PoemID {
			runs[len(runs)-1] = append(runs[len(runs)-1], v)
			continue
		}
		runs = append(runs, []models.Verse{v})
	}
	sort.SliceStable(runs, func(a, b int) bool { return len(runs[a]) > len(runs[b]) })
	out := make([]models.Verse, 0, len(verses))
	for _, r := range runs {
		out = append(out, r...)
	}
	return out
}
