// Package corpus reads verse records and derives the poem boundary index over
// the flat verse sequence.
package corpus

import (
	"errors"
	"fmt"

	"github.com/jakobytes/elias-1848/internal/models"
)

// ErrEmptyCorpus is returned when the input contains no verses.
var ErrEmptyCorpus = errors.New("corpus contains no verses")

// OrderingError reports a poem whose verses do not form one contiguous run.
type OrderingError struct {
	PoemID     string
	FirstStart int // verse index where the first run of PoemID started
	Reappears  int // verse index where PoemID shows up again
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("poem %q is not contiguous: first run starts at verse %d, reappears at verse %d",
		e.PoemID, e.FirstStart, e.Reappears)
}

// BoundaryIndex maps poems to half-open verse ranges. Poem i occupies
// [b[i], b[i+1]); b[0] is 0, b[len-1] is the verse count and b is strictly
// increasing. It is immutable once built.
type BoundaryIndex struct {
	bounds []int
	ids    []string
	byID   map[string]int
}

// NewBoundaryIndex scans verses for poem ID changes. It fails with
// *OrderingError when an ID reappears after a different poem.
func NewBoundaryIndex(verses []models.Verse) (*BoundaryIndex, error) {
	if len(verses) == 0 {
		return nil, ErrEmptyCorpus
	}
	idx := &BoundaryIndex{
		bounds: []int{0},
		ids:    []string{verses[0].PoemID},
		byID:   map[string]int{verses[0].PoemID: 0},
	}
	for v := 1; v < len(verses); v++ {
		id := verses[v].PoemID
		if id == verses[v-1].PoemID {
			continue
		}
		if prev, seen := idx.byID[id]; seen {
			return nil, &OrderingError{PoemID: id, FirstStart: idx.bounds[prev], Reappears: v}
		}
		idx.byID[id] = len(idx.ids)
		idx.bounds = append(idx.bounds, v)
		idx.ids = append(idx.ids, id)
	}
	idx.bounds = append(idx.bounds, len(verses))
	return idx, nil
}

// Boundaries returns b[0..N]. The slice is shared and must not be modified.
func (b *BoundaryIndex) Boundaries() []int {
	return b.bounds
}

// Len returns the number of poems.
func (b *BoundaryIndex) Len() int {
	return len(b.ids)
}

// Total returns the number of verses.
func (b *BoundaryIndex) Total() int {
	return b.bounds[len(b.bounds)-1]
}

// PoemID returns the ID of poem i.
func (b *BoundaryIndex) PoemID(i int) string {
	return b.ids[i]
}

// IDs returns all poem IDs in corpus order. The slice is shared.
func (b *BoundaryIndex) IDs() []string {
	return b.ids
}

// Lookup returns the index of the poem with the given ID.
func (b *BoundaryIndex) Lookup(id string) (int, bool) {
	i, ok := b.byID[id]
	return i, ok
}

// Range returns the verse range [start, end) of poem i.
func (b *BoundaryIndex) Range(i int) (start, end int) {
	return b.bounds[i], b.bounds[i+1]
}

// PoemLen returns the number of verses in poem i.
func (b *BoundaryIndex) PoemLen(i int) int {
	return b.bounds[i+1] - b.bounds[i]
}

// Suffix returns the boundaries of poems i+1..N-1 shifted to start at 0, i.e.
// the sub-boundaries of the block "all poems after i". For the last poem it
// returns []int{0}.
func (b *BoundaryIndex) Suffix(i int) []int {
	rest := b.bounds[i+1:]
	out := make([]int, len(rest))
	for k, v := range rest {
		out[k] = v - rest[0]
	}
	return out
}
