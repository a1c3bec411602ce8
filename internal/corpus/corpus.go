package corpus

import (
	"github.com/jakobytes/elias-1848/internal/models"
)

// Corpus is the validated verse sequence together with its boundary index.
type Corpus struct {
	Verses []models.Verse
	Index  *BoundaryIndex
}

// New validates the contiguity of verses and builds the boundary index.
func New(verses []models.Verse) (*Corpus, error) {
	idx, err := NewBoundaryIndex(verses)
	if err != nil {
		return nil, err
	}
	return &Corpus{Verses: verses, Index: idx}, nil
}

// Verse returns verse pos (0-based) of poem i.
func (c *Corpus) Verse(i, pos int) models.Verse {
	start, _ := c.Index.Range(i)
	return c.Verses[start+pos]
}

// Texts returns the verse texts in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.Verses))
	for i, v := range c.Verses {
		texts[i] = v.Text
	}
	return texts
}

// Resolve maps a pair of poem indices to poem IDs and source pos values.
// Verse texts are filled in only when withTexts is set.
func (c *Corpus) Resolve(p *models.Pair, withTexts bool) *models.PairRecord {
	r := &models.PairRecord{
		PoemID1: c.Index.PoemID(p.I),
		PoemID2: c.Index.PoemID(p.J),
		Raw:     p.Raw,
		Left:    p.Left,
		Right:   p.Right,
		Sym:     p.Sym,
	}
	if p.Alignments == nil {
		return r
	}
	r.Alignments = make([]models.AlignmentRecord, len(p.Alignments))
	for k, a := range p.Alignments {
		v1, v2 := c.Verse(p.I, a.PosI), c.Verse(p.J, a.PosJ)
		rec := models.AlignmentRecord{Pos1: v1.Pos, Pos2: v2.Pos, Weight: a.Weight}
		if withTexts {
			rec.Text1, rec.Text2 = v1.Text, v2.Text
		}
		r.Alignments[k] = rec
	}
	return r
}
