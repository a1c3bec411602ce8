package models

// Alignment links verse PosI of the left poem to verse PosJ of the right poem.
// Positions are 0-based offsets inside each poem.
type Alignment struct {
	PosI   int     `json:"pos_i"`
	PosJ   int     `json:"pos_j"`
	Weight float64 `json:"weight"`
}

// Pair is the similarity of poems I and J (poem indices in corpus order, I < J
// as produced by the orchestrator).
type Pair struct {
	I          int         `json:"i"`
	J          int         `json:"j"`
	Raw        float64     `json:"sim_raw"`
	Left       float64     `json:"sim_l"`
	Right      float64     `json:"sim_r"`
	Sym        float64     `json:"sim"`
	Alignments []Alignment `json:"alignments,omitempty"`
}

// Reverse returns the same pair seen from poem J: indices, one-sided scores
// and alignment sides are swapped.
func (p *Pair) Reverse() *Pair {
	r := &Pair{
		I:     p.J,
		J:     p.I,
		Raw:   p.Raw,
		Left:  p.Right,
		Right: p.Left,
		Sym:   p.Sym,
	}
	if p.Alignments != nil {
		r.Alignments = make([]Alignment, len(p.Alignments))
		for k, a := range p.Alignments {
			r.Alignments[k] = Alignment{PosI: a.PosJ, PosJ: a.PosI, Weight: a.Weight}
		}
	}
	return r
}
