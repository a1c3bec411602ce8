package models

// PairRecord is a Pair resolved to poem IDs and source verse positions, the
// form written to every output.
type PairRecord struct {
	PoemID1    string            `json:"poem_id_1"`
	PoemID2    string            `json:"poem_id_2"`
	Raw        float64           `json:"sim_raw"`
	Left       float64           `json:"sim_l"`
	Right      float64           `json:"sim_r"`
	Sym        float64           `json:"sim"`
	Alignments []AlignmentRecord `json:"alignments,omitempty"`
}

// AlignmentRecord is an aligned verse pair with the source pos values and texts.
type AlignmentRecord struct {
	Pos1   string  `json:"pos1"`
	Text1  string  `json:"text1,omitempty"`
	Pos2   string  `json:"pos2"`
	Text2  string  `json:"text2,omitempty"`
	Weight float64 `json:"sim"`
}

// Reverse returns the record seen from the second poem.
func (r *PairRecord) Reverse() *PairRecord {
	out := &PairRecord{
		PoemID1: r.PoemID2,
		PoemID2: r.PoemID1,
		Raw:     r.Raw,
		Left:    r.Right,
		Right:   r.Left,
		Sym:     r.Sym,
	}
	if r.Alignments != nil {
		out.Alignments = make([]AlignmentRecord, len(r.Alignments))
		for k, a := range r.Alignments {
			out.Alignments[k] = AlignmentRecord{Pos1: a.Pos2, Text1: a.Text2, Pos2: a.Pos1, Text2: a.Text1, Weight: a.Weight}
		}
	}
	return out
}
