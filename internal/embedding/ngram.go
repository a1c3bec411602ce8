package embedding

import (
	"fmt"
	"math"
	"sort"
)

// Weighting selects how n-gram counts become vector components.
type Weighting string

const (
	WeightingPlain  Weighting = "plain"
	WeightingSqrt   Weighting = "sqrt"
	WeightingBinary Weighting = "binary"
)

// ParseWeighting validates a weighting name.
func ParseWeighting(s string) (Weighting, error) {
	switch w := Weighting(s); w {
	case WeightingPlain, WeightingSqrt, WeightingBinary:
		return w, nil
	case "":
		return WeightingPlain, nil
	default:
		return "", fmt.Errorf("unknown weighting %q (supported: plain, sqrt, binary)", s)
	}
}

func (w Weighting) apply(count float32) float32 {
	switch w {
	case WeightingSqrt:
		return float32(math.Sqrt(float64(count)))
	case WeightingBinary:
		if count > 0 {
			return 1
		}
		return 0
	default:
		return count
	}
}

// NGrams returns the character n-grams of text padded with one space on each
// side. Texts shorter than n yield the padded text as a single gram.
func NGrams(text string, n int) []string {
	r := []rune(" " + text + " ")
	if len(r) <= n {
		return []string{string(r)}
	}
	out := make([]string, 0, len(r)-n+1)
	for i := 0; i+n <= len(r); i++ {
		out = append(out, string(r[i:i+n]))
	}
	return out
}

// topNGrams picks the dim most frequent n-grams over texts. Ties are broken
// alphabetically so the feature set is deterministic.
func topNGrams(texts []string, n, dim int) map[string]int {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, g := range NGrams(t, n) {
			counts[g]++
		}
	}
	grams := make([]string, 0, len(counts))
	for g := range counts {
		grams = append(grams, g)
	}
	sort.Slice(grams, func(a, b int) bool {
		if counts[grams[a]] != counts[grams[b]] {
			return counts[grams[a]] > counts[grams[b]]
		}
		return grams[a] < grams[b]
	})
	if len(grams) > dim {
		grams = grams[:dim]
	}
	features := make(map[string]int, len(grams))
	for i, g := range grams {
		features[g] = i
	}
	return features
}
