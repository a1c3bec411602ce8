package embedding

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/jakobytes/elias-1848/internal/vector"
)

func TestNGrams(t *testing.T) {
	if got, want := NGrams("ab", 2), []string{" a", "ab", "b "}; !reflect.DeepEqual(got, want) {
		t.Errorf("NGrams(ab, 2) = %q, want %q", got, want)
	}
	if got, want := NGrams("a", 5), []string{" a "}; !reflect.DeepEqual(got, want) {
		t.Errorf("short text: got %q, want %q", got, want)
	}
	if got := NGrams("äö", 2); len(got) != 3 || got[1] != "äö" {
		t.Errorf("n-grams should be rune based, got %q", got)
	}
}

func TestParseWeighting(t *testing.T) {
	for _, s := range []string{"plain", "sqrt", "binary"} {
		if w, err := ParseWeighting(s); err != nil || string(w) != s {
			t.Errorf("ParseWeighting(%q) = %q, %v", s, w, err)
		}
	}
	if w, _ := ParseWeighting(""); w != WeightingPlain {
		t.Errorf("empty weighting should default to plain, got %q", w)
	}
	if _, err := ParseWeighting("log"); err == nil {
		t.Error("expected error for unknown weighting")
	}
}

func TestNGramVectorizer_Vectorize(t *testing.T) {
	v, err := NewNGramVectorizer(2, 16, WeightingPlain)
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{"tuli tuuli", "tuli tuuli", "meri on", "tuli"}
	m, err := v.Vectorize(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 4 || m.Dim != 16 {
		t.Fatalf("shape = %dx%d", m.Rows, m.Dim)
	}
	for i := 0; i < m.Rows; i++ {
		if n := vector.L2Norm(m.Row(i)); math.Abs(n-1) > 1e-5 {
			t.Errorf("row %d norm = %v", i, n)
		}
	}
	if !reflect.DeepEqual(m.Row(0), m.Row(1)) {
		t.Error("identical texts should get identical vectors")
	}
	same := vector.InnerProduct(m.Row(0), m.Row(3))
	other := vector.InnerProduct(m.Row(0), m.Row(2))
	if same <= other {
		t.Errorf("expected overlapping verses to be more similar: %v <= %v", same, other)
	}
}

func TestNGramVectorizer_CacheHitsMatchFreshVectors(t *testing.T) {
	texts := []string{"a b", "c d", "a b", "a b"}
	plain, _ := NewNGramVectorizer(2, 8, WeightingSqrt)
	cache, err := NewCache(10)
	if err != nil {
		t.Fatal(err)
	}
	cached, _ := NewNGramVectorizer(2, 8, WeightingSqrt, WithCache(cache))
	want, _ := plain.Vectorize(context.Background(), texts)
	got, err := cached.Vectorize(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("cached vectorization differs from uncached")
	}
	if cache.Len() != 2 {
		t.Errorf("cache should hold the 2 distinct texts, has %d", cache.Len())
	}
}

func TestNewNGramVectorizer_Invalid(t *testing.T) {
	if _, err := NewNGramVectorizer(0, 10, WeightingPlain); err == nil {
		t.Error("expected error for n=0")
	}
	if _, err := NewNGramVectorizer(2, 0, WeightingPlain); err == nil {
		t.Error("expected error for dim=0")
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := NewCache(0)
	if err != nil || c != nil {
		t.Fatalf("NewCache(0) = %v, %v", c, err)
	}
	c.Add("x", []float32{1})
	if _, ok := c.Get("x"); ok {
		t.Error("disabled cache should never hit")
	}
	if c.Len() != 0 {
		t.Error("disabled cache should be empty")
	}
}

func TestCache_Evicts(t *testing.T) {
	c, _ := NewCache(2)
	c.Add("a", []float32{1})
	c.Add("b", []float32{2})
	c.Add("c", []float32{3})
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}
	if v, ok := c.Get("c"); !ok || v[0] != 3 {
		t.Errorf("Get(c) = %v, %v", v, ok)
	}
}
