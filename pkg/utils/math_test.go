package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 0, 4}
	if norm := NormalizeL2(x); norm != 5 {
		t.Errorf("norm = %v, want 5", norm)
	}
	want := []float32{0.6, 0, 0.8}
	for i := range x {
		if math.Abs(float64(x[i]-want[i])) > 1e-6 {
			t.Errorf("x[%d] = %v, want %v", i, x[i], want[i])
		}
	}

	zero := []float32{0, 0}
	if norm := NormalizeL2(zero); norm != 0 || zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v (norm %v)", zero, norm)
	}
}
