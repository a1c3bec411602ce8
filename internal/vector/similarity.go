package vector

import "math"

// InnerProduct returns the inner product of a and b, which is the cosine
// similarity when both are unit vectors. Vectors of different length score 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	b = b[:len(a)]
	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += float64(a[i]) * float64(b[i])
		s1 += float64(a[i+1]) * float64(b[i+1])
		s2 += float64(a[i+2]) * float64(b[i+2])
		s3 += float64(a[i+3]) * float64(b[i+3])
	}
	for ; i < len(a); i++ {
		s0 += float64(a[i]) * float64(b[i])
	}
	return (s0 + s1) + (s2 + s3)
}

// L2Norm returns the Euclidean length of x.
func L2Norm(x []float32) float64 {
	return math.Sqrt(InnerProduct(x, x))
}
