package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sanitize returns a copy of x with every NaN and ±Inf replaced by fill.
func Sanitize(x []float64, fill float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = fill
		}
		out[i] = v
	}
	return out
}

// SanitizeDense is Sanitize over every element of m.
func SanitizeDense(m mat.Matrix, fill float64) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fill
		}
		return v
	}, m)
	return out
}

// Invalid counts NaN and infinite entries.
type Invalid struct {
	NaN int
	Inf int
}

// Total is NaN + Inf.
func (c Invalid) Total() int { return c.NaN + c.Inf }

// CountInvalid tallies the non-finite entries of m.
func CountInvalid(m mat.Matrix) Invalid {
	var c Invalid
	r, cols := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			switch {
			case math.IsNaN(v):
				c.NaN++
			case math.IsInf(v, 0):
				c.Inf++
			}
		}
	}
	return c
}
