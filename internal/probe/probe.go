// Package probe checks whether a batch of statistic vectors survives a principal
// component reduction.
package probe

import (
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/statguard-cli/internal/features"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultComponents is the requested output dimensionality.
const DefaultComponents = 128

// Probe failure causes, matched with errors.Is.
var (
	ErrTooFewSamples = errors.New("not enough samples for a reduction")
	ErrNonFinite     = errors.New("input contains NaN or infinity")
	ErrZeroVariance  = errors.New("zero variance across all features")
	ErrNoConvergence = errors.New("principal components factorization failed")
)

// Result is the outcome of one reduction attempt.
type Result struct {
	Requested int
	// Components is the effective k after clamping to min(requested, n-1, F).
	Components int
	// Rows and Cols are the shape of the reduced output.
	Rows int
	Cols int
	// Cumulative[i] is the variance fraction captured by the first i+1 components.
	Cumulative []float64
	// Explained is the fraction captured by all retained components, in [0,1].
	Explained float64
	OK        bool
	Err       error
}

// Shape formats the output shape, or FAILED.
func (r Result) Shape() string {
	if !r.OK {
		return "FAILED"
	}
	return fmt.Sprintf("(%d, %d)", r.Rows, r.Cols)
}

// EffectiveComponents clamps k to what PCA can produce for an n×f batch.
func EffectiveComponents(k, n, f int) int {
	return min(k, n-1, f)
}

// Run reduces x (rows = samples, columns = features) to at most k components. It never
// panics: numeric failures, including panics inside gonum, are reported in Result.Err.
func Run(x mat.Matrix, k int) (res Result) {
	res.Requested = k
	defer func() {
		if r := recover(); r != nil {
			res = Result{Requested: k, Components: res.Components, Err: fmt.Errorf("reduction panicked: %v", r)}
		}
	}()

	n, f := x.Dims()
	res.Components = EffectiveComponents(k, n, f)
	if res.Components < 1 {
		res.Err = fmt.Errorf("%w: %d samples, %d features, %d components requested", ErrTooFewSamples, n, f, k)
		return res
	}
	if bad := features.CountInvalid(x); bad.Total() > 0 {
		res.Err = fmt.Errorf("%w (%d NaN, %d Inf)", ErrNonFinite, bad.NaN, bad.Inf)
		return res
	}

	if constantColumns(x) {
		res.Err = fmt.Errorf("%w: every feature is constant across %d samples", ErrZeroVariance, n)
		return res
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		res.Err = ErrNoConvergence
		return res
	}
	vars := pc.VarsTo(nil)
	total := floats.Sum(vars)
	if total <= varianceTolerance*meanSquare(x) || math.IsNaN(total) || math.IsInf(total, 0) {
		res.Err = ErrZeroVariance
		return res
	}

	proj, err := project(x, &pc, res.Components)
	if err != nil {
		res.Err = err
		return res
	}
	res.Rows, res.Cols = proj.Dims()

	res.Cumulative = make([]float64, res.Components)
	var acc float64
	for i := 0; i < res.Components; i++ {
		acc += vars[i]
		res.Cumulative[i] = clamp01(acc / total)
		if i > 0 && res.Cumulative[i] < res.Cumulative[i-1] {
			res.Cumulative[i] = res.Cumulative[i-1]
		}
	}
	res.Explained = res.Cumulative[res.Components-1]
	res.OK = true
	return res
}

// varianceTolerance is the total variance, relative to the batch's mean square entry, below
// which a batch is treated as constant.
const varianceTolerance = 1e-12

// constantColumns reports whether every column of x holds a single value.
func constantColumns(x mat.Matrix) bool {
	_, f := x.Dims()
	for j := 0; j < f; j++ {
		col := mat.Col(nil, j, x)
		if floats.Max(col) != floats.Min(col) {
			return false
		}
	}
	return true
}

func meanSquare(x mat.Matrix) float64 {
	n, f := x.Dims()
	var ss float64
	for i := 0; i < n; i++ {
		for j := 0; j < f; j++ {
			v := x.At(i, j)
			ss += v * v
		}
	}
	return ss / float64(n*f)
}

// project maps the centred batch onto the first k principal directions.
func project(x mat.Matrix, pc *stat.PC, k int) (*mat.Dense, error) {
	n, f := x.Dims()
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	centered := mat.DenseCopyOf(x)
	for j := 0; j < f; j++ {
		col := mat.Col(nil, j, centered)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, col[i]-mean)
		}
	}
	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, f, 0, k))
	if bad := features.CountInvalid(&proj); bad.Total() > 0 {
		return nil, fmt.Errorf("%w in projected output", ErrNonFinite)
	}
	return &proj, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
