// Package binning groups per-cell stiffness values into equal width bins
// and averages each occupied bin.
package binning

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/meshconv/types"
)

const (
	DefaultCount = 500
	DefaultLower = 1.0
)

type Options struct {
	Count int     // Number of bins
	Lower float64 // Left edge of the first bin
	Field string  // Name used in error messages
}

func DefaultOptions() Options {
	return Options{Count: DefaultCount, Lower: DefaultLower, Field: "E"}
}

// Bin is an occupied interval [Lower, Upper) of the histogram; the last bin
// is closed on the right
type Bin struct {
	Index        int // 1-based
	Lower, Upper float64
	Count        int
	Mean         float64
}

type Result struct {
	Edges       []float64 // Count+1 bin boundaries
	Assignments []int     // 1-based bin index of each value
	Bins        []Bin     // Occupied bins in ascending order
}

// Bin returns the occupied bin with the given index
func (r *Result) Bin(index int) (b Bin, ok bool) {
	for _, b = range r.Bins {
		if b.Index == index {
			return b, true
		}
	}
	return Bin{}, false
}

// Digitize spreads Count bins linearly over [Lower, max(values)] and assigns
// each value to one of them. Values must be finite and positive. Values at
// or below Lower fall in bin 1, the
// maximum falls in bin Count. When max(values) <= Lower every value is put
// in bin 1.
func Digitize(values []float64, opts Options) (res *Result, err error) {
	if opts.Field == "" {
		opts.Field = "E"
	}
	if opts.Count < 1 {
		return nil, fmt.Errorf("bin count must be positive, have %d", opts.Count)
	}
	if len(values) == 0 {
		return nil, &types.FormatError{Field: opts.Field, Err: fmt.Errorf("no cell values to bin")}
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &types.FormatError{Field: opts.Field, Err: fmt.Errorf("value for cell %d is not finite: %v", i, v)}
		}
		if v <= 0 {
			return nil, &types.FormatError{Field: opts.Field, Err: fmt.Errorf("value for cell %d must be positive, have %v", i, v)}
		}
	}
	var (
		vMax    = floats.Max(values)
		upper   = math.Max(vMax, opts.Lower)
		members = make([][]float64, opts.Count+1)
	)
	res = &Result{
		Edges:       floats.Span(make([]float64, opts.Count+1), opts.Lower, upper),
		Assignments: make([]int, len(values)),
	}
	degenerate := vMax <= opts.Lower
	width := (upper - opts.Lower) / float64(opts.Count)
	for i, v := range values {
		var ind int
		switch {
		case degenerate, v <= opts.Lower:
			ind = 1
		case v >= vMax:
			ind = opts.Count
		default:
			ind = res.locate(v, int((v-opts.Lower)/width)+1)
		}
		res.Assignments[i] = ind
		members[ind] = append(members[ind], v)
	}
	for ind := 1; ind <= opts.Count; ind++ {
		if len(members[ind]) == 0 {
			continue
		}
		res.Bins = append(res.Bins, Bin{
			Index: ind,
			Lower: res.Edges[ind-1],
			Upper: res.Edges[ind],
			Count: len(members[ind]),
			Mean:  stat.Mean(members[ind], nil),
		})
	}
	return
}

// locate corrects a computed bin index against the edges so that
// Edges[ind-1] <= v < Edges[ind]
func (r *Result) locate(v float64, ind int) int {
	count := len(r.Edges) - 1
	ind = min(max(ind, 1), count)
	for ind > 1 && v < r.Edges[ind-1] {
		ind--
	}
	for ind < count && v >= r.Edges[ind] {
		ind++
	}
	return ind
}
