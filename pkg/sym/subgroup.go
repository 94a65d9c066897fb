package sym

import (
	"math"
	"sort"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
)

// DefaultSearchBudget caps the number of candidate index subsets examined by
// FindSubgroup before the search gives up. The search is combinatorial and
// exponential in the worst case; the budget turns a pathological request
// into ErrCodeSubgroupSearchExhausted instead of an unbounded loop. The
// default comfortably covers every practical request against groups up to
// icosahedral order (60 operators).
const DefaultSearchBudget = 1 << 22

// traceTol is the tolerance for comparing rotation traces when matching a
// candidate's element spectrum against the target subgroup's.
const traceTol = 1e-4

// FindSubgroup selects the minimal ordered index subset of ops whose
// pairwise relative rotations form a closed group isomorphic to sub.
//
// Candidates are enumerated lexicographically over index combinations,
// starting at size sub.Order() and growing toward len(ops); the first subset
// that passes both the closure and spectrum checks wins, so repeated calls
// with the same inputs return the same index sequence. A shared right factor
// on the operators (the base rotation composed in by the transform resolver)
// cancels out of every relative rotation, so the search is insensitive to it.
//
// Returns ErrCodeNoSubgroupFound when the full enumeration finishes without
// a match, or ErrCodeSubgroupSearchExhausted when budget candidates have
// been examined first. A budget of 0 means DefaultSearchBudget.
func FindSubgroup(ops []geom.Matrix, sub *Group, budget int) ([]int, error) {
	if budget <= 0 {
		budget = DefaultSearchBudget
	}
	want := sub.Order()
	if want == 0 || want > len(ops) {
		return nil, apperr.New(apperr.ErrCodeNoSubgroupFound,
			"no subset of %d operators can realize subgroup %s (order %d)", len(ops), sub.Name, want)
	}
	wantSpectrum := traceSpectrum(sub.Ops)

	examined := 0
	for size := want; size <= len(ops); size++ {
		idx := firstCombination(size)
		for idx != nil {
			examined++
			if examined > budget {
				return nil, apperr.New(apperr.ErrCodeSubgroupSearchExhausted,
					"subgroup search for %s gave up after %d candidate subsets", sub.Name, budget)
			}
			if closedSubset(ops, idx, wantSpectrum) {
				out := make([]int, len(idx))
				copy(out, idx)
				return out, nil
			}
			idx = nextCombination(idx, len(ops))
		}
	}
	return nil, apperr.New(apperr.ErrCodeNoSubgroupFound,
		"no closed subset of the %d operators realizes subgroup %s", len(ops), sub.Name)
}

// closedSubset reports whether the operators at idx form a closed group
// isomorphic to the target spectrum. Elements are taken relative to the
// first index so that any common right factor cancels: for every ordered
// pair (i, j) the relative rotation ops[i]*ops[j]^T must match one of the
// subset's own relative elements.
func closedSubset(ops []geom.Matrix, idx []int, wantSpectrum []float64) bool {
	elems := make([]geom.Matrix, len(idx))
	base := ops[idx[0]].Transpose()
	for k, i := range idx {
		elems[k] = geom.Compose(ops[i], base)
	}
	if !spectrumEqual(traceSpectrum(elems), wantSpectrum) {
		return false
	}
	for _, i := range idx {
		for _, j := range idx {
			rel := geom.Compose(ops[i], ops[j].Transpose())
			if !containsRotation(elems, rel) {
				return false
			}
		}
	}
	return true
}

func containsRotation(elems []geom.Matrix, m geom.Matrix) bool {
	for _, e := range elems {
		if geom.Equal(e, m, geom.DefaultTol) {
			return true
		}
	}
	return false
}

// traceSpectrum returns the sorted rotation traces of a set of operators.
// Two finite rotation groups with equal spectra are isomorphic for all the
// point groups handled here, which distinguishes e.g. C4 from D2.
func traceSpectrum(ops []geom.Matrix) []float64 {
	ts := make([]float64, len(ops))
	for i, o := range ops {
		ts[i] = o.Trace()
	}
	sort.Float64s(ts)
	return ts
}

func spectrumEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > traceTol {
			return false
		}
	}
	return true
}

// firstCombination returns the lexicographically first size-k index
// combination: [0, 1, ..., k-1].
func firstCombination(k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// nextCombination advances idx to the next k-combination of [0, n) in
// lexicographic order, returning nil when the enumeration is finished.
// The slice is advanced in place.
func nextCombination(idx []int, n int) []int {
	k := len(idx)
	for i := k - 1; i >= 0; i-- {
		if idx[i] < n-k+i {
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
			return idx
		}
	}
	return nil
}
