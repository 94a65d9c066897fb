package sym

import (
	"testing"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
)

func mustGroup(t *testing.T, name string) *Group {
	t.Helper()
	g, err := Operators(name)
	if err != nil {
		t.Fatalf("Operators(%q) error: %v", name, err)
	}
	return g
}

func TestFindSubgroupC5InIcosahedral(t *testing.T) {
	i1 := mustGroup(t, "I1")
	c5 := mustGroup(t, "C5")

	idx, err := FindSubgroup(i1.Ops, c5, 0)
	if err != nil {
		t.Fatalf("FindSubgroup error: %v", err)
	}
	if len(idx) != 5 {
		t.Fatalf("len(idx) = %d, want 5", len(idx))
	}

	// The selected operators must form a closed cyclic set relative to the
	// first: the same 5-fold element raised to the powers 0..4.
	base := i1.Ops[idx[0]].Transpose()
	elems := make([]geom.Matrix, len(idx))
	for k, i := range idx {
		elems[k] = geom.Compose(i1.Ops[i], base)
	}
	for _, a := range elems {
		for _, b := range elems {
			if !containsRotation(elems, geom.Compose(a, b)) {
				t.Fatal("selected subset is not closed under composition")
			}
		}
	}
}

func TestFindSubgroupDeterministic(t *testing.T) {
	o := mustGroup(t, "O")
	c4 := mustGroup(t, "C4")

	first, err := FindSubgroup(o.Ops, c4, 0)
	if err != nil {
		t.Fatalf("FindSubgroup error: %v", err)
	}
	second, err := FindSubgroup(o.Ops, c4, 0)
	if err != nil {
		t.Fatalf("FindSubgroup error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("selection is not deterministic: %v vs %v", first, second)
		}
	}
}

func TestFindSubgroupSharedRightFactor(t *testing.T) {
	// A common right factor on every operator cancels out of the relative
	// rotations, so the same indices are found.
	i1 := mustGroup(t, "I1")
	c3 := mustGroup(t, "C3")

	r, err := geom.AxisToRotation(geom.Vec3{0.382, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	rt := r.Transpose()
	composed := make([]geom.Matrix, len(i1.Ops))
	for i, s := range i1.Ops {
		composed[i] = geom.Compose(s, rt)
	}

	plain, err := FindSubgroup(i1.Ops, c3, 0)
	if err != nil {
		t.Fatalf("FindSubgroup(plain) error: %v", err)
	}
	withFactor, err := FindSubgroup(composed, c3, 0)
	if err != nil {
		t.Fatalf("FindSubgroup(composed) error: %v", err)
	}
	if len(plain) != len(withFactor) {
		t.Fatalf("lengths differ: %v vs %v", plain, withFactor)
	}
	for i := range plain {
		if plain[i] != withFactor[i] {
			t.Fatalf("indices differ with right factor: %v vs %v", plain, withFactor)
		}
	}
}

func TestFindSubgroupSpectrumRejectsWrongGroup(t *testing.T) {
	// D2 and C4 both have order 4, but their element spectra differ; a C4
	// request against the D2 operators must not accept D2 itself.
	d2 := mustGroup(t, "D2")
	c4 := mustGroup(t, "C4")

	_, err := FindSubgroup(d2.Ops, c4, 0)
	if !apperr.Is(err, apperr.ErrCodeNoSubgroupFound) {
		t.Fatalf("error = %v, want NO_SUBGROUP_FOUND", err)
	}
}

func TestFindSubgroupNotFound(t *testing.T) {
	c4 := mustGroup(t, "C4")
	c3 := mustGroup(t, "C3")

	_, err := FindSubgroup(c4.Ops, c3, 0)
	if !apperr.Is(err, apperr.ErrCodeNoSubgroupFound) {
		t.Fatalf("error = %v, want NO_SUBGROUP_FOUND", err)
	}
}

func TestFindSubgroupTooLarge(t *testing.T) {
	c2 := mustGroup(t, "C2")
	c5 := mustGroup(t, "C5")

	_, err := FindSubgroup(c2.Ops, c5, 0)
	if !apperr.Is(err, apperr.ErrCodeNoSubgroupFound) {
		t.Fatalf("error = %v, want NO_SUBGROUP_FOUND", err)
	}
}

func TestFindSubgroupBudgetExhausted(t *testing.T) {
	i1 := mustGroup(t, "I1")
	c7 := mustGroup(t, "C7")

	// No C7 exists in the icosahedral group; with a tiny budget the search
	// must give up instead of enumerating every subset.
	_, err := FindSubgroup(i1.Ops, c7, 100)
	if !apperr.Is(err, apperr.ErrCodeSubgroupSearchExhausted) {
		t.Fatalf("error = %v, want SUBGROUP_SEARCH_EXHAUSTED", err)
	}
}

func TestNextCombination(t *testing.T) {
	// Enumerate all 2-combinations of 4 elements.
	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	idx := firstCombination(2)
	for i := 0; idx != nil; i++ {
		if i >= len(want) {
			t.Fatalf("enumeration did not terminate after %d combinations", len(want))
		}
		if idx[0] != want[i][0] || idx[1] != want[i][1] {
			t.Fatalf("combination %d = %v, want %v", i, idx, want[i])
		}
		idx = nextCombination(idx, 4)
	}
}
