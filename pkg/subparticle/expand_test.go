package subparticle

import (
	"math"
	"testing"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
	"github.com/emtools/subparticles/pkg/star"
)

// particleTable builds a table of identity-oriented particles with pixel
// origin columns and defocus values.
func particleTable(n int) *star.Table {
	t := star.NewTable("particles",
		star.LabelCoordinateX, star.LabelCoordinateY,
		star.LabelAngleRot, star.LabelAngleTilt, star.LabelAnglePsi,
		star.LabelOriginX, star.LabelOriginY,
		star.LabelDefocusU, star.LabelDefocusV)
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, []string{
			"100.0", "200.0",
			"0.0", "0.0", "0.0",
			"0.0", "0.0",
			"10000.0", "10000.0",
		})
	}
	return t
}

func resolveFor(t *testing.T, opts *Options, tbl *star.Table) *Resolved {
	t.Helper()
	res, err := Resolve(opts, &star.File{Particles: tbl})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	return res
}

func TestExpansionTargetShift(t *testing.T) {
	tbl := particleTable(1)
	opts := &Options{
		Target: &geom.Vec3{10, 0, 0},
		Origin: &geom.Vec3{0, 0, 0},
		Apix:   1,
	}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}
	if exp.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", exp.Count())
	}

	for _, out := range exp.Tables() {
		// The subparticle sits 10 pixels along -X in the particle frame.
		ox, _ := out.Float(0, star.LabelOriginX)
		oy, _ := out.Float(0, star.LabelOriginY)
		if math.Abs(ox+10) > 1e-6 || math.Abs(oy) > 1e-6 {
			t.Errorf("origin = (%v, %v), want (-10, 0)", ox, oy)
		}

		// The view axis tilts to look down the target direction.
		tilt, _ := out.Float(0, star.LabelAngleTilt)
		if math.Abs(tilt-90) > 1e-6 {
			t.Errorf("tilt = %v, want 90", tilt)
		}
	}

	// The source table was not modified.
	if ox, _ := tbl.Float(0, star.LabelOriginX); ox != 0 {
		t.Errorf("source origin = %v, want 0", ox)
	}
}

func TestExpansionInvert(t *testing.T) {
	tbl := particleTable(1)
	opts := &Options{
		Target: &geom.Vec3{10, 0, 0},
		Origin: &geom.Vec3{0, 0, 0},
		Apix:   1,
		Invert: true,
	}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}
	for _, out := range exp.Tables() {
		ox, _ := out.Float(0, star.LabelOriginX)
		if math.Abs(ox-10) > 1e-6 {
			t.Errorf("inverted origin = %v, want 10", ox)
		}
	}
}

func TestExpansionShiftOnly(t *testing.T) {
	tbl := particleTable(1)
	opts := &Options{
		Target:    &geom.Vec3{10, 0, 0},
		Origin:    &geom.Vec3{0, 0, 0},
		Apix:      1,
		ShiftOnly: true,
	}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}
	for _, out := range exp.Tables() {
		// Angles keep their original values; only origins move.
		tilt, _ := out.Float(0, star.LabelAngleTilt)
		if tilt != 0 {
			t.Errorf("tilt = %v, want 0 (unchanged)", tilt)
		}
		ox, _ := out.Float(0, star.LabelOriginX)
		if math.Abs(ox+10) > 1e-6 {
			t.Errorf("origin = %v, want -10", ox)
		}
	}
}

func TestExpansionSymmetryTables(t *testing.T) {
	tbl := particleTable(3)
	opts := &Options{Sym: "C4", Apix: 1}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}
	if exp.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", exp.Count())
	}

	seen := 0
	for i, out := range exp.Tables() {
		if out.Len() != 3 {
			t.Errorf("table %d Len() = %d, want 3", i, out.Len())
		}
		seen++
	}
	if seen != 4 {
		t.Fatalf("yielded %d tables, want 4", seen)
	}
}

func TestExpansionRestartableAndEarlyBreak(t *testing.T) {
	tbl := particleTable(1)
	opts := &Options{Sym: "C4", Apix: 1}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}

	// Break after the first table.
	for i := range exp.Tables() {
		if i == 0 {
			break
		}
	}

	// A fresh iteration still yields every table.
	seen := 0
	for range exp.Tables() {
		seen++
	}
	if seen != 4 {
		t.Fatalf("yielded %d tables after restart, want 4", seen)
	}
}

func TestExpansionAdjustDefocus(t *testing.T) {
	tbl := particleTable(1)
	opts := &Options{
		Displacement:  20,
		Apix:          2,
		AdjustDefocus: true,
	}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}
	for _, out := range exp.Tables() {
		// Shift is (0,0,-10) px; the defocus moves by -10 px * 2 A/px.
		du, _ := out.Float(0, star.LabelDefocusU)
		dv, _ := out.Float(0, star.LabelDefocusV)
		if math.Abs(du-9980) > 1e-6 || math.Abs(dv-9980) > 1e-6 {
			t.Errorf("defocus = (%v, %v), want (9980, 9980)", du, dv)
		}
	}
}

func TestExpansionOrientedParticle(t *testing.T) {
	// A particle rotated 90 degrees about Z: the same axial displacement
	// must land along the particle's own view of the displacement axis.
	tbl := particleTable(1)
	tbl.SetFloat(0, star.LabelAngleRot, 90)

	opts := &Options{
		Target: &geom.Vec3{10, 0, 0},
		Origin: &geom.Vec3{0, 0, 0},
		Apix:   1,
	}
	res := resolveFor(t, opts, tbl)

	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}
	for _, out := range exp.Tables() {
		ox, _ := out.Float(0, star.LabelOriginX)
		oy, _ := out.Float(0, star.LabelOriginY)
		shift := geom.Vec3{ox, oy, 0}
		if math.Abs(shift.Norm()-10) > 1e-6 {
			t.Errorf("shift magnitude = %v, want 10", shift.Norm())
		}
		if math.Abs(ox+10) < 1e-6 {
			t.Error("rotated particle produced the unrotated shift")
		}
	}
}

func TestExpansionLeavesOriginlessSourceIntact(t *testing.T) {
	tbl := star.NewTable("particles",
		star.LabelAngleRot, star.LabelAngleTilt, star.LabelAnglePsi)
	tbl.Rows = append(tbl.Rows, []string{"0.0", "0.0", "0.0"})
	wantLabels := append([]string(nil), tbl.Labels...)

	opts := &Options{Sym: "C2"}
	res := resolveFor(t, opts, tbl)
	exp, err := NewExpansion(tbl, res, opts)
	if err != nil {
		t.Fatalf("NewExpansion error: %v", err)
	}

	for _, out := range exp.Tables() {
		if !out.HasLabel(star.LabelOriginXAngst) || !out.HasLabel(star.LabelOriginYAngst) {
			t.Errorf("output labels = %v, want origin columns added", out.Labels)
		}
	}

	if len(tbl.Labels) != len(wantLabels) {
		t.Fatalf("source labels = %v, want unchanged %v", tbl.Labels, wantLabels)
	}
	for i, l := range wantLabels {
		if tbl.Labels[i] != l {
			t.Errorf("source label %d = %q, want %q", i, tbl.Labels[i], l)
		}
	}
	if len(tbl.Rows[0]) != len(wantLabels) {
		t.Errorf("source row width = %d, want %d", len(tbl.Rows[0]), len(wantLabels))
	}
}

func TestNewExpansionValidation(t *testing.T) {
	opts := &Options{Sym: "C2", Apix: 1}

	t.Run("missing angle columns", func(t *testing.T) {
		tbl := star.NewTable("particles", star.LabelCoordinateX)
		tbl.Rows = [][]string{{"1.0"}}
		res := resolveFor(t, opts, particleTable(1))
		if _, err := NewExpansion(tbl, res, opts); !apperr.Is(err, apperr.ErrCodeInvalidStar) {
			t.Errorf("error = %v, want INVALID_STAR", err)
		}
	})

	t.Run("defocus required", func(t *testing.T) {
		tbl := star.NewTable("particles",
			star.LabelAngleRot, star.LabelAngleTilt, star.LabelAnglePsi)
		tbl.Rows = [][]string{{"0", "0", "0"}}
		defOpts := &Options{Sym: "C2", Apix: 1, AdjustDefocus: true}
		res := resolveFor(t, defOpts, particleTable(1))
		if _, err := NewExpansion(tbl, res, defOpts); !apperr.Is(err, apperr.ErrCodeInvalidStar) {
			t.Errorf("error = %v, want INVALID_STAR", err)
		}
	})

	t.Run("unparseable angles", func(t *testing.T) {
		tbl := star.NewTable("particles",
			star.LabelAngleRot, star.LabelAngleTilt, star.LabelAnglePsi)
		tbl.Rows = [][]string{{"bad", "0", "0"}}
		res := resolveFor(t, opts, particleTable(1))
		if _, err := NewExpansion(tbl, res, opts); err == nil {
			t.Error("NewExpansion accepted an unparseable angle")
		}
	})
}
