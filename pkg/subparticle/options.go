// Package subparticle derives geometrically transformed subparticle records
// from a table of particle poses, for symmetry expansion and local
// reconstruction.
//
// The package is organized as two stages that can be used independently:
//
//  1. Resolve: combine the user's geometry request (target point, explicit
//     transform, Euler angles, symmetry group, scalar displacement) into a
//     canonical operator set.
//  2. Expansion: lazily apply each operator to every particle in a table,
//     producing one transformed table per operator.
//
// Both stages are pure computations over the particle metadata; pixel data
// is never touched.
package subparticle

import (
	"io"

	"github.com/charmbracelet/log"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
)

// Transform is an explicit user-supplied operator: a rotation and an
// optional fourth-column translation in Angstroms.
type Transform struct {
	R geom.Matrix
	T *geom.Vec3 // nil when a bare 3x3 matrix was given
}

// Operator is one rigid transform to apply to a particle pose: a rotation
// and a translation in pixels.
type Operator struct {
	R geom.Matrix
	D geom.Vec3
}

// Options describes one expansion request. Exactly one primary geometry
// source must be set: Target, Transform, Euler, Sym, or a non-zero
// Displacement. Distances (Target, Origin, Displacement, Transform
// translations) are in Angstroms and are converted to pixels using the
// resolved pixel size.
type Options struct {
	// Geometry sources.
	Target       *geom.Vec3 // destination coordinate
	Transform    *Transform // explicit 3x3 or 3x4 matrix
	Euler        *geom.Vec3 // (rot, tilt, psi) in degrees
	Sym          string     // point group for whole-particle expansion
	Displacement float64    // distance along the symmetry axis

	// Subgroup filtering.
	Subgroup string // subgroup to eliminate after the target transformation
	I1C3     bool   // shorthand: I1 C3 axis target, subgroup C3
	I1C5     bool   // shorthand: I1 C5 axis target, subgroup C5

	// Frame parameters.
	Origin  *geom.Vec3 // box origin; supersedes BoxSize
	BoxSize float64    // box size in pixels; origin defaults to BoxSize/2
	Psi     float64    // additional in-plane rotation of the target, degrees
	Apix    float64    // Angstroms per pixel; 0 means derive from the table

	// DefaultApix is used when Apix is unset and the table carries no
	// pixel size. 0 falls back to 1.0 with a warning.
	DefaultApix float64

	// Expansion behavior.
	Invert        bool  // apply the inverse of each operator
	ShiftOnly     bool  // keep the original view axis, shift origins only
	AdjustDefocus bool  // add the Z component of each shift to the defocus
	Classes       []int // keep only these class labels; empty keeps all

	// SearchBudget caps the subgroup search; 0 uses the package default.
	SearchBudget int

	// Logger receives resolution warnings (superseded flags, defaulted
	// pixel size). Defaults to a discard logger.
	Logger *log.Logger
}

// Validate checks the mode invariants that do not depend on the particle
// table and applies defaults. It is idempotent.
func (o *Options) Validate() error {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	if o.I1C3 && o.I1C5 {
		return apperr.New(apperr.ErrCodeInvalidGeometry, "I1 C3 and I1 C5 targets are mutually exclusive")
	}
	if o.I1C3 || o.I1C5 {
		if o.Sym != "" && o.Sym != "I1" {
			return apperr.New(apperr.ErrCodeInvalidGeometry,
				"the I1 axis targets require symmetry I1, not %s", o.Sym)
		}
		o.Sym = "I1"
		if o.I1C3 {
			o.Subgroup = "C3"
		} else {
			o.Subgroup = "C5"
		}
	}

	if o.Target == nil && o.Transform == nil && o.Euler == nil && o.Sym == "" && o.Displacement == 0 {
		return apperr.New(apperr.ErrCodeMissingGeometrySpec,
			"a target, displacement, transformation matrix, Euler angles, or a symmetry group must be provided")
	}
	if (o.Target != nil || o.Transform != nil) && o.Origin == nil && o.BoxSize == 0 {
		return apperr.New(apperr.ErrCodeMissingGeometrySpec,
			"an origin must be provided via the box size or origin coordinates")
	}

	if o.Target != nil && !o.Target.IsFinite() {
		return apperr.New(apperr.ErrCodeInvalidGeometry, "target coordinates must be finite")
	}
	if o.Origin != nil && !o.Origin.IsFinite() {
		return apperr.New(apperr.ErrCodeInvalidGeometry, "origin coordinates must be finite")
	}
	if o.Euler != nil && !o.Euler.IsFinite() {
		return apperr.New(apperr.ErrCodeInvalidGeometry, "Euler angles must be finite")
	}
	if o.Transform != nil {
		if !o.Transform.R.IsFinite() {
			return apperr.New(apperr.ErrCodeInvalidGeometry, "transformation matrix must be finite")
		}
		if o.Transform.T != nil && !o.Transform.T.IsFinite() {
			return apperr.New(apperr.ErrCodeInvalidGeometry, "transformation translation must be finite")
		}
	}
	return nil
}
