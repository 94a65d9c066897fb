package subparticle

import (
	"iter"
	"math"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
	"github.com/emtools/subparticles/pkg/star"
)

// pose is a particle's parsed orientation and origin, captured once so the
// per-operator expansion is infallible and restartable.
type pose struct {
	rot      geom.Matrix // orientation from the Euler angle columns
	ox, oy   float64     // origin shift in pixels
	defocusU float64
	defocusV float64
}

// Expansion applies an operator set to a particle table. Construct it with
// NewExpansion, which parses and validates every particle row up front,
// then iterate Tables. The source table is read-only to the expansion; each
// produced table is an independent copy.
type Expansion struct {
	src        *star.Table
	poses      []pose
	cols       columns
	ops        []Operator
	apix       float64
	invert     bool
	shiftOnly  bool
	adjDefocus bool
	hasDefocus bool
}

// columns holds the indices of the rewritten columns, resolved once in
// NewExpansion so the per-operator writes cannot fail. An absent optional
// column pair is -1.
type columns struct {
	rot, tilt, psi     int
	originX, originY   int
	originXA, originYA int
	defocusU, defocusV int
}

// NewExpansion prepares the expansion of t by the resolved operator set.
// Orientation, origin, and (when defocus adjustment is requested) defocus
// columns are parsed for every row here; malformed cells surface as
// ErrCodeInvalidStar before any table is produced.
func NewExpansion(t *star.Table, res *Resolved, opts *Options) (*Expansion, error) {
	for _, l := range star.AngleLabels {
		if !t.HasLabel(l) {
			return nil, apperr.New(apperr.ErrCodeInvalidStar, "particle table has no %s column", l)
		}
	}
	// Origin columns are ensured on a private copy; the caller's table
	// keeps its schema.
	src := t.Clone()
	star.EnsureOrigins(src)

	e := &Expansion{
		src:        src,
		ops:        res.Ops,
		apix:       res.Apix,
		invert:     opts.Invert,
		shiftOnly:  opts.ShiftOnly,
		adjDefocus: opts.AdjustDefocus,
		hasDefocus: src.HasLabel(star.LabelDefocusU),
	}
	if e.adjDefocus && !e.hasDefocus {
		return nil, apperr.New(apperr.ErrCodeInvalidStar,
			"defocus adjustment requires a %s column", star.LabelDefocusU)
	}

	e.cols = columns{
		rot:      src.Column(star.LabelAngleRot),
		tilt:     src.Column(star.LabelAngleTilt),
		psi:      src.Column(star.LabelAnglePsi),
		originX:  src.Column(star.LabelOriginX),
		originY:  src.Column(star.LabelOriginY),
		originXA: src.Column(star.LabelOriginXAngst),
		originYA: src.Column(star.LabelOriginYAngst),
		defocusU: src.Column(star.LabelDefocusU),
		defocusV: src.Column(star.LabelDefocusV),
	}

	e.poses = make([]pose, src.Len())
	for i := range src.Rows {
		var angles [3]float64
		for k, l := range star.AngleLabels {
			v, err := src.Float(i, l)
			if err != nil {
				return nil, err
			}
			angles[k] = deg2rad(v)
		}
		p := pose{rot: geom.EulerToRotation(angles[0], angles[1], angles[2])}
		var err error
		if p.ox, p.oy, err = star.OriginPx(src, i, res.Apix); err != nil {
			return nil, err
		}
		if e.adjDefocus {
			if p.defocusU, err = src.Float(i, star.LabelDefocusU); err != nil {
				return nil, err
			}
			if p.defocusV, err = src.Float(i, star.LabelDefocusV); err != nil {
				return nil, err
			}
		}
		e.poses[i] = p
	}
	return e, nil
}

// Count returns the number of tables the expansion will produce.
func (e *Expansion) Count() int { return len(e.ops) }

// Tables yields one transformed table per operator, keyed by operator
// index. The sequence is lazy and restartable: iterating it twice
// recomputes each table, and consumers may stop early without side effects.
func (e *Expansion) Tables() iter.Seq2[int, *star.Table] {
	return func(yield func(int, *star.Table) bool) {
		for i, op := range e.ops {
			if !yield(i, e.apply(op)) {
				return
			}
		}
	}
}

// apply produces the table for a single operator.
func (e *Expansion) apply(op Operator) *star.Table {
	r, d := op.R, op.D
	if e.invert {
		r = r.Transpose()
		d = d.Neg()
	}

	out := e.src.Clone()
	for i, p := range e.poses {
		// Compose the operator onto the particle's own orientation, then
		// carry the translation into the particle frame with the composed
		// rotation so the same axis displacement lands correctly for every
		// view direction.
		composed := geom.Compose(p.rot, r)
		shift := composed.MulVec(d)
		row := out.Rows[i]

		if !e.shiftOnly {
			rot, tilt, psi := geom.RotationToEuler(composed)
			row[e.cols.rot] = star.FormatFloat(rad2deg(rot))
			row[e.cols.tilt] = star.FormatFloat(rad2deg(tilt))
			row[e.cols.psi] = star.FormatFloat(rad2deg(psi))
		}

		ox, oy := p.ox+shift[0], p.oy+shift[1]
		if e.cols.originX >= 0 {
			row[e.cols.originX] = star.FormatFloat(ox)
			row[e.cols.originY] = star.FormatFloat(oy)
		}
		if e.cols.originXA >= 0 {
			row[e.cols.originXA] = star.FormatFloat(ox * e.apix)
			row[e.cols.originYA] = star.FormatFloat(oy * e.apix)
		}

		if e.adjDefocus {
			// Defocus is in Angstroms; the shift is in pixels.
			dz := shift[2] * e.apix
			row[e.cols.defocusU] = star.FormatFloat(p.defocusU + dz)
			row[e.cols.defocusV] = star.FormatFloat(p.defocusV + dz)
		}
	}
	return out
}

func rad2deg(rad float64) float64 { return rad * 180 / math.Pi }
