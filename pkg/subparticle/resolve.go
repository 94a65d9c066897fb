package subparticle

import (
	"math"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
	"github.com/emtools/subparticles/pkg/star"
	"github.com/emtools/subparticles/pkg/sym"
)

// Axis directions of the icosahedral (I1) C3 and C5 sub-axes, used by the
// I1C3/I1C5 shorthand targets. The C5 axis sits at (0, 1/phi, 1) and the C3
// axis at (1/phi^2, 0, 1), quoted here to the precision the ecosystem uses.
var (
	i1C3Axis = geom.Vec3{0.382, 0.0, 1.0}
	i1C5Axis = geom.Vec3{0.0, 0.618, 1.0}
)

// coordinateFloor is the threshold below which a target-minus-origin
// component is treated as exactly zero, in pixels. Sub-pixel residue in a
// hand-typed coordinate is noise, not geometry.
const coordinateFloor = 1.0

// Resolved is the canonical outcome of transform resolution: the operator
// set to expand with and the frame parameters the expansion needs.
type Resolved struct {
	Ops  []Operator // one entry per output table
	Apix float64    // resolved pixel size, Angstroms per pixel

	// Rotation and Translation are the canonical base operator before
	// symmetry composition, retained for diagnostics.
	Rotation    geom.Matrix
	Translation geom.Vec3
}

// Resolve combines the request in opts with the table metadata in f into a
// canonical operator set. The file is only consulted for its pixel size;
// the particle rows are untouched.
func Resolve(opts *Options, f *star.File) (*Resolved, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger

	apix := opts.Apix
	if apix <= 0 {
		if v, ok := star.CalculateApix(f); ok {
			apix = v
		} else if opts.DefaultApix > 0 {
			log.Warnf("could not compute pixel size, using configured default %g Angstroms per pixel", opts.DefaultApix)
			apix = opts.DefaultApix
		} else {
			warn := apperr.New(apperr.ErrCodeAmbiguousPixelSize,
				"could not compute pixel size, default is 1.0 Angstroms per pixel")
			log.Warn(warn.Message)
			apix = 1.0
		}
	} else if v, ok := star.CalculateApix(f); ok && math.Abs(v-apix) > 1e-6 {
		log.Warnf("using specified pixel size %g instead of calculated size %g", apix, v)
	}

	origin, err := resolveOrigin(opts, apix)
	if err != nil {
		return nil, err
	}

	r, d, err := resolveBase(opts, apix, origin)
	if err != nil {
		return nil, err
	}

	if opts.I1C3 {
		log.Info("target rotation set to the I1 C3 axis")
		if r, err = geom.AxisToRotation(i1C3Axis); err != nil {
			return nil, err
		}
	} else if opts.I1C5 {
		log.Info("target rotation set to the I1 C5 axis")
		if r, err = geom.AxisToRotation(i1C5Axis); err != nil {
			return nil, err
		}
	}

	res := &Resolved{Apix: apix, Rotation: r, Translation: d}

	rt := r.Transpose()
	if opts.Sym != "" {
		group, err := sym.Operators(opts.Sym)
		if err != nil {
			return nil, err
		}
		res.Ops = make([]Operator, group.Order())
		for i, s := range group.Ops {
			res.Ops[i] = Operator{R: geom.Compose(s, rt), D: d}
		}
	} else {
		res.Ops = []Operator{{R: rt, D: d}}
	}

	if opts.Subgroup != "" {
		subGroup, err := sym.Operators(opts.Subgroup)
		if err != nil {
			return nil, err
		}
		rots := make([]geom.Matrix, len(res.Ops))
		for i, op := range res.Ops {
			rots[i] = op.R
		}
		keep, err := sym.FindSubgroup(rots, subGroup, opts.SearchBudget)
		if err != nil {
			return nil, err
		}
		log.Infof("subgroup search found %d operators", len(keep))
		ops := make([]Operator, len(keep))
		for i, k := range keep {
			ops[i] = res.Ops[k]
		}
		res.Ops = ops
	}

	return res, nil
}

// resolveOrigin converts the requested origin to pixels. Both the explicit
// origin and the target are in Angstroms; the box-size fallback is already
// in pixels. Returns the zero vector when no origin is relevant.
func resolveOrigin(opts *Options, apix float64) (geom.Vec3, error) {
	if opts.Origin != nil {
		if opts.BoxSize != 0 {
			opts.Logger.Warn("explicit origin supersedes the box size")
		}
		return opts.Origin.Scale(1 / apix), nil
	}
	if opts.BoxSize != 0 {
		half := opts.BoxSize / 2
		return geom.Vec3{half, half, half}, nil
	}
	return geom.Vec3{}, nil
}

// resolveBase derives the canonical base rotation and translation from the
// primary geometry source. Euler angles absorb a simultaneous target as a
// translation; otherwise a target supersedes an explicit transform.
func resolveBase(opts *Options, apix float64, origin geom.Vec3) (geom.Matrix, geom.Vec3, error) {
	switch {
	case opts.Euler != nil:
		r := geom.EulerToRotation(deg2rad(opts.Euler[0]), deg2rad(opts.Euler[1]), deg2rad(opts.Euler[2]))
		tr := &Transform{R: r}
		if opts.Target != nil {
			t := *opts.Target
			tr.T = &t
		}
		return resolveTransform(tr, apix, origin)

	case opts.Target != nil:
		if opts.Transform != nil {
			opts.Logger.Warn("target supersedes the transformation matrix")
		}
		return resolveTarget(opts, apix, origin)

	case opts.Transform != nil:
		return resolveTransform(opts.Transform, apix, origin)

	default:
		// Symmetry or displacement mode: identity rotation, displacement
		// along the view axis.
		return geom.Identity(), geom.Vec3{0, 0, -opts.Displacement / apix}, nil
	}
}

// resolveTarget aligns the view axis from the origin toward the target and
// sets the translation to the (negated) distance between them. Components
// below one pixel are zeroed; a target coinciding with the origin resolves
// to an in-plane rotation with zero translation rather than normalizing a
// zero-length axis.
func resolveTarget(opts *Options, apix float64, origin geom.Vec3) (geom.Matrix, geom.Vec3, error) {
	c := opts.Target.Scale(1 / apix).Sub(origin)
	for i, v := range c {
		if math.Abs(v) < coordinateFloor {
			c[i] = 0
		}
	}
	dist := c.Norm()
	psi := deg2rad(opts.Psi)
	if dist == 0 {
		opts.Logger.Warn("target coincides with the origin; resolving to an in-plane rotation only")
		return geom.EulerToRotation(0, 0, psi), geom.Vec3{}, nil
	}
	z := math.Max(-1, math.Min(1, c[2]/dist))
	r := geom.EulerToRotation(math.Atan2(c[1], c[0]), math.Acos(z), psi)
	return r, geom.Vec3{0, 0, -dist}, nil
}

// resolveTransform uses the leading 3x3 block as the rotation. A fourth
// column is re-expressed as the origin's displacement under the rotation,
// R*origin + t - origin, so it no longer depends on the matrix's own frame.
func resolveTransform(tr *Transform, apix float64, origin geom.Vec3) (geom.Matrix, geom.Vec3, error) {
	if tr.T == nil {
		return tr.R, geom.Vec3{}, nil
	}
	t := tr.T.Scale(1 / apix)
	d := tr.R.MulVec(origin).Add(t).Sub(origin)
	return tr.R, d, nil
}

func deg2rad(deg float64) float64 { return deg * math.Pi / 180 }
