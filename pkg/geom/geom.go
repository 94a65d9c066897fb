// Package geom implements the rotation algebra used throughout subparticles.
//
// All rotations are proper 3x3 rotation matrices (determinant +1) stored as
// fixed-size arrays. Euler angles follow the ZYZ intrinsic convention used by
// RELION: a rotation about Z by rot, about the new Y by tilt, and about the
// new Z by psi. Angles are in radians everywhere in this package; degree
// conversion happens at the table and CLI boundaries.
package geom

import (
	"math"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Vec3 is a 3D vector. Units depend on context (pixels after pixel-size
// normalization for translations, unitless for axes).
type Vec3 [3]float64

// Matrix is a 3x3 matrix in row-major order.
type Matrix [3][3]float64

// DefaultTol is the tolerance used for rotation matrix comparison.
// Symmetry operators are products of a handful of exact generators, so
// accumulated error stays many orders of magnitude below this.
const DefaultTol = 1e-6

// degenerateTilt is the threshold below which |sin(tilt)| is treated as zero
// when recovering Euler angles. Matches the 16-ulp guard used by RELION.
const degenerateTilt = 16 * 2.220446049250313e-16

// Identity returns the identity rotation.
func Identity() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// EulerToRotation builds the rotation matrix for the ZYZ intrinsic Euler
// triple (rot, tilt, psi) in radians. The matrix layout is identical to
// RELION's Euler_angles2matrix so operator lists are directly comparable
// across tools.
func EulerToRotation(rot, tilt, psi float64) Matrix {
	ca, cb, cg := math.Cos(rot), math.Cos(tilt), math.Cos(psi)
	sa, sb, sg := math.Sin(rot), math.Sin(tilt), math.Sin(psi)
	cc, cs := cb*ca, cb*sa
	sc, ss := sb*ca, sb*sa
	return Matrix{
		{cg*cc - sg*sa, cg*cs + sg*ca, -cg * sb},
		{-sg*cc - cg*sa, -sg*cs + cg*ca, sg * sb},
		{sc, ss, cb},
	}
}

// RotationToEuler recovers the (rot, tilt, psi) triple from a rotation
// matrix. It is the inverse of EulerToRotation modulo the convention's
// periodicity. When tilt is 0 or pi the rot/psi split is degenerate; the
// full in-plane rotation is assigned to psi and rot is set to zero.
func RotationToEuler(m Matrix) (rot, tilt, psi float64) {
	absSB := math.Sqrt(m[0][2]*m[0][2] + m[1][2]*m[1][2])
	if absSB > degenerateTilt {
		psi = math.Atan2(m[1][2], -m[0][2])
		rot = math.Atan2(m[2][1], m[2][0])
		var signSB float64
		if math.Abs(math.Sin(psi)) < degenerateTilt {
			signSB = sign(-m[0][2] / math.Cos(psi))
		} else if math.Sin(psi) > 0 {
			signSB = sign(m[1][2])
		} else {
			signSB = -sign(m[1][2])
		}
		tilt = math.Atan2(signSB*absSB, m[2][2])
		return rot, tilt, psi
	}
	if m[2][2] > 0 {
		return 0, 0, math.Atan2(-m[1][0], m[0][0])
	}
	return 0, math.Pi, math.Atan2(m[1][0], -m[0][0])
}

// AxisToRotation returns the rotation that carries the +Z axis onto the
// direction of v. The in-plane angle is left at zero; callers that need an
// additional in-plane rotation compose it via the psi Euler angle.
// A near-zero axis cannot define a direction and is rejected.
func AxisToRotation(v Vec3) (Matrix, error) {
	n := v.Norm()
	if n < degenerateTilt {
		return Matrix{}, apperr.New(apperr.ErrCodeInvalidGeometry, "axis vector has near-zero length")
	}
	z := v[2] / n
	z = math.Max(-1, math.Min(1, z))
	return EulerToRotation(math.Atan2(v[1], v[0]), math.Acos(z), 0), nil
}

// AxisAngle returns the rotation about the given axis by angle radians,
// built with the Rodrigues formula. The axis need not be normalized.
// A near-zero axis cannot define a rotation and is rejected.
func AxisAngle(axis Vec3, angle float64) (Matrix, error) {
	n := axis.Norm()
	if n < degenerateTilt {
		return Matrix{}, apperr.New(apperr.ErrCodeInvalidGeometry, "rotation axis has near-zero length")
	}
	x, y, z := axis[0]/n, axis[1]/n, axis[2]/n
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	return Matrix{
		{t*x*x + c, t*x*y - s*z, t*x*z + s*y},
		{t*x*y + s*z, t*y*y + c, t*y*z - s*x},
		{t*x*z - s*y, t*y*z + s*x, t*z*z + c},
	}, nil
}

// Compose returns the matrix product a*b, i.e. the rotation b followed by a.
// Composition is associative but not commutative.
func Compose(a, b Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return out
}

// Transpose returns the transpose of m. For a rotation matrix this is the
// inverse rotation.
func (m Matrix) Transpose() Matrix {
	return Matrix{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

// MulVec applies the rotation to v.
func (m Matrix) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Trace returns the sum of the diagonal elements. For a rotation matrix the
// trace is 1+2cos(theta) where theta is the rotation angle, which makes it a
// cheap rotation-distance proxy.
func (m Matrix) Trace() float64 {
	return m[0][0] + m[1][1] + m[2][2]
}

// Angle returns the rotation angle of m in radians, in [0, pi].
func (m Matrix) Angle() float64 {
	c := (m.Trace() - 1) / 2
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c)
}

// NearIdentity reports whether m is the identity rotation within tol,
// comparing by rotation angle via the trace.
func NearIdentity(m Matrix, tol float64) bool {
	return m.Trace() > 3-tol
}

// Equal reports whether a and b represent the same rotation within tol.
// The comparison is by the angle of the relative rotation a*b^T, so it is
// insensitive to how the matrices were constructed.
func Equal(a, b Matrix, tol float64) bool {
	return NearIdentity(Compose(a, b.Transpose()), tol)
}

// IsFinite reports whether every element of m is finite.
func (m Matrix) IsFinite() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Neg returns -v.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// IsFinite reports whether every component of v is finite.
func (v Vec3) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
