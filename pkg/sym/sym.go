// Package sym expands point-group symmetry names into their rotation
// operator sets and resolves subgroups within them.
//
// Supported point groups follow the RELION naming conventions: cyclic (Cn),
// dihedral (Dn), tetrahedral (T), octahedral (O), and icosahedral (I,
// I1-I4). Operator lists are generated deterministically so that downstream
// subgroup-index selection and output-file suffixing are reproducible across
// invocations.
//
// # Axis conventions
//
//   - Cn, Dn: principal axis on +Z; Dn places an extra 2-fold on +X.
//   - T: 2-fold axes on the coordinate axes, 3-fold on (1,1,1).
//   - O: 4-fold on +Z, 3-fold on (1,1,1).
//   - I1 (and plain I): 2-fold axes on the coordinate axes, with a 5-fold
//     axis in the YZ plane at (0, 1/phi, 1) and a 3-fold at (1/phi^2, 0, 1).
//   - I2: I1 rotated 90 degrees about Z (5-fold in the XZ plane).
//   - I3: 5-fold on +X.
//   - I4: 5-fold on +Z.
package sym

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
)

// phi is the golden ratio, which fixes the icosahedral axis directions.
var phi = (1 + math.Sqrt(5)) / 2

// maxGroupOrder bounds closure generation. The largest supported point group
// is icosahedral with 60 proper rotations; exceeding this indicates numeric
// drift rather than a genuine new element.
const maxGroupOrder = 128

// Group is a named, ordered set of rotation operators closed under
// composition. The identity is always element 0.
type Group struct {
	Name string
	Ops  []geom.Matrix
}

// Order returns the number of operators in the group.
func (g *Group) Order() int { return len(g.Ops) }

var cnDnRe = regexp.MustCompile(`^([CD])([0-9]+)$`)

// Operators resolves a point-group name into its rotation operator set.
// Names are case-insensitive. Unrecognized names are rejected with
// ErrCodeUnknownSymmetryGroup.
func Operators(name string) (*Group, error) {
	canon := strings.ToUpper(strings.TrimSpace(name))

	if m := cnDnRe.FindStringSubmatch(canon); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return nil, unknownGroup(name)
		}
		switch m[1] {
		case "C":
			return cyclic(canon, n), nil
		case "D":
			if n < 2 {
				return nil, unknownGroup(name)
			}
			return dihedral(canon, n), nil
		}
	}

	switch canon {
	case "T":
		return polyhedral(canon, geom.Vec3{0, 0, 1}, 2, geom.Vec3{1, 1, 1}, 3)
	case "O":
		return polyhedral(canon, geom.Vec3{0, 0, 1}, 4, geom.Vec3{1, 1, 1}, 3)
	case "I", "I1":
		return polyhedral(canon, geom.Vec3{0, 0, 1}, 2, geom.Vec3{0, 1, phi}, 5)
	case "I2":
		return polyhedral(canon, geom.Vec3{0, 0, 1}, 2, geom.Vec3{1, 0, phi}, 5)
	case "I3":
		return reoriented(canon, geom.Vec3{0, 1, phi}, geom.Vec3{1, 0, 0})
	case "I4":
		return reoriented(canon, geom.Vec3{0, 1, phi}, geom.Vec3{0, 0, 1})
	}

	return nil, unknownGroup(name)
}

func unknownGroup(name string) error {
	return apperr.New(apperr.ErrCodeUnknownSymmetryGroup, "unknown symmetry group: %s", name)
}

// cyclic returns Cn: n rotations about +Z.
func cyclic(name string, n int) *Group {
	ops := make([]geom.Matrix, n)
	for k := 0; k < n; k++ {
		ops[k] = geom.EulerToRotation(2*math.Pi*float64(k)/float64(n), 0, 0)
	}
	return &Group{Name: name, Ops: ops}
}

// dihedral returns Dn: Cn about +Z plus n 2-fold axes in the XY plane,
// generated from the principal rotation and a 2-fold on +X.
func dihedral(name string, n int) *Group {
	rz, _ := geom.AxisAngle(geom.Vec3{0, 0, 1}, 2*math.Pi/float64(n))
	rx, _ := geom.AxisAngle(geom.Vec3{1, 0, 0}, math.Pi)
	return &Group{Name: name, Ops: closure(rz, rx)}
}

// polyhedral generates a group from two rotation axes with the given folds.
func polyhedral(name string, axisA geom.Vec3, foldA int, axisB geom.Vec3, foldB int) (*Group, error) {
	a, err := geom.AxisAngle(axisA, 2*math.Pi/float64(foldA))
	if err != nil {
		return nil, err
	}
	b, err := geom.AxisAngle(axisB, 2*math.Pi/float64(foldB))
	if err != nil {
		return nil, err
	}
	return &Group{Name: name, Ops: closure(a, b)}, nil
}

// reoriented returns the icosahedral group with the I1 5-fold axis `from`
// carried onto the direction `to`, by conjugating every I1 operator.
func reoriented(name string, from, to geom.Vec3) (*Group, error) {
	base, err := Operators("I1")
	if err != nil {
		return nil, err
	}
	rf, err := geom.AxisToRotation(from)
	if err != nil {
		return nil, err
	}
	rt, err := geom.AxisToRotation(to)
	if err != nil {
		return nil, err
	}
	// c maps `from` onto `to`: rf brings `from` to +Z, then the transpose
	// of rt brings +Z to `to`.
	c := geom.Compose(rt.Transpose(), rf)
	ct := c.Transpose()
	ops := make([]geom.Matrix, len(base.Ops))
	for i, s := range base.Ops {
		ops[i] = geom.Compose(geom.Compose(c, s), ct)
	}
	return &Group{Name: name, Ops: ops}, nil
}

// closure generates the group spanned by the given generators: breadth-first
// multiplication starting from the identity, deduplicating within tolerance.
// The fixed generator order makes the element order deterministic.
func closure(gens ...geom.Matrix) []geom.Matrix {
	ops := []geom.Matrix{geom.Identity()}
	for i := 0; i < len(ops); i++ {
		for _, g := range gens {
			p := geom.Compose(g, ops[i])
			if !contains(ops, p) {
				ops = append(ops, p)
			}
			if len(ops) > maxGroupOrder {
				panic(fmt.Sprintf("symmetry closure exceeded %d elements", maxGroupOrder))
			}
		}
	}
	return ops
}

func contains(ops []geom.Matrix, m geom.Matrix) bool {
	for _, o := range ops {
		if geom.Equal(o, m, geom.DefaultTol) {
			return true
		}
	}
	return false
}
