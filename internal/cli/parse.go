package cli

import (
	"encoding/json"
	"strconv"
	"strings"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
	"github.com/emtools/subparticles/pkg/subparticle"
)

// parseVec3 parses a comma-separated "x,y,z" literal.
func parseVec3(s, what string) (*geom.Vec3, error) {
	toks := strings.Split(s, ",")
	if len(toks) != 3 {
		return nil, apperr.New(apperr.ErrCodeInvalidGeometry,
			"%s must be a comma-separated list of x,y,z values, got %q", what, s)
	}
	var v geom.Vec3
	for i, tok := range toks {
		f, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, apperr.New(apperr.ErrCodeInvalidGeometry,
				"%s must be a comma-separated list of x,y,z values, got %q", what, s)
		}
		v[i] = f
	}
	return &v, nil
}

// parseTransform parses a 3x3 or 3x4 matrix literal in JSON format, e.g.
// [[1,0,0],[0,1,0],[0,0,1]]. A fourth column becomes the translation.
func parseTransform(s string) (*subparticle.Transform, error) {
	var rows [][]float64
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidGeometry, err,
			"transformation matrix must be a 3x3 or 3x4 JSON array")
	}
	if len(rows) != 3 {
		return nil, apperr.New(apperr.ErrCodeInvalidGeometry,
			"transformation matrix must have 3 rows, got %d", len(rows))
	}
	cols := len(rows[0])
	if cols != 3 && cols != 4 {
		return nil, apperr.New(apperr.ErrCodeInvalidGeometry,
			"transformation matrix must have 3 or 4 columns, got %d", cols)
	}

	tr := &subparticle.Transform{}
	for i, row := range rows {
		if len(row) != cols {
			return nil, apperr.New(apperr.ErrCodeInvalidGeometry,
				"transformation matrix rows have inconsistent lengths")
		}
		copy(tr.R[i][:], row[:3])
	}
	if cols == 4 {
		t := geom.Vec3{rows[0][3], rows[1][3], rows[2][3]}
		tr.T = &t
	}
	return tr, nil
}
