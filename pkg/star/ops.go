package star

import (
	"math"
	"slices"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// CalculateApix derives the pixel size in Angstroms per pixel from the file
// metadata: rlnImagePixelSize when present (optics block first, then the
// particle block), otherwise 10000 * rlnDetectorPixelSize / rlnMagnification.
// The second value is false when the file carries neither.
func CalculateApix(f *File) (float64, bool) {
	for _, t := range []*Table{f.Optics, f.Particles} {
		if t == nil || t.Len() == 0 {
			continue
		}
		if t.HasLabel(LabelImagePixelSize) {
			if v, err := t.Float(0, LabelImagePixelSize); err == nil && v > 0 {
				return v, true
			}
		}
	}
	for _, t := range []*Table{f.Optics, f.Particles} {
		if t == nil || t.Len() == 0 {
			continue
		}
		if t.HasLabel(LabelDetectorPixelSize) && t.HasLabel(LabelMagnification) {
			dps, err1 := t.Float(0, LabelDetectorPixelSize)
			mag, err2 := t.Float(0, LabelMagnification)
			if err1 == nil && err2 == nil && mag > 0 {
				return 1e4 * dps / mag, true
			}
		}
	}
	return 0, false
}

// SelectClasses returns a new table keeping only rows whose class number is
// in classes. The source table is not modified.
func SelectClasses(t *Table, classes []int) (*Table, error) {
	if !t.HasLabel(LabelClassNumber) {
		return nil, apperr.New(apperr.ErrCodeInvalidStar, "table has no %s column", LabelClassNumber)
	}
	out := NewTable(t.Name, t.Labels...)
	for i := range t.Rows {
		c, err := t.Int(i, LabelClassNumber)
		if err != nil {
			return nil, err
		}
		if slices.Contains(classes, c) {
			out.Rows = append(out.Rows, append([]string(nil), t.Rows[i]...))
		}
	}
	return out, nil
}

// Interleave merges tables row-wise round-robin: row 0 of each table, then
// row 1 of each, and so on. All tables must share the first table's label
// set; this holds for expansion outputs, which are clones of one source.
func Interleave(tables []*Table) *Table {
	if len(tables) == 0 {
		return nil
	}
	out := NewTable(tables[0].Name, tables[0].Labels...)
	maxLen := 0
	for _, t := range tables {
		maxLen = max(maxLen, t.Len())
	}
	for i := 0; i < maxLen; i++ {
		for _, t := range tables {
			if i < t.Len() {
				out.Rows = append(out.Rows, append([]string(nil), t.Rows[i]...))
			}
		}
	}
	return out
}

// EnsureOrigins adds zero-valued Angstrom origin columns when the table has
// no origin columns at all, so that expansion always has somewhere to write
// the shifts it introduces.
func EnsureOrigins(t *Table) {
	if t.HasLabel(LabelOriginX) || t.HasLabel(LabelOriginXAngst) {
		return
	}
	t.AddColumn(LabelOriginXAngst, FormatFloat(0))
	t.AddColumn(LabelOriginYAngst, FormatFloat(0))
}

// OriginPx reads a row's origin shift in pixels, converting from the
// Angstrom columns when the file carries only those.
func OriginPx(t *Table, row int, apix float64) (x, y float64, err error) {
	if t.HasLabel(LabelOriginX) {
		if x, err = t.Float(row, LabelOriginX); err != nil {
			return 0, 0, err
		}
		if y, err = t.Float(row, LabelOriginY); err != nil {
			return 0, 0, err
		}
		return x, y, nil
	}
	if x, err = t.Float(row, LabelOriginXAngst); err != nil {
		return 0, 0, err
	}
	if y, err = t.Float(row, LabelOriginYAngst); err != nil {
		return 0, 0, err
	}
	return x / apix, y / apix, nil
}

// SetOriginPx writes a row's origin shift in pixels into every origin column
// the table has, keeping the pixel and Angstrom columns in sync.
func SetOriginPx(t *Table, row int, apix, x, y float64) error {
	if t.HasLabel(LabelOriginX) {
		if err := t.SetFloat(row, LabelOriginX, x); err != nil {
			return err
		}
		if err := t.SetFloat(row, LabelOriginY, y); err != nil {
			return err
		}
	}
	if t.HasLabel(LabelOriginXAngst) {
		if err := t.SetFloat(row, LabelOriginXAngst, x*apix); err != nil {
			return err
		}
		if err := t.SetFloat(row, LabelOriginYAngst, y*apix); err != nil {
			return err
		}
	}
	return nil
}

// Recenter moves the integer part of each origin shift into the coordinate
// columns, leaving the fractional remainder in the origin columns. This lets
// particles be re-extracted outside a pixel-shift-aware pipeline.
func Recenter(t *Table, apix float64) error {
	if !t.HasLabel(LabelCoordinateX) || !t.HasLabel(LabelCoordinateY) {
		return apperr.New(apperr.ErrCodeInvalidStar, "recentering requires coordinate columns")
	}
	for i := range t.Rows {
		ox, oy, err := OriginPx(t, i, apix)
		if err != nil {
			return err
		}
		cx, err := t.Float(i, LabelCoordinateX)
		if err != nil {
			return err
		}
		cy, err := t.Float(i, LabelCoordinateY)
		if err != nil {
			return err
		}
		ix, fx := math.Trunc(ox), ox-math.Trunc(ox)
		iy, fy := math.Trunc(oy), oy-math.Trunc(oy)
		if err := t.SetFloat(i, LabelCoordinateX, cx-ix); err != nil {
			return err
		}
		if err := t.SetFloat(i, LabelCoordinateY, cy-iy); err != nil {
			return err
		}
		if err := SetOriginPx(t, i, apix, fx, fy); err != nil {
			return err
		}
	}
	return nil
}
