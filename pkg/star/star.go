// Package star models RELION STAR particle tables and their file format.
//
// A Table preserves every column verbatim: the engine reads and writes the
// well-known pose columns (angles, origins, defocus, class) through typed
// accessors and passes everything else through untouched, so particle
// metadata produced by other tools survives a round trip. Files follow the
// RELION 3.1 layout with an optional data_optics block next to the particle
// block; the RELION 2 single-block layout is read transparently.
package star

import (
	"strconv"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Well-known column labels (RELION naming, without the leading underscore).
const (
	LabelAngleRot  = "rlnAngleRot"
	LabelAngleTilt = "rlnAngleTilt"
	LabelAnglePsi  = "rlnAnglePsi"

	LabelOriginX      = "rlnOriginX"
	LabelOriginY      = "rlnOriginY"
	LabelOriginXAngst = "rlnOriginXAngst"
	LabelOriginYAngst = "rlnOriginYAngst"

	LabelCoordinateX = "rlnCoordinateX"
	LabelCoordinateY = "rlnCoordinateY"

	LabelDefocusU = "rlnDefocusU"
	LabelDefocusV = "rlnDefocusV"

	LabelClassNumber = "rlnClassNumber"
	LabelOpticsGroup = "rlnOpticsGroup"

	LabelImagePixelSize    = "rlnImagePixelSize"
	LabelMagnification     = "rlnMagnification"
	LabelDetectorPixelSize = "rlnDetectorPixelSize"
)

// AngleLabels lists the three orientation columns in (rot, tilt, psi) order.
// Values in the table are degrees, as RELION writes them.
var AngleLabels = [3]string{LabelAngleRot, LabelAngleTilt, LabelAnglePsi}

// Table is one STAR data block: an ordered set of labeled columns and rows
// of raw string cells. Unknown columns are preserved verbatim.
type Table struct {
	Name   string     // data block name without the "data_" prefix
	Labels []string   // column labels in file order
	Rows   [][]string // raw cell values, one slice per particle

	index map[string]int // label -> column, built lazily
}

// NewTable creates an empty table with the given block name and labels.
func NewTable(name string, labels ...string) *Table {
	t := &Table{Name: name, Labels: append([]string(nil), labels...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Labels))
	for i, l := range t.Labels {
		t.index[l] = i
	}
}

// Column returns the column index for a label, or -1 if absent.
func (t *Table) Column(label string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[label]; ok {
		return i
	}
	return -1
}

// HasLabel reports whether the table has the given column.
func (t *Table) HasLabel(label string) bool { return t.Column(label) >= 0 }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Float parses the cell at (row, label) as a float64.
// Absent columns and malformed cells are reported as ErrCodeInvalidStar.
func (t *Table) Float(row int, label string) (float64, error) {
	c := t.Column(label)
	if c < 0 {
		return 0, apperr.New(apperr.ErrCodeInvalidStar, "missing column %s", label)
	}
	v, err := strconv.ParseFloat(t.Rows[row][c], 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrCodeInvalidStar, err, "row %d column %s", row+1, label)
	}
	return v, nil
}

// SetFloat writes a float value into the cell at (row, label), formatted the
// way RELION writes numeric columns. The column must exist.
func (t *Table) SetFloat(row int, label string, v float64) error {
	c := t.Column(label)
	if c < 0 {
		return apperr.New(apperr.ErrCodeInvalidStar, "missing column %s", label)
	}
	t.Rows[row][c] = FormatFloat(v)
	return nil
}

// Int parses the cell at (row, label) as an int.
func (t *Table) Int(row int, label string) (int, error) {
	c := t.Column(label)
	if c < 0 {
		return 0, apperr.New(apperr.ErrCodeInvalidStar, "missing column %s", label)
	}
	v, err := strconv.Atoi(t.Rows[row][c])
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrCodeInvalidStar, err, "row %d column %s", row+1, label)
	}
	return v, nil
}

// AddColumn appends a new column filled with the given default cell value.
// Existing columns are untouched. Adding an existing label is a no-op.
func (t *Table) AddColumn(label, fill string) {
	if t.HasLabel(label) {
		return
	}
	t.Labels = append(t.Labels, label)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
	t.reindex()
}

// Clone returns a deep copy of the table. Transformations operate on clones;
// the source table is never mutated.
func (t *Table) Clone() *Table {
	out := NewTable(t.Name, t.Labels...)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// FormatFloat renders a float the way RELION writes numeric columns.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// File is a parsed STAR file: the particle table plus, for RELION 3.1 style
// files, the optics group table that travels with it.
type File struct {
	Optics    *Table // nil for RELION 2 style files
	Particles *Table
}
