package star

import (
	"bufio"
	"io"
	"os"
	"strings"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Parse reads a STAR file. Every data block is parsed; the particle block is
// the one named "particles" (RELION 3.1), falling back to the first block
// carrying orientation or coordinate columns (RELION 2 wrote a single
// unnamed or "images" block). An optics block is attached when present.
func Parse(r io.Reader) (*File, error) {
	blocks, err := parseBlocks(r)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidStar, "no data blocks found")
	}

	f := &File{}
	for _, b := range blocks {
		switch {
		case b.Name == "optics":
			f.Optics = b
		case b.Name == "particles":
			f.Particles = b
		}
	}
	if f.Particles == nil {
		for _, b := range blocks {
			if b == f.Optics {
				continue
			}
			if b.HasLabel(LabelAngleRot) || b.HasLabel(LabelCoordinateX) || b.HasLabel(LabelAnglePsi) {
				f.Particles = b
				break
			}
		}
	}
	if f.Particles == nil {
		return nil, apperr.New(apperr.ErrCodeInvalidStar, "no particle block found")
	}
	return f, nil
}

// ParseFile opens and parses the STAR file at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, err
	}
	defer fh.Close()
	f, err := Parse(fh)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidStar, err, "parse %s", path)
	}
	return f, nil
}

func parseBlocks(r io.Reader) ([]*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var blocks []*Table
	var cur *Table
	inLoop := false
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "data_"):
			cur = NewTable(strings.TrimPrefix(line, "data_"))
			blocks = append(blocks, cur)
			inLoop = false

		case line == "loop_":
			if cur == nil {
				return nil, apperr.New(apperr.ErrCodeInvalidStar, "line %d: loop_ outside a data block", lineNo)
			}
			inLoop = true

		case strings.HasPrefix(line, "_"):
			if cur == nil {
				return nil, apperr.New(apperr.ErrCodeInvalidStar, "line %d: label outside a data block", lineNo)
			}
			fields := strings.Fields(line)
			label := strings.TrimPrefix(fields[0], "_")
			if inLoop {
				// Loop header: "_rlnLabel #N". The index comment is ignored;
				// column order is the order of appearance.
				cur.Labels = append(cur.Labels, label)
				cur.reindex()
			} else {
				// Key-value block: one implicit row.
				if len(fields) < 2 {
					return nil, apperr.New(apperr.ErrCodeInvalidStar, "line %d: label %s has no value", lineNo, label)
				}
				cur.Labels = append(cur.Labels, label)
				cur.reindex()
				if len(cur.Rows) == 0 {
					cur.Rows = append(cur.Rows, nil)
				}
				cur.Rows[0] = append(cur.Rows[0], fields[1])
			}

		default:
			if cur == nil || !inLoop {
				return nil, apperr.New(apperr.ErrCodeInvalidStar, "line %d: unexpected data row", lineNo)
			}
			fields := strings.Fields(line)
			if len(fields) != len(cur.Labels) {
				return nil, apperr.New(apperr.ErrCodeInvalidStar,
					"line %d: %d values for %d columns", lineNo, len(fields), len(cur.Labels))
			}
			cur.Rows = append(cur.Rows, fields)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidStar, err, "read input")
	}
	return blocks, nil
}
