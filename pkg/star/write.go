package star

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Write emits a STAR file: the optics block first when present, then the
// particle block. Output follows the RELION 3.1 loop layout.
func Write(w io.Writer, f *File) error {
	bw := bufio.NewWriter(w)
	if f.Optics != nil {
		if err := writeTable(bw, f.Optics); err != nil {
			return err
		}
	}
	if err := writeTable(bw, f.Particles); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile writes the STAR file to path, creating or truncating it.
func WriteFile(path string, f *File) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(fh, f); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func writeTable(w *bufio.Writer, t *Table) error {
	name := t.Name
	if name == "" {
		name = "particles"
	}
	if _, err := fmt.Fprintf(w, "\ndata_%s\n\nloop_\n", name); err != nil {
		return err
	}
	for i, l := range t.Labels {
		if _, err := fmt.Fprintf(w, "_%s #%d\n", l, i+1); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i > 0 {
				if err := w.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := w.WriteString(cell); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
