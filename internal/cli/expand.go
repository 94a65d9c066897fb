package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emtools/subparticles/pkg/config"
	"github.com/emtools/subparticles/pkg/star"
	"github.com/emtools/subparticles/pkg/subparticle"
)

// expandOpts holds the command-line flags for the expand command.
type expandOpts struct {
	apix         float64
	boxsize      float64
	classes      []int
	displacement float64
	origin       string
	target       string
	invert       bool
	psi          float64
	euler        string
	transform    string
	recenter     bool
	adjDefocus   bool
	shiftOnly    bool
	skipJoin     bool
	suffix       string
	sym          string
	subgroup     string
	i1C3         bool
	i1C5         bool
	budget       int
}

// engineOptions converts the flag values into engine options, parsing the
// vector and matrix literals.
func (o *expandOpts) engineOptions() (*subparticle.Options, error) {
	opts := &subparticle.Options{
		Sym:           o.sym,
		Displacement:  o.displacement,
		Subgroup:      o.subgroup,
		I1C3:          o.i1C3,
		I1C5:          o.i1C5,
		BoxSize:       o.boxsize,
		Psi:           o.psi,
		Apix:          o.apix,
		Invert:        o.invert,
		ShiftOnly:     o.shiftOnly,
		AdjustDefocus: o.adjDefocus,
		Classes:       o.classes,
		SearchBudget:  o.budget,
	}

	var err error
	if o.target != "" {
		if opts.Target, err = parseVec3(o.target, "target"); err != nil {
			return nil, err
		}
	}
	if o.origin != "" {
		if opts.Origin, err = parseVec3(o.origin, "origin"); err != nil {
			return nil, err
		}
	}
	if o.euler != "" {
		if opts.Euler, err = parseVec3(o.euler, "euler angles"); err != nil {
			return nil, err
		}
	}
	if o.transform != "" {
		if opts.Transform, err = parseTransform(o.transform); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// newExpandCmd creates the expand command, the main entry point of the tool.
func newExpandCmd() *cobra.Command {
	var opts expandOpts

	cmd := &cobra.Command{
		Use:   "expand <input.star> <output>",
		Short: "Derive transformed subparticle tables from a particle STAR file",
		Long: `Expand composes each particle's orientation with a geometric operator set
and writes the transformed particle tables.

The operator set comes from exactly one geometry source: a target coordinate
(--target), an explicit transformation matrix (--transform), Euler angles
(--euler), a symmetry point group (--sym), or a displacement along the
symmetry axis (--displacement).

Examples:
  subparticles expand particles.star sub.star --target 120,120,160 --boxsize 256
  subparticles expand particles.star expanded.star --sym C5
  subparticles expand particles.star vertex.star --I1-C5 --boxsize 432 --displacement 180`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return runExpand(c.Context(), &opts, args[0], args[1])
		},
	}

	cmd.Flags().Float64Var(&opts.apix, "apix", 0, "Angstroms per pixel (calculated from the input by default)")
	cmd.Flags().Float64Var(&opts.boxsize, "boxsize", 0, "particle box size in pixels (defines the origin only)")
	cmd.Flags().IntSliceVar(&opts.classes, "class", nil, "keep this class in the output, may be passed multiple times")
	cmd.Flags().Float64Var(&opts.displacement, "displacement", 0, "distance of the new origin along the symmetry axis (Angstroms)")
	cmd.Flags().StringVar(&opts.origin, "origin", "", "origin coordinates in Angstroms (x,y,z)")
	cmd.Flags().StringVar(&opts.target, "target", "", "target coordinates in Angstroms (x,y,z)")
	cmd.Flags().BoolVar(&opts.invert, "invert", false, "invert the transformation")
	cmd.Flags().Float64Var(&opts.psi, "psi", 0, "additional in-plane rotation of the target in degrees")
	cmd.Flags().StringVar(&opts.euler, "euler", "", "Euler angles (ZYZ intrinsic) to rotate particles (rot,tilt,psi in degrees)")
	cmd.Flags().StringVar(&opts.transform, "transform", "", "transformation matrix (3x3 or 3x4) in JSON format")
	cmd.Flags().BoolVar(&opts.recenter, "recenter", false, "recenter coordinates by subtracting integer origin shifts")
	cmd.Flags().BoolVar(&opts.adjDefocus, "adjust-defocus", false, "add the Z component of shifts to the defocus")
	cmd.Flags().BoolVar(&opts.shiftOnly, "shift-only", false, "keep the original view axis after the target transformation")
	cmd.Flags().BoolVar(&opts.skipJoin, "skip-join", false, "force multiple output files even if no suffix is provided")
	cmd.Flags().StringVar(&opts.suffix, "suffix", "", "suffix for multiple output files")
	cmd.Flags().StringVar(&opts.sym, "sym", "", "symmetry group for whole-particle expansion or symmetry-derived subparticles")
	cmd.Flags().StringVar(&opts.subgroup, "subgroup", "", "symmetry (sub)group to eliminate after the target transformation")
	cmd.Flags().BoolVar(&opts.i1C3, "I1-C3", false, "target the icosahedral C3 axis and set --subgroup C3")
	cmd.Flags().BoolVar(&opts.i1C5, "I1-C5", false, "target the icosahedral C5 axis and set --subgroup C5")
	cmd.Flags().IntVar(&opts.budget, "search-budget", 0, "cap on subgroup search candidates (0 uses the default)")

	return cmd
}

func runExpand(ctx context.Context, opts *expandOpts, input, output string) error {
	logger := loggerFromContext(ctx)

	engOpts, err := opts.engineOptions()
	if err != nil {
		return err
	}
	engOpts.Logger = logger

	if cfg, err := config.Load(configPath("")); err == nil && cfg.PixelSize > 0 {
		engOpts.DefaultApix = cfg.PixelSize
	}

	f, err := star.ParseFile(input)
	if err != nil {
		return err
	}
	logger.Debugf("Parsed %d particles from %s", f.Particles.Len(), input)

	if len(engOpts.Classes) > 0 {
		f.Particles, err = star.SelectClasses(f.Particles, engOpts.Classes)
		if err != nil {
			return err
		}
		logger.Infof("Selected %d particles in classes %v", f.Particles.Len(), engOpts.Classes)
	}

	prog := newProgress(logger)
	resolved, err := subparticle.Resolve(engOpts, f)
	if err != nil {
		return err
	}
	logger.Infof("Final rotation: %v", resolved.Rotation)
	logger.Infof("Final translation: %v (%f px)", resolved.Translation, resolved.Translation.Norm())

	exp, err := subparticle.NewExpansion(f.Particles, resolved, engOpts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resolved %d operators for %d particles", exp.Count(), f.Particles.Len()))

	written, err := writeExpansion(exp, f, resolved.Apix, opts, output)
	if err != nil {
		return err
	}

	printSuccess("Expanded %d particles into %d tables", f.Particles.Len(), exp.Count())
	for _, path := range written {
		printFile(path)
	}
	return nil
}

// writeExpansion writes the expanded tables. A suffix (or --skip-join)
// produces one file per operator next to the output path; otherwise the
// tables are interleaved into a single file.
func writeExpansion(exp *subparticle.Expansion, f *star.File, apix float64, opts *expandOpts, output string) ([]string, error) {
	// A single operator never needs suffixed files.
	perFile := (opts.suffix != "" || opts.skipJoin) && exp.Count() > 1

	finish := func(t *star.Table) (*star.Table, error) {
		if opts.recenter {
			if err := star.Recenter(t, apix); err != nil {
				return nil, err
			}
		}
		return t, nil
	}

	if !perFile {
		var tables []*star.Table
		for _, t := range exp.Tables() {
			t, err := finish(t)
			if err != nil {
				return nil, err
			}
			tables = append(tables, t)
		}
		joined := tables[0]
		if len(tables) > 1 {
			joined = star.Interleave(tables)
		}
		out := &star.File{Optics: f.Optics, Particles: joined}
		if err := star.WriteFile(output, out); err != nil {
			return nil, err
		}
		return []string{output}, nil
	}

	suffix := opts.suffix
	if suffix == "" {
		suffix = strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	}
	dir := filepath.Dir(output)

	var written []string
	for i, t := range exp.Tables() {
		t, err := finish(t)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.star", suffix, i))
		out := &star.File{Optics: f.Optics, Particles: t}
		if err := star.WriteFile(path, out); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}
