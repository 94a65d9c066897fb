package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emtools/subparticles/pkg/lineage"
)

// jobsOpts holds the command-line flags for the jobs command.
type jobsOpts struct {
	sets   []int
	render string
}

// newJobsCmd creates the jobs command for tracing cryoSPARC job lineages.
func newJobsCmd() *cobra.Command {
	var opts jobsOpts

	cmd := &cobra.Command{
		Use:   "jobs <job-dir>",
		Short: "Trace a cryoSPARC job lineage to its metadata files",
		Long: `Jobs walks the parent chain of a cryoSPARC job directory and reports the
particle and micrograph metadata files the job's lineage produced.

Examples:
  subparticles jobs P12/J42
  subparticles jobs P12/J42 --sets 1,3
  subparticles jobs P12/J42 --render lineage.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runJobs(c.Context(), &opts, args[0])
		},
	}

	cmd.Flags().IntSliceVar(&opts.sets, "sets", nil, "restrict particle_sets outputs to these split numbers")
	cmd.Flags().StringVar(&opts.render, "render", "", "write the lineage graph to this file (.svg, .png or .dot)")

	return cmd
}

func runJobs(ctx context.Context, opts *jobsOpts, jobDir string) error {
	logger := loggerFromContext(ctx)

	files, err := lineage.Collect(jobDir, lineage.Options{
		Sets:   opts.sets,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	if files.Empty() {
		printWarning("No metadata files found in the lineage of %s", filepath.Base(jobDir))
	}

	printCategory("Particles", files.Particles)
	printCategory("Particles (passthrough)", files.ParticlesPassthrough)
	printCategory("Micrographs", files.Micrographs)
	printCategory("Micrographs (passthrough)", files.MicrographsPassthrough)

	if opts.render != "" {
		return renderLineage(ctx, jobDir, opts.render)
	}
	return nil
}

func printCategory(name string, paths []string) {
	printKeyValue(name, fmt.Sprintf("%d file(s)", len(paths)))
	for _, p := range paths {
		printFile(p)
	}
}

// renderLineage traces the full ancestor graph and writes it as SVG or dot,
// chosen by the output extension.
func renderLineage(ctx context.Context, jobDir, out string) error {
	sp := newSpinnerWithContext(ctx, "Rendering lineage graph...")
	sp.Start()
	defer sp.Stop()

	g, err := lineage.Trace(jobDir)
	if err != nil {
		return err
	}

	var data []byte
	switch ext := strings.ToLower(filepath.Ext(out)); ext {
	case ".dot", ".gv":
		data = []byte(g.DOT())
	case ".svg":
		if data, err = g.RenderSVG(ctx); err != nil {
			return err
		}
	case ".png":
		if data, err = g.RenderPNG(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported lineage graph format %q (use .svg, .png or .dot)", ext)
	}
	sp.Stop()

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	printSuccess("Wrote lineage graph with %d jobs", len(g.Nodes))
	printFile(out)
	return nil
}
