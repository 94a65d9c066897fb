// Package cli implements the subparticles command-line interface.
//
// This package provides commands for deriving subparticle metadata from
// particle tables (symmetry expansion and local reconstruction), tracing
// cryoSPARC job lineages, and batch-normalizing particle stacks. The CLI
// is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - expand: Derive transformed subparticle tables from a particle STAR file
//   - jobs: Trace a cryoSPARC job lineage to its metadata files
//   - normalize: Batch-normalize .mrcs stacks with relion_preprocess
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/emtools/subparticles/pkg/buildinfo"
)

const appName = "subparticles"

// Execute runs the subparticles CLI and returns an error if any command
// fails. This is the main entry point for the CLI application.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "Subparticles derives local-reconstruction metadata from particle tables",
		Long: `Subparticles composes per-particle orientations with user-specified
geometry (a target coordinate, an explicit transform, Euler angles, or a
symmetry point group) to produce the transformed particle tables used for
symmetry expansion and local reconstruction.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newExpandCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newCompletionCmd())

	return root.ExecuteContext(ctx)
}
