package cli

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/emtools/subparticles/pkg/config"
	"github.com/emtools/subparticles/pkg/normalize"
)

// normalizeOpts holds the command-line flags for the normalize command.
type normalizeOpts struct {
	bgDiameter int
	blackDust  int
	whiteDust  int
	threads    int
	force      bool
	config     string
	noTUI      bool
}

// newNormalizeCmd creates the normalize command wrapping relion_preprocess.
func newNormalizeCmd() *cobra.Command {
	var opts normalizeOpts

	cmd := &cobra.Command{
		Use:   "normalize <input-dir> <output-dir>",
		Short: "Batch-normalize .mrcs particle stacks with relion_preprocess",
		Long: `Normalize runs relion_preprocess over every .mrcs stack in the input
directory and writes the normalized stacks to the output directory under
their original names. Stacks whose output already exists are skipped
unless --force is given.

The relion_preprocess binary is located via the config file, then $PATH.

Example:
  subparticles normalize Extract/job021 picks --bg-diameter 200`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return runNormalize(c.Context(), c, &opts, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.bgDiameter, "bg-diameter", 0, "diameter of the background circle in pixels (required)")
	cmd.Flags().IntVar(&opts.blackDust, "black-dust", -1, "black dust removal threshold in standard deviations (-1 disables)")
	cmd.Flags().IntVar(&opts.whiteDust, "white-dust", -1, "white dust removal threshold in standard deviations (-1 disables)")
	cmd.Flags().IntVar(&opts.threads, "threads", 0, "number of stacks processed concurrently (0 uses the config or CPU count)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "reprocess stacks whose output already exists")
	cmd.Flags().StringVar(&opts.config, "config", "", "config file (default ~/.config/subparticles/config.toml)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-progress", false, "disable the progress bar")
	_ = cmd.MarkFlagRequired("bg-diameter")

	return cmd
}

func runNormalize(ctx context.Context, cmd *cobra.Command, opts *normalizeOpts, inputDir, outputDir string) error {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load(configPath(opts.config))
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("threads") && opts.threads > 0 {
		cfg.Threads = opts.threads
	}
	if cmd.Flags().Changed("black-dust") {
		cfg.BlackDust = opts.blackDust
	}
	if cmd.Flags().Changed("white-dust") {
		cfg.WhiteDust = opts.whiteDust
	}

	runOpts := normalize.Options{
		InputDir:   inputDir,
		OutputDir:  outputDir,
		BGDiameter: opts.bgDiameter,
		Force:      opts.force,
		Logger:     logger,
	}

	prog := newProgress(logger)

	var res normalize.Result
	if opts.noTUI {
		res, err = normalize.Run(ctx, cfg, runOpts)
	} else {
		res, err = runWithProgressBar(ctx, cfg, runOpts)
	}
	if err != nil {
		return err
	}

	prog.done("Normalization finished")
	printSuccess("Normalized %d stacks (%d skipped)", res.Total-res.Skipped-res.Failed, res.Skipped)
	if res.Failed > 0 {
		printWarning("%d stacks failed, see the log above", res.Failed)
	}
	return nil
}

// runWithProgressBar runs the normalization while a bubbletea progress bar
// tracks completion on the terminal.
func runWithProgressBar(ctx context.Context, cfg config.Config, runOpts normalize.Options) (normalize.Result, error) {
	p := tea.NewProgram(NewProgressModel("Normalizing", 0), tea.WithContext(ctx))
	runOpts.Progress = func(done, total int) {
		p.Send(progressMsg{done: done, total: total})
	}

	var res normalize.Result
	var runErr error
	go func() {
		res, runErr = normalize.Run(ctx, cfg, runOpts)
		p.Send(finishedMsg{})
	}()

	if _, err := p.Run(); err != nil && runErr == nil {
		return res, err
	}
	return res, runErr
}

// configPath resolves the config file location, preferring an explicit
// flag, then XDG config, then the home directory.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if cfgHome := os.Getenv("XDG_CONFIG_HOME"); cfgHome != "" {
		return filepath.Join(cfgHome, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}
