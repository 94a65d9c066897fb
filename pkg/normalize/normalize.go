// Package normalize batch-normalizes particle stacks by driving
// relion_preprocess over every .mrcs file in a directory.
package normalize

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/emtools/subparticles/pkg/config"
	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Options configures one normalization run.
type Options struct {
	// InputDir is scanned non-recursively for .mrcs stacks.
	InputDir string

	// OutputDir receives the normalized stacks under their original
	// names. Created if missing.
	OutputDir string

	// BGDiameter is the diameter of the background circle in pixels.
	// relion_preprocess takes the radius, so this is halved.
	BGDiameter int

	// Force reprocesses stacks whose output already exists.
	Force bool

	// Progress, when set, is called after each stack finishes.
	Progress func(done, total int)

	Logger *log.Logger
}

func (o *Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return o.Logger
}

// Result summarizes a run.
type Result struct {
	Total   int
	Skipped int
	Failed  int
}

// Run normalizes every stack in opts.InputDir. A stack that fails keeps
// the run going; the failure is logged and counted. An error is returned
// only when the run cannot start at all.
func Run(ctx context.Context, cfg config.Config, opts Options) (Result, error) {
	logger := opts.logger()

	cmd, err := cfg.Command()
	if err != nil {
		return Result{}, err
	}
	if opts.BGDiameter <= 0 {
		return Result{}, apperr.New(apperr.ErrCodeInvalidGeometry, "background diameter must be positive, got %d", opts.BGDiameter)
	}

	files, err := filepath.Glob(filepath.Join(opts.InputDir, "*.mrcs"))
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, apperr.New(apperr.ErrCodeFileNotFound, "no .mrcs files found in %s", opts.InputDir)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Result{}, err
	}

	var done, skipped, failed atomic.Int64
	total := len(files)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Threads)
	for _, file := range files {
		g.Go(func() error {
			defer func() {
				n := int(done.Add(1))
				if opts.Progress != nil {
					opts.Progress(n, total)
				}
			}()

			out := filepath.Join(opts.OutputDir, filepath.Base(file))
			if !opts.Force {
				if _, err := os.Stat(out); err == nil {
					skipped.Add(1)
					return nil
				}
			}
			if err := normalizeStack(ctx, cmd, cfg, opts, file, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("normalization failed", "stack", file, "err", err)
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{
		Total:   total,
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

func normalizeStack(ctx context.Context, bin string, cfg config.Config, opts Options, in, out string) error {
	cmd := exec.CommandContext(ctx, bin,
		"--operate_on", in,
		"--operate_out", out,
		"--norm",
		"--bg_radius", strconv.Itoa(opts.BGDiameter/2),
		"--black_dust", strconv.Itoa(cfg.BlackDust),
		"--white_dust", strconv.Itoa(cfg.WhiteDust),
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}
