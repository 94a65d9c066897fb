// Package config loads the tool-wide configuration file. Settings that
// rarely change between runs live here rather than on the command line.
package config

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/BurntSushi/toml"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Config holds the settings read from the TOML config file.
type Config struct {
	// RelionPreprocess is the relion_preprocess binary to invoke. Empty
	// means look it up on PATH.
	RelionPreprocess string `toml:"relion_preprocess"`

	// Threads is the number of stacks processed concurrently.
	Threads int `toml:"threads"`

	// BlackDust and WhiteDust are the outlier replacement thresholds in
	// standard deviations. -1 disables replacement.
	BlackDust int `toml:"black_dust"`
	WhiteDust int `toml:"white_dust"`

	// PixelSize is the fallback pixel size in Angstroms for particle
	// tables that carry none. 0 leaves the built-in default in place.
	PixelSize float64 `toml:"pixel_size"`
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		Threads:   runtime.NumCPU(),
		BlackDust: -1,
		WhiteDust: -1,
	}
}

// Load reads a TOML config file, filling unset fields from the defaults.
// A missing file is not an error; it yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, apperr.Wrap(apperr.ErrCodeInternal, err, "parse config %s", path)
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	return cfg, nil
}

// Command resolves the relion_preprocess binary, consulting PATH when
// the config does not pin an explicit location.
func (c Config) Command() (string, error) {
	if c.RelionPreprocess != "" {
		if _, err := os.Stat(c.RelionPreprocess); err != nil {
			return "", apperr.Wrap(apperr.ErrCodeToolNotFound, err, "relion_preprocess at %s", c.RelionPreprocess)
		}
		return c.RelionPreprocess, nil
	}
	path, err := exec.LookPath("relion_preprocess")
	if err != nil {
		return "", apperr.Wrap(apperr.ErrCodeToolNotFound, err, "relion_preprocess not found in PATH")
	}
	return path, nil
}
