package config

import (
	"os"
	"path/filepath"
	"testing"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("Load = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
relion_preprocess = "/opt/relion/bin/relion_preprocess"
threads = 4
black_dust = 5
white_dust = 5
pixel_size = 1.065
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.RelionPreprocess != "/opt/relion/bin/relion_preprocess" {
		t.Errorf("RelionPreprocess = %q", cfg.RelionPreprocess)
	}
	if cfg.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Threads)
	}
	if cfg.BlackDust != 5 || cfg.WhiteDust != 5 {
		t.Errorf("dust = %d/%d, want 5/5", cfg.BlackDust, cfg.WhiteDust)
	}
	if cfg.PixelSize != 1.065 {
		t.Errorf("PixelSize = %g, want 1.065", cfg.PixelSize)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("threads = 0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Threads <= 0 {
		t.Errorf("Threads = %d, want a positive default", cfg.Threads)
	}
	if cfg.BlackDust != -1 {
		t.Errorf("BlackDust = %d, want default -1", cfg.BlackDust)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("threads = [not toml"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); !apperr.Is(err, apperr.ErrCodeInternal) {
		t.Errorf("Load error = %v, want INTERNAL", err)
	}
}

func TestCommandMissingPinnedBinary(t *testing.T) {
	cfg := Config{RelionPreprocess: filepath.Join(t.TempDir(), "no-such-binary")}
	if _, err := cfg.Command(); !apperr.Is(err, apperr.ErrCodeToolNotFound) {
		t.Errorf("Command error = %v, want TOOL_NOT_FOUND", err)
	}
}

func TestCommandPinnedBinary(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "relion_preprocess")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := Config{RelionPreprocess: bin}
	got, err := cfg.Command()
	if err != nil {
		t.Fatalf("Command error: %v", err)
	}
	if got != bin {
		t.Errorf("Command = %q, want %q", got, bin)
	}
}
