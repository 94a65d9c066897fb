package subparticle

import (
	"math"
	"testing"

	apperr "github.com/emtools/subparticles/pkg/errors"
	"github.com/emtools/subparticles/pkg/geom"
)

func TestValidateMissingGeometry(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"empty request", Options{}},
		{"target without origin", Options{Target: &geom.Vec3{1, 2, 3}}},
		{"transform without origin", Options{Transform: &Transform{R: geom.Identity()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); !apperr.Is(err, apperr.ErrCodeMissingGeometrySpec) {
				t.Errorf("Validate() = %v, want MISSING_GEOMETRY_SPEC", err)
			}
		})
	}
}

func TestValidateInvalidGeometry(t *testing.T) {
	nan := geom.Vec3{math.NaN(), 0, 0}
	tests := []struct {
		name string
		opts Options
	}{
		{"both axis shorthands", Options{I1C3: true, I1C5: true}},
		{"axis shorthand with foreign sym", Options{I1C3: true, Sym: "C2"}},
		{"non-finite target", Options{Target: &nan, BoxSize: 128}},
		{"non-finite euler", Options{Euler: &nan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); !apperr.Is(err, apperr.ErrCodeInvalidGeometry) {
				t.Errorf("Validate() = %v, want INVALID_GEOMETRY", err)
			}
		})
	}
}

func TestValidateAxisShorthand(t *testing.T) {
	opts := Options{I1C5: true}
	if err := opts.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if opts.Sym != "I1" {
		t.Errorf("Sym = %q, want I1", opts.Sym)
	}
	if opts.Subgroup != "C5" {
		t.Errorf("Subgroup = %q, want C5", opts.Subgroup)
	}

	opts = Options{I1C3: true, Sym: "I1"}
	if err := opts.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if opts.Subgroup != "C3" {
		t.Errorf("Subgroup = %q, want C3", opts.Subgroup)
	}
}

func TestValidateAcceptsEachMode(t *testing.T) {
	tgt := geom.Vec3{10, 0, 0}
	tests := []struct {
		name string
		opts Options
	}{
		{"target with boxsize", Options{Target: &tgt, BoxSize: 256}},
		{"euler alone", Options{Euler: &geom.Vec3{10, 20, 30}}},
		{"symmetry alone", Options{Sym: "C2"}},
		{"displacement alone", Options{Displacement: 15}},
		{"bare transform", Options{Transform: &Transform{R: geom.Identity()}, BoxSize: 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.Validate(); err != nil {
				t.Errorf("Validate() error: %v", err)
			}
		})
	}
}
