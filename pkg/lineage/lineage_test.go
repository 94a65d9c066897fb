package lineage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// writeJob creates a job directory with a job.json under projectDir.
func writeJob(t *testing.T, projectDir string, job Job) {
	t.Helper()
	dir := filepath.Join(projectDir, job.UID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "job.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// touch creates an empty metadata file under projectDir.
func touch(t *testing.T, projectDir, rel string) {
	t.Helper()
	path := filepath.Join(projectDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectWalksParents(t *testing.T) {
	project := t.TempDir()

	touch(t, project, "J1/particles.cs")
	touch(t, project, "J1/passthrough_particles.cs")
	touch(t, project, "J1/micrographs.cs")
	touch(t, project, "J1/passthrough_micrographs.cs")

	writeJob(t, project, Job{
		UID:  "J1",
		Type: "extract_micrographs",
		Outputs: []Output{
			{GroupName: "particles", Metafiles: []string{"J1/particles.cs"}},
			{GroupName: "particles", Metafiles: []string{"J1/passthrough_particles.cs"}, Passthrough: true},
			{GroupName: "micrographs", Metafiles: []string{"J1/micrographs.cs"}},
			{GroupName: "micrographs", Metafiles: []string{"J1/passthrough_micrographs.cs"}, Passthrough: true},
		},
	})
	writeJob(t, project, Job{
		UID:     "J2",
		Type:    "nonuniform_refine",
		Parents: []string{"J1"},
	})

	files, err := Collect(filepath.Join(project, "J2"), Options{})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !files.Complete() {
		t.Fatalf("file set incomplete: %+v", files)
	}
	if len(files.Particles) != 1 || !strings.HasSuffix(files.Particles[0], "particles.cs") {
		t.Errorf("Particles = %v", files.Particles)
	}
}

func TestCollectNearestJobWins(t *testing.T) {
	project := t.TempDir()

	touch(t, project, "J1/particles.cs")
	touch(t, project, "J2/particles.cs")

	writeJob(t, project, Job{
		UID:  "J1",
		Type: "import_particles",
		Outputs: []Output{
			{GroupName: "particles", Metafiles: []string{"J1/particles.cs"}},
		},
	})
	writeJob(t, project, Job{
		UID:     "J2",
		Type:    "restack_particles",
		Parents: []string{"J1"},
		Outputs: []Output{
			{GroupName: "particles", Metafiles: []string{"J2/particles.cs"}},
		},
	})
	writeJob(t, project, Job{UID: "J3", Type: "homo_refine", Parents: []string{"J2"}})

	files, err := Collect(filepath.Join(project, "J3"), Options{})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(files.Particles) != 1 {
		t.Fatalf("Particles = %v, want exactly one", files.Particles)
	}
	if !strings.Contains(files.Particles[0], "J2") {
		t.Errorf("Particles = %v, want the closer job's file", files.Particles)
	}
}

func TestCollectSkipsJunkOutputs(t *testing.T) {
	project := t.TempDir()

	touch(t, project, "J1/particles_excluded.cs")
	touch(t, project, "J1/particles_rejected.cs")
	touch(t, project, "J1/particles_selected.cs")

	writeJob(t, project, Job{
		UID:  "J1",
		Type: "select_2D",
		Outputs: []Output{
			{GroupName: "particles_excluded", Metafiles: []string{"J1/particles_excluded.cs"}},
			{GroupName: "particles_rejected", Metafiles: []string{"J1/particles_rejected.cs"}},
			{GroupName: "particles_selected", Metafiles: []string{"J1/particles_selected.cs"}},
		},
	})

	files, err := Collect(filepath.Join(project, "J1"), Options{})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(files.Particles) != 1 || !strings.Contains(files.Particles[0], "selected") {
		t.Errorf("Particles = %v, want only the selected output", files.Particles)
	}
}

func TestCollectSplitJob(t *testing.T) {
	project := t.TempDir()

	touch(t, project, "J1/class0_iter1.cs")
	touch(t, project, "J1/class0_iter2.cs")
	touch(t, project, "J1/all_classes.cs")

	writeJob(t, project, Job{
		UID:  "J1",
		Type: "hetero_refine",
		Outputs: []Output{
			{GroupName: "particles_class_0", Metafiles: []string{"J1/class0_iter1.cs", "J1/class0_iter2.cs"}},
			{GroupName: "particles_all_classes", Metafiles: []string{"J1/all_classes.cs"}, Passthrough: true},
		},
	})

	files, err := Collect(filepath.Join(project, "J1"), Options{})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	// Only the final iteration of the class output survives.
	if len(files.Particles) != 1 || !strings.HasSuffix(files.Particles[0], "class0_iter2.cs") {
		t.Errorf("Particles = %v, want the last class metafile", files.Particles)
	}
	if len(files.ParticlesPassthrough) != 1 {
		t.Errorf("ParticlesPassthrough = %v", files.ParticlesPassthrough)
	}
}

func TestCollectParticleSets(t *testing.T) {
	project := t.TempDir()

	touch(t, project, "J1/split_0.cs")
	touch(t, project, "J1/split_1.cs")

	writeJob(t, project, Job{
		UID:  "J1",
		Type: "particle_sets",
		Outputs: []Output{
			{GroupName: "split_0", Metafiles: []string{"J1/split_0.cs"}},
			{GroupName: "split_1", Metafiles: []string{"J1/split_1.cs"}},
		},
	})

	files, err := Collect(filepath.Join(project, "J1"), Options{Sets: []int{1}})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(files.Particles) != 1 || !strings.HasSuffix(files.Particles[0], "split_1.cs") {
		t.Errorf("Particles = %v, want only split_1", files.Particles)
	}
}

func TestCollectDropsMissingFiles(t *testing.T) {
	project := t.TempDir()

	writeJob(t, project, Job{
		UID:  "J1",
		Type: "import_particles",
		Outputs: []Output{
			{GroupName: "particles", Metafiles: []string{"J1/vanished_particles.cs"}},
		},
	})

	files, err := Collect(filepath.Join(project, "J1"), Options{})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !files.Empty() {
		t.Errorf("file set = %+v, want empty", files)
	}
}

func TestCollectMissingStartJob(t *testing.T) {
	_, err := Collect(filepath.Join(t.TempDir(), "J99"), Options{})
	if !apperr.Is(err, apperr.ErrCodeFileNotFound) {
		t.Fatalf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestCollectMissingParentTolerated(t *testing.T) {
	project := t.TempDir()

	writeJob(t, project, Job{
		UID:     "J2",
		Type:    "homo_refine",
		Parents: []string{"J1"},
	})

	files, err := Collect(filepath.Join(project, "J2"), Options{})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if !files.Empty() {
		t.Errorf("file set = %+v, want empty", files)
	}
}

func TestCollectCycleSafe(t *testing.T) {
	project := t.TempDir()

	writeJob(t, project, Job{UID: "J1", Type: "a", Parents: []string{"J2"}})
	writeJob(t, project, Job{UID: "J2", Type: "b", Parents: []string{"J1"}})

	if _, err := Collect(filepath.Join(project, "J1"), Options{}); err != nil {
		t.Fatalf("Collect error on cyclic parents: %v", err)
	}
}

func TestTraceGraph(t *testing.T) {
	project := t.TempDir()

	writeJob(t, project, Job{UID: "J1", Type: "import_movies"})
	writeJob(t, project, Job{UID: "J2", Type: "patch_motion", Parents: []string{"J1"}})
	writeJob(t, project, Job{UID: "J3", Type: "extract", Parents: []string{"J2", "J1"}})

	g, err := Trace(filepath.Join(project, "J3"))
	if err != nil {
		t.Fatalf("Trace error: %v", err)
	}
	if g.Root != "J3" {
		t.Errorf("Root = %q, want J3", g.Root)
	}
	if len(g.Nodes) != 3 {
		t.Errorf("Nodes = %v, want 3 jobs", g.Nodes)
	}
	if len(g.Edges) != 3 {
		t.Errorf("Edges = %v, want 3 edges", g.Edges)
	}

	dot := g.DOT()
	for _, want := range []string{"digraph", `"J1" -> "J2"`, `"J2" -> "J3"`, "patch_motion"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}
