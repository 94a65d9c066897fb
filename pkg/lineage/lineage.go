// Package lineage resolves the upstream job graph of a cryoSPARC job
// directory to find the metadata files that describe its particles and
// micrographs.
//
// Each job directory carries a job.json naming its type, its parents, and
// its output result groups. Starting from one job, the traversal walks the
// parent chain until every file category is satisfied, skipping outputs
// that are rejected/excluded leftovers and files that no longer exist on
// disk.
//
// The traversal is pure: visited state is an explicit parameter, and every
// job contributes an immutable FileSet that the caller merges. Nothing is
// shared between recursive calls.
package lineage

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	apperr "github.com/emtools/subparticles/pkg/errors"
)

// Job mirrors the fields of a cryoSPARC job.json that the traversal needs.
type Job struct {
	UID     string   `json:"uid"`
	Type    string   `json:"type"`
	Parents []string `json:"parents"`
	Outputs []Output `json:"output_results"`
}

// Output is one output result group of a job.
type Output struct {
	GroupName   string   `json:"group_name"`
	Metafiles   []string `json:"metafiles"`
	Passthrough bool     `json:"passthrough"`
}

// FileSet groups the metadata files collected from a job lineage. Each
// slice is sorted and free of duplicates.
type FileSet struct {
	Particles              []string
	ParticlesPassthrough   []string
	Micrographs            []string
	MicrographsPassthrough []string
}

// Complete reports whether every category has at least one file.
func (s FileSet) Complete() bool {
	return len(s.Particles) > 0 && len(s.ParticlesPassthrough) > 0 &&
		len(s.Micrographs) > 0 && len(s.MicrographsPassthrough) > 0
}

// Empty reports whether no category has any file.
func (s FileSet) Empty() bool {
	return len(s.Particles) == 0 && len(s.ParticlesPassthrough) == 0 &&
		len(s.Micrographs) == 0 && len(s.MicrographsPassthrough) == 0
}

// merge fills each empty category of s from other, leaving non-empty
// categories untouched: a job closer to the start of the traversal wins.
func (s FileSet) merge(other FileSet) FileSet {
	if len(s.Particles) == 0 {
		s.Particles = other.Particles
	}
	if len(s.ParticlesPassthrough) == 0 {
		s.ParticlesPassthrough = other.ParticlesPassthrough
	}
	if len(s.Micrographs) == 0 {
		s.Micrographs = other.Micrographs
	}
	if len(s.MicrographsPassthrough) == 0 {
		s.MicrographsPassthrough = other.MicrographsPassthrough
	}
	return s
}

// Job types whose refined output is split across per-class files.
var splitJobTypes = map[string]bool{
	"hetero_refine": true,
	"homo_abinit":   true,
	"class_3D":      true,
}

// Job types that split particles into numbered sets.
const setJobType = "particle_sets"

var setSplitRe = regexp.MustCompile(`split_(\d+)`)

// Substrings marking leftover outputs that must not feed downstream jobs.
var junkMarkers = []string{
	"excluded", "incomplete", "remainder", "rejected", "uncategorized", "unused",
}

// Options configures the traversal.
type Options struct {
	// Sets restricts particle_sets outputs to the given split numbers.
	// Empty keeps every split.
	Sets []int

	// Logger receives warnings about missing jobs and vanished files.
	Logger *log.Logger
}

func (o *Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return o.Logger
}

// Collect walks the lineage starting at jobDir and returns the collected
// file set. Missing or corrupt parent jobs produce a warning and an empty
// contribution rather than an error; an error is returned only when the
// starting job itself cannot be read.
func Collect(jobDir string, opts Options) (FileSet, error) {
	abs, err := filepath.Abs(jobDir)
	if err != nil {
		return FileSet{}, err
	}
	if _, err := loadJob(abs); err != nil {
		return FileSet{}, err
	}
	return collect(abs, opts, map[string]bool{}), nil
}

// collect gathers the file set for one job and recurses into its parents.
// visited holds the job UIDs already expanded; it is threaded through the
// recursion explicitly so sibling branches share it without any job owning
// mutable traversal state.
func collect(jobDir string, opts Options, visited map[string]bool) FileSet {
	logger := opts.logger()

	job, err := loadJob(jobDir)
	if err != nil {
		logger.Warnf("parent job %q is missing or corrupted", filepath.Base(jobDir))
		return FileSet{}
	}
	if visited[job.UID] {
		return FileSet{}
	}
	visited[job.UID] = true

	files := classifyOutputs(job, jobDir, opts)
	files = dropMissing(files, logger)

	for _, parent := range job.Parents {
		if files.Complete() {
			break
		}
		files = files.merge(collect(filepath.Join(filepath.Dir(jobDir), parent), opts, visited))
	}
	return files
}

// classifyOutputs sorts a job's output metafiles into the file set
// categories, honoring the special handling for split and set jobs.
func classifyOutputs(job *Job, jobDir string, opts Options) FileSet {
	var files FileSet
	projectDir := filepath.Dir(jobDir)

	for _, out := range job.Outputs {
		if len(out.Metafiles) == 0 {
			continue
		}
		switch {
		case splitJobTypes[job.Type]:
			// Refinement-style jobs split the good output per class; only
			// the per-class particle groups and the combined passthrough
			// carry forward.
			keep := (!out.Passthrough && strings.Contains(out.GroupName, "particles_class_")) ||
				(out.Passthrough && out.GroupName == "particles_all_classes")
			if keep {
				last := out.Metafiles[len(out.Metafiles)-1]
				files = addParticle(files, out.Passthrough, filepath.Join(projectDir, last))
			}

		case job.Type == setJobType:
			m := setSplitRe.FindStringSubmatch(out.GroupName)
			if m == nil || !wantSet(opts.Sets, m[1]) {
				continue
			}
			last := out.Metafiles[len(out.Metafiles)-1]
			files = addParticle(files, out.Passthrough, filepath.Join(projectDir, last))

		default:
			for _, file := range out.Metafiles {
				if isJunk(file) {
					continue
				}
				path := filepath.Join(projectDir, file)
				switch {
				case strings.Contains(file, "particles"):
					files = addParticle(files, out.Passthrough, path)
				case strings.Contains(file, "micrographs"):
					files = addMicrograph(files, out.Passthrough, path)
				}
			}
		}
	}
	return files
}

func addParticle(s FileSet, passthrough bool, path string) FileSet {
	if passthrough {
		s.ParticlesPassthrough = appendUnique(s.ParticlesPassthrough, path)
	} else {
		s.Particles = appendUnique(s.Particles, path)
	}
	return s
}

func addMicrograph(s FileSet, passthrough bool, path string) FileSet {
	if passthrough {
		s.MicrographsPassthrough = appendUnique(s.MicrographsPassthrough, path)
	} else {
		s.Micrographs = appendUnique(s.Micrographs, path)
	}
	return s
}

func appendUnique(paths []string, p string) []string {
	for _, x := range paths {
		if x == p {
			return paths
		}
	}
	return append(paths, p)
}

func isJunk(file string) bool {
	for _, marker := range junkMarkers {
		if strings.Contains(file, marker) {
			return true
		}
	}
	return false
}

func wantSet(sets []int, numeral string) bool {
	if len(sets) == 0 {
		return true
	}
	for _, s := range sets {
		if numeral == strconv.Itoa(s) {
			return true
		}
	}
	return false
}

// dropMissing removes files that no longer exist on disk, with a warning
// for each, since a vanished metafile usually means a purged job.
func dropMissing(s FileSet, logger *log.Logger) FileSet {
	filter := func(paths []string) []string {
		var kept []string
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				logger.Warnf("expected metadata file does not exist: %s", p)
				continue
			}
			kept = append(kept, p)
		}
		return kept
	}
	s.Particles = filter(s.Particles)
	s.ParticlesPassthrough = filter(s.ParticlesPassthrough)
	s.Micrographs = filter(s.Micrographs)
	s.MicrographsPassthrough = filter(s.MicrographsPassthrough)
	return s
}

func loadJob(jobDir string) (*Job, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, "job.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "job %s has no job.json", filepath.Base(jobDir))
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidJob, err, "parse %s", filepath.Join(jobDir, "job.json"))
	}
	return &job, nil
}
