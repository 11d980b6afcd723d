// Package amalgamate drives pkg/pp over a declarative batch job: load a
// YAML job description, run one preprocessor pass over its entry file, and
// write the result to the configured output path.
package amalgamate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/raymyers/ccpp/pkg/pp"
)

// Job describes one amalgamation run, loaded from YAML (§6):
//
//	entry: src/main.c
//	output: build/amalgamated.c
//	include_paths: [include, third_party/include]
//	defines:
//	  NDEBUG: "1"
//	  VERSION: "\"1.2.3\""
//	undefines: [DEBUG_LOGGING]
//	trigraphs: false
type Job struct {
	Entry        string            `yaml:"entry"`
	Output       string            `yaml:"output"`
	IncludePaths []string          `yaml:"include_paths"`
	Defines      map[string]string `yaml:"defines"`
	Undefines    []string          `yaml:"undefines"`
	Trigraphs    bool              `yaml:"trigraphs"`
}

// File is a YAML document listing one or more amalgamation jobs, so a
// single config can drive a multi-target build.
type File struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadFile reads and parses a job file from path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	return &f, nil
}

// LoadJob reads a single job description from path. It accepts either a
// bare Job document or a File with exactly one entry in Jobs, so the same
// format works for both the single-target and multi-target cases.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file %s: %w", path, err)
	}
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	if j.Entry == "" {
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing job file %s: %w", path, err)
		}
		if len(f.Jobs) != 1 {
			return nil, fmt.Errorf("%s: expected a single job or a one-element jobs list, got %d", path, len(f.Jobs))
		}
		j = f.Jobs[0]
	}
	return &j, nil
}

// Run drives one pp.Engine over job.Entry and writes the amalgamated
// output to job.Output, creating its parent directory if necessary.
// It returns every diagnostic the engine produced (even on success, since
// warnings don't stop the run) alongside any hard error.
func Run(job *Job) ([]pp.Diagnostic, error) {
	e := pp.NewEngine()
	e.Trigraphs = job.Trigraphs

	for _, dir := range job.IncludePaths {
		e.AddPath(dir)
	}
	for name, value := range job.Defines {
		if err := e.Define(name, value); err != nil {
			return nil, fmt.Errorf("job %s: defining %s: %w", job.Entry, name, err)
		}
	}
	for _, name := range job.Undefines {
		e.Undef(name)
	}

	if err := e.Parse(job.Entry); err != nil {
		return e.Diagnostics, fmt.Errorf("job %s: %w", job.Entry, err)
	}

	if job.Output != "" {
		if dir := filepath.Dir(job.Output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return e.Diagnostics, fmt.Errorf("job %s: creating output directory: %w", job.Entry, err)
			}
		}
		out, err := os.Create(job.Output)
		if err != nil {
			return e.Diagnostics, fmt.Errorf("job %s: creating output file: %w", job.Entry, err)
		}
		defer out.Close()
		if err := e.Write(out); err != nil {
			return e.Diagnostics, fmt.Errorf("job %s: writing output: %w", job.Entry, err)
		}
	}

	if e.ReturnCode != 0 {
		return e.Diagnostics, fmt.Errorf("job %s: %d preprocessing error(s)", job.Entry, e.ReturnCode)
	}
	return e.Diagnostics, nil
}

// RunFile runs every job in f in order, collecting every job's diagnostics
// and joining every job's hard error into a single non-nil error via
// errors.Join (§7), so a multi-target batch reports every failure instead
// of stopping at the first one.
func RunFile(f *File) ([]pp.Diagnostic, error) {
	var allDiags []pp.Diagnostic
	var errs []error
	for i := range f.Jobs {
		diags, err := Run(&f.Jobs[i])
		allDiags = append(allDiags, diags...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return allDiags, errors.Join(errs...)
}
