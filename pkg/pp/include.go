package pp

import (
	"fmt"
	"os"
	"path/filepath"
)

// IncludeKind distinguishes the two #include spellings, which search
// different path orders (§4.10).
type IncludeKind int

const (
	IncludeQuoted IncludeKind = iota
	IncludeAngled
)

// MaxIncludeDepth bounds nested #include processing so a include cycle
// that the cycle detector somehow misses cannot recurse forever.
const MaxIncludeDepth = 200

// IncludeResolver resolves #include targets to file content, using the
// caller-supplied ordered path list ("path") and the directories of
// files currently being processed ("temp_path"). It intentionally never
// probes the host compiler or the OS for additional system directories:
// that file-system convention is out of scope (§4.10).
type IncludeResolver struct {
	Paths      []string // "path": caller-supplied -I/-isystem directories, in order
	stack      []string // "temp_path": directories of the include chain, innermost last
	absStack   []string // absolute paths of files currently being processed, for cycle detection
	pragmaOnce map[string]bool
}

// NewIncludeResolver returns a resolver with no configured paths.
func NewIncludeResolver() *IncludeResolver {
	return &IncludeResolver{pragmaOnce: make(map[string]bool)}
}

// AddPath appends dir to the ordered search path list.
func (r *IncludeResolver) AddPath(dir string) {
	r.Paths = append(r.Paths, dir)
}

// searchDirs returns the ordered list of directories to try for the
// given include form. Angled includes search path, then the process
// working directory, then the include-chain directories; quoted
// includes search the include-chain directories first, then the working
// directory, then path — the reverse priority, so a local header always
// shadows a library one (§4.10).
func (r *IncludeResolver) searchDirs(kind IncludeKind) []string {
	chain := make([]string, len(r.stack))
	for i, d := range r.stack {
		chain[len(r.stack)-1-i] = d
	}
	if kind == IncludeAngled {
		dirs := append([]string{}, r.Paths...)
		dirs = append(dirs, ".")
		return append(dirs, chain...)
	}
	dirs := append([]string{}, chain...)
	dirs = append(dirs, ".")
	return append(dirs, r.Paths...)
}

// Resolve locates filename using the search order for kind and returns
// its absolute path and contents.
func (r *IncludeResolver) Resolve(filename string, kind IncludeKind) (string, []byte, error) {
	if filepath.IsAbs(filename) {
		content, err := os.ReadFile(filename)
		if err != nil {
			return "", nil, &IncludeError{Name: filename, Err: err}
		}
		return filename, content, nil
	}
	for _, dir := range r.searchDirs(kind) {
		candidate := filepath.Join(dir, filename)
		content, err := os.ReadFile(candidate)
		if err == nil {
			abs, absErr := filepath.Abs(candidate)
			if absErr != nil {
				abs = candidate
			}
			return abs, content, nil
		}
	}
	return "", nil, &IncludeError{Name: filename, Err: os.ErrNotExist}
}

// PushFile records that path is now being processed, for cycle detection
// and so that nested quoted includes search its directory first. Callers
// must defer PopFile on every exit path.
func (r *IncludeResolver) PushFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	for _, seen := range r.absStack {
		if seen == abs {
			return &CircularIncludeError{Path: abs, Stack: append([]string{}, r.absStack...)}
		}
	}
	if len(r.absStack) >= MaxIncludeDepth {
		return fmt.Errorf("#include nesting exceeds maximum depth of %d", MaxIncludeDepth)
	}
	r.absStack = append(r.absStack, abs)
	r.stack = append(r.stack, filepath.Dir(abs))
	return nil
}

// PopFile undoes the effect of the matching PushFile.
func (r *IncludeResolver) PopFile() {
	if len(r.absStack) == 0 {
		return
	}
	r.absStack = r.absStack[:len(r.absStack)-1]
	r.stack = r.stack[:len(r.stack)-1]
}

// Depth reports how many files are currently nested.
func (r *IncludeResolver) Depth() int { return len(r.absStack) }

// MarkPragmaOnce records that path (as resolved by Resolve) must not be
// included again.
func (r *IncludeResolver) MarkPragmaOnce(path string) {
	r.pragmaOnce[path] = true
}

// IsAlreadyIncluded reports whether path was previously marked with
// #pragma once.
func (r *IncludeResolver) IsAlreadyIncluded(path string) bool {
	return r.pragmaOnce[path]
}

// IncludeError reports that a header could not be located or read.
type IncludeError struct {
	Name string
	Err  error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("cannot find or read %q: %v", e.Name, e.Err)
}

func (e *IncludeError) Unwrap() error { return e.Err }

// CircularIncludeError reports that a file includes itself, directly or
// transitively.
type CircularIncludeError struct {
	Path  string
	Stack []string
}

func (e *CircularIncludeError) Error() string {
	return fmt.Sprintf("circular #include of %q", e.Path)
}
