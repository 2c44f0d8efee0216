// Package artifacts tracks the files a run writes so they can be listed or
// removed afterwards.
package artifacts

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry holds paths relative to its base directory. Paths outside the
// base are kept as given.
type Registry struct {
	base string

	mu    sync.Mutex
	paths map[string]struct{}
}

// CleanupReport is what Cleanup did with each registered path.
type CleanupReport struct {
	Deleted  []string          `json:"deleted"`
	NotFound []string          `json:"not_found"`
	Errors   map[string]string `json:"errors,omitempty"`
}

func New(base string) *Registry {
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return &Registry{base: base, paths: make(map[string]struct{})}
}

// Base returns the directory relative paths are resolved against.
func (r *Registry) Base() string { return r.base }

func (r *Registry) rel(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.base, path)
	}
	rel, err := filepath.Rel(r.base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func (r *Registry) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(r.base, rel)
}

// Register records a file. Call it after the file was written.
func (r *Registry) Register(path string) {
	r.mu.Lock()
	r.paths[r.rel(path)] = struct{}{}
	r.mu.Unlock()
}

// Discard forgets a file without touching it.
func (r *Registry) Discard(path string) {
	r.mu.Lock()
	delete(r.paths, r.rel(path))
	r.mu.Unlock()
}

// List returns the registered paths, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.paths))
	for p := range r.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.paths = make(map[string]struct{})
	r.mu.Unlock()
}

// Cleanup deletes every registered file and clears the registry. A missing
// file is reported in NotFound, or as an error when missingOK is false.
func (r *Registry) Cleanup(missingOK bool) CleanupReport {
	rep := CleanupReport{Deleted: []string{}, NotFound: []string{}}
	for _, rel := range r.List() {
		err := os.Remove(r.abs(rel))
		switch {
		case err == nil:
			rep.Deleted = append(rep.Deleted, rel)
		case errors.Is(err, fs.ErrNotExist) && missingOK:
			rep.NotFound = append(rep.NotFound, rel)
		default:
			if rep.Errors == nil {
				rep.Errors = make(map[string]string)
			}
			if errors.Is(err, fs.ErrNotExist) {
				rep.Errors[rel] = "missing"
			} else {
				rep.Errors[rel] = err.Error()
			}
		}
	}
	r.Clear()
	return rep
}
