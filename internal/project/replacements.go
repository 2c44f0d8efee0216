package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Supplier is a replacement entry. The file accepts either a plain string
// ("ООО Ромашка") or an object with name and email.
type Supplier struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

func (s *Supplier) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		s.Name, s.Email = n.Value, ""
		return nil
	}
	type plain Supplier
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*s = Supplier(p)
	return nil
}

// Replacements maps supplier names as written on invoices to canonical ones.
type Replacements struct {
	mu      sync.RWMutex
	entries map[string]Supplier
	logger  *slog.Logger
}

// NewReplacements builds a table from an in-memory map.
func NewReplacements(entries map[string]Supplier, logger *slog.Logger) *Replacements {
	if logger == nil {
		logger = slog.Default()
	}
	if entries == nil {
		entries = map[string]Supplier{}
	}
	return &Replacements{entries: entries, logger: logger}
}

// LoadReplacements reads a JSON or YAML map. A missing file gives an empty
// table.
func LoadReplacements(path string, logger *slog.Logger) (*Replacements, error) {
	r := NewReplacements(nil, logger)
	if path == "" {
		return r, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("supplier replacements file not found", "path", path)
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read supplier replacements: %w", err)
	}
	entries := map[string]Supplier{}
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse supplier replacements %s: %w", path, err)
	}
	r.entries = entries
	r.logger.Info("supplier replacements loaded", "path", path, "count", len(entries))
	return r, nil
}

// Replace returns the canonical name, or name itself when there is no entry.
func (r *Replacements) Replace(name string) string {
	if r == nil || name == "" {
		return name
	}
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok || e.Name == "" {
		return name
	}
	if e.Name != name {
		r.logger.Debug("supplier name replaced", "from", name, "to", e.Name)
	}
	return e.Name
}

// Email returns the supplier's address, or "" when unknown.
func (r *Replacements) Email(name string) string {
	if r == nil || name == "" {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[name].Email
}

func (r *Replacements) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
