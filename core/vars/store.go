// Package vars is the shell's variable store.
package vars

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Var is a single shell variable.
type Var struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Exported bool   `json:"exported,omitempty"`
}

// Store holds shell variables and whether each is exported to children.
type Store struct {
	rw   sync.RWMutex
	vars map[string]Var
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// NewStoreFromEnvList creates a store holding environ, every entry exported.
func NewStoreFromEnvList(environ []string) *Store {
	out := NewStore()
	for _, e := range environ {
		key, value, _ := strings.Cut(e, "=")
		if !ValidName(key) {
			continue
		}
		_ = out.Set(key, value)
		_ = out.Export(key)
	}
	return out
}

// ValidName reports whether name can be assigned to.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && '0' <= c && c <= '9':
		default:
			return false
		}
	}
	return true
}

// Set assigns value to name, keeping its export flag.
func (s *Store) Set(name, value string) error {
	if !ValidName(name) {
		return fmt.Errorf("%q: not a valid identifier", name)
	}
	s.rw.Lock()
	defer s.rw.Unlock()

	if s.vars == nil {
		s.vars = make(map[string]Var)
	}
	v := s.vars[name]
	v.Name, v.Value = name, value
	s.vars[name] = v
	return nil
}

// Export marks name for export, creating it empty if it doesn't exist.
func (s *Store) Export(name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%q: not a valid identifier", name)
	}
	s.rw.Lock()
	defer s.rw.Unlock()

	if s.vars == nil {
		s.vars = make(map[string]Var)
	}
	v := s.vars[name]
	v.Name, v.Exported = name, true
	s.vars[name] = v
	return nil
}

// Unset removes name.
func (s *Store) Unset(name string) {
	s.rw.Lock()
	defer s.rw.Unlock()
	delete(s.vars, name)
}

// Lookup returns the value of name and whether it is set.
func (s *Store) Lookup(name string) (string, bool) {
	s.rw.RLock()
	defer s.rw.RUnlock()

	v, ok := s.vars[name]
	return v.Value, ok
}

// Get returns the value of name, or "".
func (s *Store) Get(name string) string {
	val, _ := s.Lookup(name)
	return val
}

// Environ returns the exported variables as sorted NAME=value pairs.
func (s *Store) Environ() []string {
	return s.pairs(true)
}

// Pairs returns every variable as sorted NAME=value pairs.
func (s *Store) Pairs() []string {
	return s.pairs(false)
}

func (s *Store) pairs(exportedOnly bool) []string {
	s.rw.RLock()
	defer s.rw.RUnlock()

	var env []string
	for k, v := range s.vars {
		if exportedOnly && !v.Exported {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", k, v.Value))
	}
	sort.Strings(env)
	return env
}

// Snapshot copies every variable, sorted by name.
func (s *Store) Snapshot() []Var {
	s.rw.RLock()
	defer s.rw.RUnlock()

	out := make([]Var, 0, len(s.vars))
	for _, v := range s.vars {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Restore replaces the store's contents with a snapshot.
func (s *Store) Restore(snap []Var) {
	s.rw.Lock()
	defer s.rw.Unlock()

	s.vars = make(map[string]Var, len(snap))
	for _, v := range snap {
		s.vars[v.Name] = v
	}
}
