// Package state holds the last known mode of every radiator.
package state

import (
	"sort"
	"sync"

	"radiator_control/internal/models"
)

// Store maps device name to its last known mode. The zero value is not
// usable; call NewStore.
type Store struct {
	mu     sync.RWMutex
	states map[string]string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{states: make(map[string]string)}
}

// Seed sets DEFAULT for each name not already present.
func (s *Store) Seed(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		if _, ok := s.states[n]; !ok {
			s.states[n] = models.StateDefault
		}
	}
}

// Get returns the mode of name and whether it is known.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.states[name]
	return v, ok
}

// Set records mode for name.
func (s *Store) Set(name, mode string) {
	s.mu.Lock()
	s.states[name] = mode
	s.mu.Unlock()
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}

// Names returns the known device names in order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.states))
	for k := range s.states {
		names = append(names, k)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Remove drops name.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	delete(s.states, name)
	s.mu.Unlock()
}

// Rename moves the entry of oldName to newName, overwriting any existing
// newName entry. It reports false when oldName is unknown.
func (s *Store) Rename(oldName, newName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.states[oldName]
	if !ok {
		return false
	}
	delete(s.states, oldName)
	s.states[newName] = v
	return true
}
