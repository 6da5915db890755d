// Package mirror holds the local read-only projection of the owner's record
// collections. Each collection is replaced wholesale from a snapshot.
package mirror

import (
	"fmt"
	"sync"

	"github.com/sadopc/prodhub/internal/model"
)

// Store mirrors the four collections. Replace is the only mutator and is
// expected to be called from a single goroutine; readers may run
// concurrently and always receive copies.
type Store struct {
	mu       sync.RWMutex
	projects map[string]model.Project
	tasks    map[string]model.Task
	habits   map[string]model.Habit
	entries  map[string]model.HabitEntry

	// order keeps the snapshot order per collection for stable reads.
	order   map[model.Collection][]string
	version map[model.Collection]uint64
}

func New() *Store {
	return &Store{
		projects: make(map[string]model.Project),
		tasks:    make(map[string]model.Task),
		habits:   make(map[string]model.Habit),
		entries:  make(map[string]model.HabitEntry),
		order:    make(map[model.Collection][]string),
		version:  make(map[model.Collection]uint64),
	}
}

// Replace swaps the mapping for snap.Collection with the snapshot contents.
func (s *Store) Replace(snap model.Snapshot) error {
	order := make([]string, 0, snap.Len())

	s.mu.Lock()
	defer s.mu.Unlock()

	switch snap.Collection {
	case model.Projects:
		m := make(map[string]model.Project, len(snap.Projects))
		for _, p := range snap.Projects {
			if _, dup := m[p.ID]; !dup {
				order = append(order, p.ID)
			}
			m[p.ID] = p
		}
		s.projects = m
	case model.Tasks:
		m := make(map[string]model.Task, len(snap.Tasks))
		for _, t := range snap.Tasks {
			if _, dup := m[t.ID]; !dup {
				order = append(order, t.ID)
			}
			m[t.ID] = t
		}
		s.tasks = m
	case model.Habits:
		m := make(map[string]model.Habit, len(snap.Habits))
		for _, h := range snap.Habits {
			if _, dup := m[h.ID]; !dup {
				order = append(order, h.ID)
			}
			m[h.ID] = h
		}
		s.habits = m
	case model.HabitEntries:
		m := make(map[string]model.HabitEntry, len(snap.Entries))
		for _, e := range snap.Entries {
			if _, dup := m[e.ID]; !dup {
				order = append(order, e.ID)
			}
			m[e.ID] = e
		}
		s.entries = m
	default:
		return fmt.Errorf("replace: unknown collection %q", snap.Collection)
	}
	s.order[snap.Collection] = order
	s.version[snap.Collection]++
	return nil
}

// Version counts the snapshots applied to c. Zero means c has not been
// loaded yet.
func (s *Store) Version(c model.Collection) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version[c]
}

// Loaded reports whether every collection has received a snapshot.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range model.Collections {
		if s.version[c] == 0 {
			return false
		}
	}
	return true
}

func (s *Store) Projects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Project, 0, len(s.projects))
	for _, id := range s.order[model.Projects] {
		out = append(out, s.projects[id])
	}
	return out
}

func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, id := range s.order[model.Tasks] {
		t := s.tasks[id]
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			t.CompletedAt = &at
		}
		out = append(out, t)
	}
	return out
}

func (s *Store) Habits() []model.Habit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Habit, 0, len(s.habits))
	for _, id := range s.order[model.Habits] {
		out = append(out, s.habits[id])
	}
	return out
}

// Entries returns habit entries in snapshot order (oldest write first).
func (s *Store) Entries() []model.HabitEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.HabitEntry, 0, len(s.entries))
	for _, id := range s.order[model.HabitEntries] {
		out = append(out, s.entries[id])
	}
	return out
}

func (s *Store) Project(id string) (model.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

func (s *Store) Habit(id string) (model.Habit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.habits[id]
	return h, ok
}

// Has reports whether the record id is present in collection c.
func (s *Store) Has(c model.Collection, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ok bool
	switch c {
	case model.Projects:
		_, ok = s.projects[id]
	case model.Tasks:
		_, ok = s.tasks[id]
	case model.Habits:
		_, ok = s.habits[id]
	case model.HabitEntries:
		_, ok = s.entries[id]
	}
	return ok
}
