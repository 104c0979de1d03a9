package todo

import (
	"sync"
	"time"
)

// Store is the in-memory, insertion-ordered collection of todos plus the
// id counter. A single mutex guards all state; every method returns copies.
type Store struct {
	mu     sync.Mutex
	todos  []Todo
	nextID int
}

// NewStore creates an empty store whose first id is 1
func NewStore() *Store {
	return &Store{
		todos:  make([]Todo, 0),
		nextID: 1,
	}
}

// SeedTexts are the sample todos a fresh service starts with
var SeedTexts = []string{
	"Learn Jenkins CI/CD",
	"Build a todo application",
	"Deploy to production",
}

// NewSeededStore creates a store holding the sample todos, all pending and
// created at now. The counter continues after the seed (4 for the default seed).
func NewSeededStore(now time.Time) *Store {
	s := NewStore()
	for _, text := range SeedTexts {
		s.appendLocked(Todo{
			ID:        s.allocateLocked(),
			Text:      text,
			CreatedAt: now,
		})
	}
	return s
}

// AllocateID returns the current counter value and advances it
func (s *Store) AllocateID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocateLocked()
}

// Append adds t after the last element
func (s *Store) Append(t Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(t)
}

// Insert allocates an id, builds the todo with it and appends the result in
// one critical section, so list order always follows id order.
func (s *Store) Insert(build func(id int) Todo) Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := build(s.allocateLocked())
	s.appendLocked(t)
	return t
}

// FindByID returns the todo with the given id
func (s *Store) FindByID(id int) (Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.todos[i], true
	}
	return Todo{}, false
}

// RemoveByID detaches and returns the todo with the given id
func (s *Store) RemoveByID(id int) (Todo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Todo{}, false
	}
	removed := s.todos[i]
	s.todos = append(s.todos[:i], s.todos[i+1:]...)
	return removed, true
}

// Modify applies fn to a copy of the todo with the given id and stores the
// copy only when fn succeeds. It returns ErrNotFound for an unknown id and
// fn's error otherwise.
func (s *Store) Modify(id int, fn func(t *Todo) error) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Todo{}, ErrNotFound
	}
	updated := s.todos[i]
	if err := fn(&updated); err != nil {
		return Todo{}, err
	}
	s.todos[i] = updated
	return updated, nil
}

// All returns a snapshot of the todos in insertion order
func (s *Store) All() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Todo, len(s.todos))
	copy(out, s.todos)
	return out
}

// Len returns the number of stored todos
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

func (s *Store) allocateLocked() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) appendLocked(t Todo) {
	s.todos = append(s.todos, t)
}

func (s *Store) indexLocked(id int) int {
	for i := range s.todos {
		if s.todos[i].ID == id {
			return i
		}
	}
	return -1
}
