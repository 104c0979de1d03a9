package todo

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/fluxorio/todo-service/pkg/core"
)

var (
	// ErrNotFound is returned when no todo has the requested id
	ErrNotFound = errors.New("todo not found")

	// ErrInvalidInput is returned when submitted text is missing, empty or not a string
	ErrInvalidInput = errors.New("invalid todo text")
)

// Notifier is told about every successful mutation
type Notifier interface {
	Notify(ctx context.Context, kind ChangeKind, t Todo)
}

// ServiceInterface defines the todo operations exposed to the HTTP layer
type ServiceInterface interface {
	List(ctx context.Context) []Todo
	Get(ctx context.Context, id int) (Todo, error)
	Create(ctx context.Context, text interface{}) (Todo, error)
	Update(ctx context.Context, id int, patch Patch) (Todo, error)
	Delete(ctx context.Context, id int) (Todo, error)
	Stats(ctx context.Context) Stats
}

// Service implements the todo CRUD and statistics operations on a Store
type Service struct {
	store    *Store
	now      func() time.Time
	notifier Notifier
	logger   core.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for createdAt/updatedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithNotifier registers a receiver for change notifications
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger sets the service logger
func WithLogger(logger core.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new todo service
func NewService(store *Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: core.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing store
func (s *Service) Store() *Store {
	return s.store
}

// List returns all todos in insertion order
func (s *Service) List(ctx context.Context) []Todo {
	return s.store.All()
}

// Get returns the todo with the given id
func (s *Service) Get(ctx context.Context, id int) (Todo, error) {
	t, ok := s.store.FindByID(id)
	if !ok {
		return Todo{}, ErrNotFound
	}
	return t, nil
}

// Create validates text and appends a new pending todo
func (s *Service) Create(ctx context.Context, text interface{}) (Todo, error) {
	if !IsValidText(text) {
		return Todo{}, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(text.(string))

	created := s.store.Insert(func(id int) Todo {
		return Todo{
			ID:        id,
			Text:      trimmed,
			Completed: false,
			CreatedAt: s.now(),
		}
	})

	s.logger.WithFields(map[string]interface{}{
		"request_id": core.GetRequestID(ctx),
		"todo_id":    created.ID,
	}).Debug("todo created")
	s.notify(ctx, Created, created)
	return created, nil
}

// Update applies patch to the todo with the given id. The text field, when
// present, must pass IsValidText; completed is coerced with Truthy.
// updatedAt is stamped on every successful call, even for an empty patch.
func (s *Service) Update(ctx context.Context, id int, patch Patch) (Todo, error) {
	updated, err := s.store.Modify(id, func(t *Todo) error {
		if text, ok := patch.Text(); ok {
			if !IsValidText(text) {
				return ErrInvalidInput
			}
			t.Text = strings.TrimSpace(text.(string))
		}
		if completed, ok := patch.Completed(); ok {
			t.Completed = Truthy(completed)
		}
		stamp := s.now()
		t.UpdatedAt = &stamp
		return nil
	})
	if err != nil {
		return Todo{}, err
	}

	s.notify(ctx, Updated, updated)
	return updated, nil
}

// Delete removes the todo with the given id and returns it
func (s *Service) Delete(ctx context.Context, id int) (Todo, error) {
	removed, ok := s.store.RemoveByID(id)
	if !ok {
		return Todo{}, ErrNotFound
	}

	s.logger.WithFields(map[string]interface{}{
		"request_id": core.GetRequestID(ctx),
		"todo_id":    removed.ID,
	}).Debug("todo deleted")
	s.notify(ctx, Deleted, removed)
	return removed, nil
}

// Stats computes totals from a single snapshot of the store
func (s *Service) Stats(ctx context.Context) Stats {
	return ComputeStats(s.store.All())
}

// ComputeStats counts completed and pending todos. CompletionRate is a
// percentage rounded to two decimals, and 0 for an empty slice.
func ComputeStats(todos []Todo) Stats {
	st := Stats{Total: len(todos)}
	for _, t := range todos {
		if t.Completed {
			st.Completed++
		}
	}
	st.Pending = st.Total - st.Completed
	if st.Total > 0 {
		rate := float64(st.Completed) / float64(st.Total) * 100
		st.CompletionRate = math.Round(rate*100) / 100
	}
	return st
}

func (s *Service) notify(ctx context.Context, kind ChangeKind, t Todo) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, kind, t)
}
