// Package store is the single owner of task state.
//
// Every mutation validates first, writes through the Backend, commits to the
// in-memory arena and only then publishes change events, with the lock
// released so handlers can query the store again. Mutations made from a
// handler publish after the event being delivered.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nibzard/taskhub/internal/notify"
	"github.com/nibzard/taskhub/internal/ordering"
	"github.com/nibzard/taskhub/internal/task"
)

// Store owns the task collection. It is the only writer of task state.
type Store struct {
	mu     sync.RWMutex
	tasks  map[string]*task.Task
	drafts map[string]*task.Task
	// deletedWith maps the root of a cascade delete to every id it deleted,
	// so Restore undoes exactly that cascade.
	deletedWith map[string][]string

	ctx      context.Context
	backend  Backend
	ordering *ordering.Manager
	notifier *notify.Notifier
	now      func() time.Time
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithBackend sets the backing store. The default keeps tasks in memory.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithSortGap sets the spacing between manual sort keys.
func WithSortGap(gap int) Option {
	return func(s *Store) {
		s.ordering = ordering.New(gap)
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides id assignment for new tasks.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithNotifier uses n as the change feed instead of a private notifier.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithContext sets the context handed to backend calls made by mutations.
func WithContext(ctx context.Context) Option {
	return func(s *Store) {
		if ctx != nil {
			s.ctx = ctx
		}
	}
}

// New creates an empty store. Use Open to start from a backend's contents.
func New(opts ...Option) *Store {
	s := &Store{
		tasks:       make(map[string]*task.Task),
		drafts:      make(map[string]*task.Task),
		deletedWith: make(map[string][]string),
		ctx:         context.Background(),
		backend:     NewMemoryBackend(),
		ordering:    ordering.New(ordering.DefaultGap),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.New()
	}
	return s
}

// Open creates a store and loads the backend's records without raising
// events.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	s := New(opts...)
	tasks, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	s.replaceLocked(tasks)
	return s, nil
}

// Reload replaces the collection with the backend's current contents and
// raises TasksReloaded. Open drafts survive a reload.
func (s *Store) Reload(ctx context.Context) error {
	tasks, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload tasks: %w", err)
	}
	s.mu.Lock()
	s.replaceLocked(tasks)
	s.mu.Unlock()
	s.notifier.Publish(notify.Reloaded())
	return nil
}

func (s *Store) replaceLocked(tasks []task.Task) {
	s.tasks = make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		c := t.Clone()
		s.tasks[c.ID] = &c
	}
	s.deletedWith = make(map[string][]string)
}

// Notifier returns the store's change feed.
func (s *Store) Notifier() *notify.Notifier {
	return s.notifier
}

// Subscribe registers a synchronous handler for the given kinds (all kinds
// when none are given).
func (s *Store) Subscribe(h notify.Handler, kinds ...notify.Kind) *notify.Subscription {
	return s.notifier.Subscribe(h, kinds...)
}

// SubscribeQueued registers a handler that runs on its own goroutine.
func (s *Store) SubscribeQueued(h notify.Handler, kinds ...notify.Kind) *notify.Subscription {
	return s.notifier.SubscribeQueued(h, kinds...)
}

// change is the result of planning a mutation: records to write and the
// events to raise once they are committed.
type change struct {
	put    []task.Task
	events []notify.Event
	// commit runs under the write lock once put is applied.
	commit func()
}

func (c *change) update(t task.Task) {
	c.put = append(c.put, t)
	c.events = append(c.events, notify.Updated(t))
}

// apply runs plan under the write lock. plan must not modify the arena; it
// returns copies. The backend write happens before the in-memory commit, so
// a failure anywhere leaves the store untouched and raises nothing.
func (s *Store) apply(plan func() (*change, error)) error {
	s.mu.Lock()
	c, err := plan()
	if err == nil && c == nil {
		c = &change{}
	}
	if err == nil && len(c.put) > 0 {
		if err = s.backend.Save(s.ctx, c.put); err != nil {
			err = fmt.Errorf("persist tasks: %w", err)
		}
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for _, t := range c.put {
		stored := t.Clone()
		s.tasks[stored.ID] = &stored
	}
	if c.commit != nil {
		c.commit()
	}
	s.mu.Unlock()

	s.notifier.Publish(c.events...)
	return nil
}

// visibleLocked returns the stored task if it exists and is not deleted.
func (s *Store) visibleLocked(id string) (*task.Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.Deleted {
		return nil, false
	}
	return t, true
}
