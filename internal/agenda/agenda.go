// Package agenda is a live, bucketed view over the task store.
//
// A View subscribes to the store's change feed and re-queries through its
// filter predicate after every event, so readers always see sections that
// match the committed state.
package agenda

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nibzard/taskhub/internal/duedate"
	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/notify"
	"github.com/nibzard/taskhub/internal/task"
)

// Section is one due-date bucket of the agenda.
type Section struct {
	Bucket duedate.Bucket
	Tasks  []task.Task
}

// Source is the part of the store a view reads from.
type Source interface {
	GetTasks(pred filter.Predicate) []task.Task
	Subscribe(h notify.Handler, kinds ...notify.Kind) *notify.Subscription
}

// Build groups tasks into non-empty sections in agenda order. Within a
// section tasks are ordered by priority (highest first), then due date, then
// creation time.
func Build(tasks []task.Task, today time.Time) []Section {
	groups := duedate.Group(tasks, today)
	var out []Section
	for _, b := range duedate.Buckets() {
		items := groups[b]
		if len(items) == 0 {
			continue
		}
		sortSection(items)
		out = append(out, Section{Bucket: b, Tasks: items})
	}
	return out
}

func sortSection(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Option configures a View.
type Option func(*View)

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(v *View) {
		if now != nil {
			v.now = now
		}
	}
}

// OnChange registers fn to receive the rebuilt sections after every
// refresh. It runs on the publishing goroutine.
func OnChange(fn func([]Section)) Option {
	return func(v *View) {
		v.onChange = fn
	}
}

// View keeps the agenda for one predicate current.
type View struct {
	src      Source
	pred     filter.Predicate
	now      func() time.Time
	onChange func([]Section)

	mu        sync.RWMutex
	sections  []Section
	refreshes int
	sub       *notify.Subscription
}

// New builds the view and subscribes it to src. A nil predicate selects
// active tasks.
func New(src Source, pred filter.Predicate, opts ...Option) *View {
	if pred == nil {
		pred = filter.Active
	}
	v := &View{src: src, pred: pred, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	v.Refresh()
	v.sub = src.Subscribe(v.handle)
	return v
}

func (v *View) handle(notify.Event) error {
	v.Refresh()
	return nil
}

// Refresh re-queries the source and rebuilds the sections.
func (v *View) Refresh() {
	sections := Build(v.src.GetTasks(v.pred), v.now())
	v.mu.Lock()
	v.sections = sections
	v.refreshes++
	v.mu.Unlock()
	if v.onChange != nil {
		v.onChange(sections)
	}
}

// Sections returns the current sections.
func (v *View) Sections() []Section {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Section, len(v.sections))
	for i, s := range v.sections {
		out[i] = Section{Bucket: s.Bucket, Tasks: append([]task.Task(nil), s.Tasks...)}
	}
	return out
}

// Count returns the number of tasks across all sections.
func (v *View) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for _, s := range v.sections {
		n += len(s.Tasks)
	}
	return n
}

// Refreshes returns how many times the view was rebuilt.
func (v *View) Refreshes() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.refreshes
}

// Close detaches the view from the store.
func (v *View) Close() {
	if v.sub != nil {
		v.sub.Close()
	}
}

// Reloader is anything that can re-read its backing data.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Poll reloads r every interval until ctx is done. Reload failures are
// passed to onErr and polling continues. A non-positive interval returns
// immediately.
func Poll(ctx context.Context, r Reloader, interval time.Duration, onErr func(error)) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil && onErr != nil && ctx.Err() == nil {
				onErr(err)
			}
		}
	}
}
