package filter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nibzard/taskhub/internal/duedate"
	"github.com/nibzard/taskhub/internal/task"
)

// Built-in filter names.
const (
	NameAll          = "all"
	NameActive       = "active"
	NameCompleted    = "completed"
	NameCancelled    = "cancelled"
	NameOverdue      = "overdue"
	NameToday        = "today"
	NameThisWeek     = "this-week"
	NameHighPriority = "high-priority"
	NameUnscheduled  = "unscheduled"
)

// Catalog is a registry of named predicates. Time-relative built-ins ask
// the catalog clock for the current day at evaluation time.
type Catalog struct {
	mu    sync.RWMutex
	clock func() time.Time
	named map[string]Predicate
}

// NewCatalog returns a catalog holding the built-in filters. A nil clock
// uses time.Now.
func NewCatalog(clock func() time.Time) *Catalog {
	if clock == nil {
		clock = time.Now
	}
	c := &Catalog{clock: clock, named: make(map[string]Predicate)}

	c.named[NameAll] = All
	c.named[NameActive] = Active
	c.named[NameCompleted] = Completed
	c.named[NameCancelled] = Cancelled
	c.named[NameOverdue] = And(Active, BucketIn(c.Today, duedate.Overdue))
	c.named[NameToday] = And(Active, BucketIn(c.Today, duedate.Overdue, duedate.Today))
	c.named[NameThisWeek] = And(Active, BucketIn(c.Today, duedate.Today, duedate.Tomorrow, duedate.ThisWeek))
	c.named[NameHighPriority] = And(Active, PriorityIn(task.PriorityHigh, task.PriorityToday))
	c.named[NameUnscheduled] = And(Active, BucketIn(c.Today, duedate.NoDueDate))
	return c
}

// Today returns the catalog's current time.
func (c *Catalog) Today() time.Time {
	return c.clock()
}

// Register adds or replaces a named predicate.
func (c *Catalog) Register(name string, p Predicate) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("filter name is empty")
	}
	if p == nil {
		return fmt.Errorf("filter %q: predicate is nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.named[key] = p
	return nil
}

// RegisterComposite registers a composite filter evaluated against the
// catalog clock.
func (c *Catalog) RegisterComposite(name string, comp Composite) error {
	return c.Register(name, comp.Predicate(c.Today))
}

// Lookup returns the predicate registered under name.
func (c *Catalog) Lookup(name string) (Predicate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.named[normalizeName(name)]
	return p, ok
}

// MustLookup is Lookup for names known to exist, such as the built-ins.
func (c *Catalog) MustLookup(name string) Predicate {
	p, ok := c.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("filter %q not registered", name))
	}
	return p
}

// Names returns every registered name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.named))
	for name := range c.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
