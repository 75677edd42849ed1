// Package notify fans store change events out to independent subscribers.
//
// Delivery is synchronous and in publish order. Events published from inside
// a handler are queued behind the event being delivered, so every subscriber
// sees events in Seq order. A handler that returns an
// error or panics is reported to the notifier's ErrorHandler and does not
// stop delivery to the remaining subscribers. Queued subscriptions receive
// events on their own goroutine so a slow consumer cannot hold up others.
package notify

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nibzard/taskhub/internal/task"
)

// Kind identifies a change event.
type Kind int

const (
	TaskAdded Kind = iota + 1
	TaskUpdated
	TaskDeleted
	TasksReloaded
)

func (k Kind) String() string {
	switch k {
	case TaskAdded:
		return "task_added"
	case TaskUpdated:
		return "task_updated"
	case TaskDeleted:
		return "task_deleted"
	case TasksReloaded:
		return "tasks_reloaded"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one change notification. Task is set for TaskAdded and
// TaskUpdated; TaskID is set for every task-scoped kind. TaskDeleted carries
// only the root id of the deleted subtree.
type Event struct {
	Kind   Kind
	TaskID string
	Task   *task.Task
	Seq    uint64
}

// Added builds a TaskAdded event.
func Added(t task.Task) Event {
	c := t.Clone()
	return Event{Kind: TaskAdded, TaskID: t.ID, Task: &c}
}

// Updated builds a TaskUpdated event.
func Updated(t task.Task) Event {
	c := t.Clone()
	return Event{Kind: TaskUpdated, TaskID: t.ID, Task: &c}
}

// Deleted builds a TaskDeleted event.
func Deleted(id string) Event {
	return Event{Kind: TaskDeleted, TaskID: id}
}

// Reloaded builds a TasksReloaded event.
func Reloaded() Event {
	return Event{Kind: TasksReloaded}
}

// Handler receives events.
type Handler func(Event) error

// ErrorHandler is told about handler failures.
type ErrorHandler func(ev Event, err error)

// HandlerPanic wraps a value recovered from a panicking handler.
type HandlerPanic struct {
	Value interface{}
}

func (p *HandlerPanic) Error() string {
	return fmt.Sprintf("subscriber panicked: %v", p.Value)
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithErrorHandler sets the function told about failing handlers.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(n *Notifier) {
		n.onError = fn
	}
}

// Notifier is a subscription registry owned by a single store.
type Notifier struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	seq        uint64
	pending    []Event
	delivering bool
	onError    ErrorHandler
}

// New creates a notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{subs: make(map[uint64]*Subscription)}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers h for the given kinds, or for every kind when none
// are listed. The handler runs on the publishing goroutine.
func (n *Notifier) Subscribe(h Handler, kinds ...Kind) *Subscription {
	return n.add(h, nil, kinds)
}

// SubscribeQueued registers h to run on a dedicated goroutine that drains an
// unbounded mailbox in publish order.
func (n *Notifier) SubscribeQueued(h Handler, kinds ...Kind) *Subscription {
	q := newMailbox()
	sub := n.add(h, q, kinds)
	go sub.drain()
	return sub
}

func (n *Notifier) add(h Handler, q *mailbox, kinds []Kind) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	sub := &Subscription{
		id:       n.nextID,
		notifier: n,
		handler:  h,
		queue:    q,
		done:     make(chan struct{}),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	n.subs[sub.id] = sub
	return sub
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// Len returns the number of live subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Publish delivers events in order to every current subscriber. It returns
// after all synchronous handlers ran; queued subscribers have the events in
// their mailbox by then. A Publish made while another is delivering (from a
// handler, or from a second goroutine) only appends to the pending queue;
// the delivering call sends those events after the current one reaches every
// subscriber, still before it returns.
func (n *Notifier) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}

	n.mu.Lock()
	n.pending = append(n.pending, events...)
	if n.delivering {
		n.mu.Unlock()
		return
	}
	n.delivering = true
	n.mu.Unlock()

	done := false
	defer func() {
		if !done {
			n.mu.Lock()
			n.pending = nil
			n.delivering = false
			n.mu.Unlock()
		}
	}()

	for {
		ev, subs, ok := n.next()
		if !ok {
			done = true
			return
		}
		for _, sub := range subs {
			if !sub.wants(ev.Kind) {
				continue
			}
			if sub.queue != nil {
				sub.queue.put(ev)
				continue
			}
			sub.deliver(ev)
		}
	}
}

// next pops the oldest pending event, stamps its Seq and returns it with
// the subscribers registered at that moment. It clears the delivering flag
// when the queue is empty.
func (n *Notifier) next() (Event, []*Subscription, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) == 0 {
		n.pending = nil
		n.delivering = false
		return Event{}, nil, false
	}
	ev := n.pending[0]
	n.pending[0] = Event{}
	n.pending = n.pending[1:]
	n.seq++
	ev.Seq = n.seq

	subs := make([]*Subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return ev, subs, true
}

func (n *Notifier) report(ev Event, err error) {
	if n.onError != nil {
		n.onError(ev, err)
	}
}
