package notify

import (
	"sync"
)

// Subscription is the handle returned by Subscribe. Close it to stop
// receiving events.
type Subscription struct {
	id       uint64
	notifier *Notifier
	handler  Handler
	kinds    map[Kind]bool
	queue    *mailbox

	mu     sync.Mutex
	closed bool
	once   sync.Once
	done   chan struct{}
}

func (s *Subscription) wants(k Kind) bool {
	if s.isClosed() {
		return false
	}
	return s.kinds == nil || s.kinds[k]
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close unsubscribes. It is idempotent and safe to call from inside the
// subscription's own handler. Events already queued for a queued
// subscription are dropped.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.notifier.remove(s.id)
		if s.queue != nil {
			s.queue.close()
		} else {
			close(s.done)
		}
	})
}

// Done is closed once the subscription is closed and, for queued
// subscriptions, its delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) deliver(ev Event) {
	if s.isClosed() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.notifier.report(ev, &HandlerPanic{Value: r})
		}
	}()
	if err := s.handler(ev); err != nil {
		s.notifier.report(ev, err)
	}
}

func (s *Subscription) drain() {
	defer close(s.done)
	for {
		ev, ok := s.queue.take()
		if !ok {
			return
		}
		s.deliver(ev)
	}
}

// mailbox is an unbounded FIFO with a blocking take.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *mailbox) put(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.items = append(m.items, ev)
	m.cond.Signal()
}

func (m *mailbox) take() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.items) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return Event{}, false
	}
	ev := m.items[0]
	m.items[0] = Event{}
	m.items = m.items[1:]
	return ev, true
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = nil
	m.cond.Broadcast()
}
