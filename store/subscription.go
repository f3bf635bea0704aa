package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
)

// Event is one delivery on a subscription: the full fresh result of the
// subscribed query, or a terminal error.
type Event struct {
	Docs []bson.Raw
	Err  error
}

// Subscription is a cancellable live stream over a query. Producers
// enqueue events without blocking; a dispatcher goroutine hands them to
// the consumer in order, never dropping one. Cancel (or cancellation of
// the subscribing context) detaches the underlying listener and closes
// the event channel.
type Subscription struct {
	events chan Event
	quit   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	finished bool

	cancelOnce sync.Once
	closeOnce  sync.Once
	detached   atomic.Bool
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	s := &Subscription{
		events: make(chan Event, 1),
		quit:   make(chan struct{}),
		cancel: cancel,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.dispatch()
	return s
}

// Events delivers query results until the subscription ends, then closes.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Cancel detaches the underlying listener. No further events are
// delivered after Cancel returns; the event channel closes once teardown
// completes.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.quit)
		s.cancel()
	})
}

// Detached reports whether the underlying listener has been released.
func (s *Subscription) Detached() bool {
	return s.detached.Load()
}

// emit enqueues an event. Called by the store implementations; never
// blocks the committer.
func (s *Subscription) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

// finish marks the producer side done; queued events still drain.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.cond.Signal()
}

// markDetached records that the listener teardown has completed.
func (s *Subscription) markDetached() {
	s.detached.Store(true)
}

func (s *Subscription) dispatch() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.finished {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.finished {
			s.mu.Unlock()
			s.closeEvents()
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.events <- e:
		case <-s.quit:
			s.closeEvents()
			return
		}
	}
}

func (s *Subscription) closeEvents() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Result is a typed delivery decoded from a subscription event.
type Result[T any] struct {
	Docs []T
	Err  error
}

// Decode adapts a raw subscription into a typed stream. The returned
// channel closes when the subscription does; consumers should drain it
// until then.
func Decode[T any](sub *Subscription) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		for ev := range sub.Events() {
			if ev.Err != nil {
				out <- Result[T]{Err: ev.Err}
				continue
			}
			docs := make([]T, 0, len(ev.Docs))
			failed := false
			for _, raw := range ev.Docs {
				var v T
				if err := bson.Unmarshal(raw, &v); err != nil {
					out <- Result[T]{Err: fmt.Errorf("decode subscription event: %w", err)}
					failed = true
					break
				}
				docs = append(docs, v)
			}
			if !failed {
				out <- Result[T]{Docs: docs}
			}
		}
	}()
	return out
}
