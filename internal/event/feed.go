// Package event is a small generic re-implementation of the publish/
// subscribe primitive the teacher wires everywhere (`c.backend.Subscribe(events.MessageEvent{})`,
// `s.Unsubscribe()`). The core uses one feed, for commits; keeping the
// Subscribe/Unsubscribe shape lets a host and tests attach observers (e.g. a
// commit persister or a metrics tap) without touching the core. The timeout
// driver does not go through a feed; it signals the loop on a plain channel.
package event

import "sync"

// Feed fans a single value out to every current subscriber. Sends are
// best-effort: a subscriber that isn't receiving does not block Send.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]struct{}
}

// Subscription is a live registration on a Feed. Closing it (via
// Unsubscribe) stops further deliveries and closes the channel.
type Subscription[T any] struct {
	feed *Feed[T]
	ch   chan T
	once sync.Once
}

func (f *Feed[T]) Subscribe() *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[*Subscription[T]]struct{})
	}
	sub := &Subscription[T]{feed: f, ch: make(chan T, 16)}
	f.subs[sub] = struct{}{}
	return sub
}

// Send delivers v to every subscriber that currently has room in its
// buffer; a slow subscriber drops the value rather than stalling the
// producer, consistent with the core having no internal backpressure point
// other than the single inbox it owns (spec §5).
func (f *Feed[T]) Send(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for sub := range f.subs {
		select {
		case sub.ch <- v:
			n++
		default:
		}
	}
	return n
}

func (s *Subscription[T]) Chan() <-chan T { return s.ch }

func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.ch)
	})
}
