// Package store provides the observable value cells the UI layer subscribes to.
package store

import (
	"sync"
)

// Reader is the read side handed to subscribers.
type Reader[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

type listener[T any] struct {
	fn      func(T)
	removed bool
}

// Store holds a single value. Listeners are invoked synchronously after Set,
// in subscription order, with the value that Set stored. Sets issued from a
// listener are queued and delivered after the current pass, so every listener
// observes values in FIFO order.
type Store[T any] struct {
	lk        sync.Mutex
	value     T
	listeners []*listener[T]
	equal     func(a, b T) bool

	queue    []T
	draining bool
}

type Option[T any] func(*Store[T])

// WithEqual suppresses notifications when the new value equals the old one.
func WithEqual[T any](equal func(a, b T) bool) Option[T] {
	return func(s *Store[T]) {
		s.equal = equal
	}
}

func New[T any](initial T, opts ...Option[T]) *Store[T] {
	s := &Store[T]{value: initial}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store[T]) Get() T {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.value
}

// Set stores v and notifies listeners before returning, unless another Set is
// already delivering on this store, in which case v is appended to its queue.
func (s *Store[T]) Set(v T) {
	s.lk.Lock()
	if s.equal != nil && s.equal(s.value, v) {
		s.lk.Unlock()
		return
	}
	s.value = v
	s.queue = append(s.queue, v)
	if s.draining {
		s.lk.Unlock()
		return
	}
	s.draining = true
	s.lk.Unlock()

	s.drain()
}

func (s *Store[T]) drain() {
	for {
		s.lk.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.lk.Unlock()
			return
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		snapshot := make([]*listener[T], len(s.listeners))
		copy(snapshot, s.listeners)
		s.lk.Unlock()

		for _, l := range snapshot {
			s.lk.Lock()
			removed := l.removed
			s.lk.Unlock()
			if removed {
				continue
			}
			l.fn(v)
		}
	}
}

// Subscribe registers fn. The returned func is idempotent and safe to call
// from inside a listener.
func (s *Store[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	l := &listener[T]{fn: fn}
	s.lk.Lock()
	s.listeners = append(s.listeners, l)
	s.lk.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lk.Lock()
			defer s.lk.Unlock()
			l.removed = true
			for i, cur := range s.listeners {
				if cur == l {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					break
				}
			}
		})
	}
}

// Len returns the number of live listeners.
func (s *Store[T]) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.listeners)
}

var _ Reader[int] = (*Store[int])(nil)
