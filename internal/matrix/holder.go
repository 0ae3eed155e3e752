package matrix

import (
	"sync"
)

// Listener observes every snapshot published by a Holder.
type Listener func(m *Matrix)

// Holder is the always-current accessor for one matrix and the only path by
// which it changes. Readers call Current at the moment they need the data
// rather than keeping a snapshot around.
//
// The mutex guards the pointer swap only. Listeners run while it is held so
// they observe snapshots in publication order; a listener must not call back
// into the Holder.
type Holder struct {
	mu        sync.Mutex
	current   *Matrix
	listeners []Listener
}

func NewHolder(m *Matrix) *Holder {
	return &Holder{current: m}
}

// Current returns the latest snapshot. The result must be treated as read-only.
func (h *Holder) Current() *Matrix {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Apply replaces the matrix with fn(current). When fn returns an error or the
// same snapshot, nothing is published.
func (h *Holder) Apply(fn func(m *Matrix) (*Matrix, error)) (*Matrix, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, err := fn(h.current)
	if err != nil {
		return h.current, err
	}
	if next == nil || next == h.current {
		return h.current, nil
	}
	h.current = next
	for _, l := range h.listeners {
		l(next)
	}
	return next, nil
}

// Replace publishes m unconditionally.
func (h *Holder) Replace(m *Matrix) {
	_, _ = h.Apply(func(*Matrix) (*Matrix, error) { return m, nil })
}

// Subscribe registers l for every future snapshot.
func (h *Holder) Subscribe(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}
