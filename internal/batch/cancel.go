package batch

import (
	"sync"
)

// CancelFlag is a cooperative stop signal checked between rows.
type CancelFlag struct {
	once sync.Once
	ch   chan struct{}
	mu   sync.Mutex
}

func NewCancelFlag() *CancelFlag {
	return &CancelFlag{ch: make(chan struct{})}
}

func (f *CancelFlag) init() {
	f.mu.Lock()
	if f.ch == nil {
		f.ch = make(chan struct{})
	}
	f.mu.Unlock()
}

// Cancel raises the flag. Calling it more than once is harmless.
func (f *CancelFlag) Cancel() {
	if f == nil {
		return
	}
	f.init()
	f.once.Do(func() { close(f.ch) })
}

// Cancelled reports whether Cancel has been called.
func (f *CancelFlag) Cancelled() bool {
	if f == nil {
		return false
	}
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

// Done is closed once the flag is raised. A nil flag never fires.
func (f *CancelFlag) Done() <-chan struct{} {
	if f == nil {
		return nil
	}
	f.init()
	return f.ch
}
