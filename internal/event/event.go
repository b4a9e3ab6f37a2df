// Package event provides a broadcast condition variable compatible with
// callers that already hold an external lock, without depending on
// sync.Cond. Used by the tracker directory's sweep to wake
// waiters (tests, mostly) without retaining a reference to sync.Cond's
// exact locker semantics.
package event

import "sync"

// Event lets any number of goroutines wait for a Broadcast from another
// goroutine. Unlike sync.Cond, Wait takes the caller's lock explicitly and
// re-acquires it before returning, and a missed Broadcast before Wait is
// registered is not itself a bug: callers that need "already happened"
// semantics should check their own state before calling Wait.
type Event struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// Wait unlocks l, blocks until the next Broadcast, then re-locks l.
func (e *Event) Wait(l sync.Locker) {
	e.mu.Lock()
	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	l.Unlock()
	<-ch
	l.Lock()
}

// Broadcast wakes every goroutine currently blocked in Wait.
func (e *Event) Broadcast() {
	e.mu.Lock()
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}
