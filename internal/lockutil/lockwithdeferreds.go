// Package lockutil provides a mutex that can schedule actions to run as
// part of Unlock, so a mutating method doesn't have to inline its
// logging/event-broadcast side effects into the same block that mutates
// the guarded state. Deferred actions run in Unlock, once, in the order
// they were scheduled, before the underlying lock is released;
// DeferUnique collapses repeats of the same key within one critical
// section into a single action.
package lockutil

import (
	"fmt"

	g "github.com/anacrolix/generics"
	xsync "github.com/anacrolix/sync"
)

// LockWithDeferreds wraps an RWMutex and runs deferred actions on Unlock.
// It is not reentrant: Lock must not be called again before the matching
// Unlock, and Defer may only be called while the lock is held.
type LockWithDeferreds struct {
	internal      xsync.RWMutex
	unlockActions []func()
	uniqueActions map[any]struct{}
	allowDefers   bool
}

func (l *LockWithDeferreds) Lock() {
	l.internal.Lock()
	if l.allowDefers {
		panic("LockWithDeferreds: Lock called while already locked")
	}
	l.allowDefers = true
}

func (l *LockWithDeferreds) Unlock() {
	if !l.allowDefers {
		panic("LockWithDeferreds: Unlock called without a matching Lock")
	}
	l.allowDefers = false
	l.runUnlockActions()
	l.internal.Unlock()
}

func (l *LockWithDeferreds) RLock()   { l.internal.RLock() }
func (l *LockWithDeferreds) RUnlock() { l.internal.RUnlock() }

// Defer schedules action to run during the next Unlock, before the
// underlying lock is released.
func (l *LockWithDeferreds) Defer(action func()) {
	if !l.allowDefers {
		panic("LockWithDeferreds: Defer called without holding the lock")
	}
	l.unlockActions = append(l.unlockActions, action)
}

// DeferUnique schedules action to run during Unlock at most once per key,
// even if DeferUnique is called multiple times with the same key before
// the next Unlock.
func (l *LockWithDeferreds) DeferUnique(key any, action func()) {
	if !l.allowDefers {
		panic("LockWithDeferreds: DeferUnique called without holding the lock")
	}
	g.MakeMapIfNil(&l.uniqueActions)
	if g.MapContains(l.uniqueActions, key) {
		return
	}
	l.uniqueActions[key] = struct{}{}
	l.Defer(action)
}

func (l *LockWithDeferreds) runUnlockActions() {
	startLen := len(l.unlockActions)
	for i := 0; i < len(l.unlockActions); i++ {
		l.unlockActions[i]()
	}
	if startLen != len(l.unlockActions) {
		panic(fmt.Sprintf("num deferred actions changed while running: %v -> %v", startLen, len(l.unlockActions)))
	}
	l.unlockActions = l.unlockActions[:0]
	l.uniqueActions = nil
}
