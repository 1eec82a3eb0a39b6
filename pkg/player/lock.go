package player

import "time"

// timedMutex is a mutex with optional bounded acquisition, built on a
// one-slot channel. The decode tick uses LockTimeout so a command holding
// the lock from another goroutine can delay audio by at most the bound.
type timedMutex struct {
	ch chan struct{}
}

func newTimedMutex() *timedMutex {
	return &timedMutex{ch: make(chan struct{}, 1)}
}

// Lock blocks until the mutex is acquired.
func (m *timedMutex) Lock() {
	m.ch <- struct{}{}
}

// LockTimeout tries to acquire the mutex, waiting at most d. It reports
// whether the lock was acquired.
func (m *timedMutex) LockTimeout(d time.Duration) bool {
	select {
	case m.ch <- struct{}{}:
		return true
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case m.ch <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// Unlock releases the mutex. Unlocking an unheld mutex blocks forever, as
// with sync.Mutex misuse.
func (m *timedMutex) Unlock() {
	<-m.ch
}
