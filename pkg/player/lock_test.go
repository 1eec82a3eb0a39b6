package player

import (
	"testing"
	"time"
)

func TestTimedMutex(t *testing.T) {
	m := newTimedMutex()

	m.Lock()
	if m.LockTimeout(time.Millisecond) {
		t.Fatal("acquired a held mutex")
	}
	m.Unlock()

	if !m.LockTimeout(time.Millisecond) {
		t.Fatal("failed to acquire a free mutex")
	}
	m.Unlock()
}

func TestTimedMutexHandoff(t *testing.T) {
	m := newTimedMutex()
	m.Lock()

	done := make(chan bool)
	go func() {
		done <- m.LockTimeout(time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	m.Unlock()

	if !<-done {
		t.Fatal("waiter should acquire after release")
	}
	m.Unlock()
}
