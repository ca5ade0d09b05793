package sync

import (
	"testing"
	"time"
)

func TestCondSignalWakesOneWaiter(t *testing.T) {
	var m Mutex
	c := NewCond(&m)

	woken := make(chan int, 2)
	wait := func(id int) {
		m.Lock()
		c.Wait()
		m.Unlock()
		woken <- id
	}
	go wait(1)
	go wait(2)

	time.Sleep(30 * time.Millisecond) // let both reach Wait

	m.Lock()
	c.Signal()
	m.Unlock()

	select {
	case <-woken:
	case <-time.After(2 * time.Second):
		t.Fatal("no waiter woke after Signal")
	}

	select {
	case <-woken:
		t.Fatal("a second waiter woke after a single Signal")
	case <-time.After(50 * time.Millisecond):
	}

	m.Lock()
	c.Signal()
	m.Unlock()
	select {
	case <-woken:
	case <-time.After(2 * time.Second):
		t.Fatal("second waiter never woke")
	}
}

func TestCondBroadcastWakesAll(t *testing.T) {
	var m Mutex
	c := NewCond(&m)

	const n = 5
	woken := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			m.Lock()
			c.Wait()
			m.Unlock()
			woken <- struct{}{}
		}()
	}
	time.Sleep(30 * time.Millisecond)

	m.Lock()
	c.Broadcast()
	m.Unlock()

	for i := 0; i < n; i++ {
		select {
		case <-woken:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d/%d waiters woke", i, n)
		}
	}
}

func TestCondWaitRelocksBeforeReturning(t *testing.T) {
	var m Mutex
	c := NewCond(&m)

	ready := make(chan struct{})
	go func() {
		m.Lock()
		close(ready)
		c.Wait()
		// Wait must return with m locked.
		if m.TryLock() {
			m.Unlock()
			panic("Wait returned without m held")
		}
		m.Unlock()
	}()

	<-ready
	time.Sleep(20 * time.Millisecond)
	m.Lock()
	c.Signal()
	m.Unlock()
	time.Sleep(50 * time.Millisecond)
}

func TestCondWithPlainLocker(t *testing.T) {
	var m Mutex
	c := NewCond(&m)
	// Exercise the non-*Mutex Locker fallback path via RLocker.
	var rw RWMutex
	c2 := NewCond(rw.RLocker())

	done := make(chan struct{})
	go func() {
		c2.L.Lock()
		c2.Wait()
		c2.L.Unlock()
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	c2.Signal()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter on non-mutex locker never woke")
	}
	_ = c
}
