package parker

import (
	"testing"
	"time"
)

func TestParkSignal(t *testing.T) {
	p := New()
	p.PrepareSignal()
	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	p.Signal()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park did not return after Signal")
	}
}

func TestParkUntilTimeout(t *testing.T) {
	p := New()
	p.PrepareSignal()
	woken := p.ParkUntil(time.Now().Add(20 * time.Millisecond))
	if woken {
		t.Fatal("expected timeout, got woken=true")
	}
}

func TestParkUntilSignalWins(t *testing.T) {
	p := New()
	p.PrepareSignal()
	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Signal()
	}()
	woken := p.ParkUntil(time.Now().Add(5 * time.Second))
	if !woken {
		t.Fatal("expected signal to win, got timeout")
	}
}

func TestSignalBeforeParkIsObserved(t *testing.T) {
	p := New()
	p.PrepareSignal()
	p.Signal()
	done := make(chan struct{})
	go func() {
		p.Park()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Park did not observe a signal that arrived before it started")
	}
}
