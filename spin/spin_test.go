package spin

import "testing"

func TestBackoffExhausts(t *testing.T) {
	var b Backoff
	for i := 0; i < 4; i++ {
		if b.Spin(4) {
			t.Fatalf("spin %d: exhausted too early", i)
		}
	}
	if !b.Spin(4) {
		t.Fatal("expected exhausted after 4 spins of max 4")
	}
}

func TestBackoffReset(t *testing.T) {
	var b Backoff
	for i := 0; i < 4; i++ {
		b.Spin(4)
	}
	if !b.Spin(4) {
		t.Fatal("expected exhausted")
	}
	b.Reset()
	if b.Spin(4) {
		t.Fatal("expected fresh backoff to not be exhausted")
	}
}
