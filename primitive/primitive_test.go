package primitive

import "testing"

func TestCompareAndSwapUintptr(t *testing.T) {
	var addr uintptr
	fresh, swapped := CompareAndSwapUintptr(&addr, 0, 2)
	if fresh != 2 || !swapped {
		t.Errorf("got %d (swapped %v), expected %d (swapped %v) from CAS of %d-value with %d to %d", fresh, swapped, 2, true, 0, 0, 2)
	}
	fresh, swapped = CompareAndSwapUintptr(&addr, 1, 3)
	if fresh != 2 || swapped {
		t.Errorf("got %d (swapped %v), expected %d (swapped %v) from CAS of %d-value with %d to %d", fresh, swapped, 2, false, 2, 1, 3)
	}
}

func TestNext2(t *testing.T) {
	for _, tt := range []struct{ in, want uintptr }{
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 8},
		{16, 16},
		{17, 32},
		{1000, 1024},
	} {
		if got := Next2(tt.in); got != tt.want {
			t.Errorf("Next2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCompareAndSwapUint32(t *testing.T) {
	var addr uint32
	fresh, swapped := CompareAndSwapUint32(&addr, 0, 7)
	if fresh != 7 || !swapped {
		t.Errorf("got %d (swapped %v), want 7 (swapped true)", fresh, swapped)
	}
	fresh, swapped = CompareAndSwapUint32(&addr, 0, 9)
	if fresh != 7 || swapped {
		t.Errorf("got %d (swapped %v), want 7 (swapped false)", fresh, swapped)
	}
}
