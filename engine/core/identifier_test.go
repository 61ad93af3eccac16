package core

import "testing"

func TestHandleAllocator(t *testing.T) {
	a := NewHandleAllocator(3, 4)

	h0, h1, h2 := a.Acquire(), a.Acquire(), a.Acquire()
	if h0 != 3 || h1 != 4 || h2 != 5 {
		t.Fatalf("Acquire() = %d %d %d, want 3 4 5", h0, h1, h2)
	}
	if err := a.Release(h1); err != nil {
		t.Fatalf("Release(%d) error = %v", h1, err)
	}
	if got := a.Acquire(); got != h1 {
		t.Errorf("Acquire() after release = %d, want reused %d", got, h1)
	}
	if err := a.Release(2); err == nil {
		t.Error("Release of a reserved handle should fail")
	}
	if err := a.Release(42); err == nil {
		t.Error("Release of an unknown handle should fail")
	}
	if err := a.Release(h0); err != nil {
		t.Fatal(err)
	}
	if err := a.Release(h0); err == nil {
		t.Error("double Release should fail")
	}
}
