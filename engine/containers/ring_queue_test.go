package containers

import (
	"errors"
	"testing"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[int](3)
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue() on empty error = %v", err)
	}
	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() on full error = %v", err)
	}
	if v, _ := rq.Peek(); v != 1 {
		t.Errorf("Peek() = %d, want 1", v)
	}

	rq.Push(4)
	want := []int{2, 3, 4}
	for _, w := range want {
		v, err := rq.Dequeue()
		if err != nil || v != w {
			t.Errorf("Dequeue() = %d, %v, want %d", v, err, w)
		}
	}
	if !rq.IsEmpty() || rq.Len() != 0 {
		t.Error("queue not empty after draining")
	}
}
