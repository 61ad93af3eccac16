package core

import "fmt"

// HandleAllocator hands out resource handle numbers for callers of the
// renderer. Released numbers are reused first. Numbers below base are
// never returned.
type HandleAllocator struct {
	base  uint32
	owned []bool
}

func NewHandleAllocator(base, capacity uint32) *HandleAllocator {
	return &HandleAllocator{
		base:  base,
		owned: make([]bool, 0, capacity),
	}
}

func (a *HandleAllocator) Acquire() uint32 {
	length := uint32(len(a.owned))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if !a.owned[i] {
			a.owned[i] = true
			return a.base + i
		}
	}

	// No existing free slots, push one.
	a.owned = append(a.owned, true)
	return a.base + uint32(len(a.owned)) - 1
}

func (a *HandleAllocator) Release(id uint32) error {
	if id < a.base {
		return fmt.Errorf("handle %d is reserved (base=%d)", id, a.base)
	}
	i := id - a.base
	if i >= uint32(len(a.owned)) || !a.owned[i] {
		return fmt.Errorf("handle %d was not acquired. Nothing was done", id)
	}
	a.owned[i] = false
	return nil
}
