package hal

import (
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func TestResourceTableGrow(t *testing.T) {
	withPanickingFatal(t)
	table := newResourceTable(4)

	s := table.prepare(3, slotClearState)
	s.clear = &metadata.ClearState{R: 0.5}

	table.grow(9)
	if got := table.len(); got != 16 {
		t.Fatalf("len after grow(9) = %d, want 16", got)
	}
	table.grow(9)
	if got := table.len(); got != 16 {
		t.Errorf("second grow(9) changed len to %d", got)
	}
	table.grow(2)
	if got := table.len(); got != 16 {
		t.Errorf("grow to a smaller handle changed len to %d", got)
	}

	got := table.lookup(3, slotClearState)
	if got == nil || got.clear.R != 0.5 {
		t.Error("grow lost the contents of an issued handle")
	}
	if table.lookup(3, slotBuffer) != nil {
		t.Error("lookup of the wrong kind must miss")
	}
	if table.at(100) != nil {
		t.Error("at past the end must be nil")
	}
}

func TestResourceTableRejectsNull(t *testing.T) {
	withPanickingFatal(t)
	table := newResourceTable(4)
	expectFatal(t, func() { table.prepare(metadata.NullHandle, slotBuffer) })
	expectFatal(t, func() { table.prepare(metadata.InvalidHandle, slotBuffer) })
}

func TestResourceTableGrowFromEmpty(t *testing.T) {
	var table resourceTable
	table.grow(0)
	if table.len() != 1 {
		t.Errorf("len = %d, want 1", table.len())
	}
	table.grow(5)
	if table.len() != 8 {
		t.Errorf("len = %d, want 8", table.len())
	}
}
