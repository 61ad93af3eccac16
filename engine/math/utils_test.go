package math

import "testing"

func TestNumMips(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{256, 256, 9},
		{1280, 720, 11},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := NumMips(tt.w, tt.h); got != tt.want {
			t.Errorf("NumMips(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestMipExtentAndClamp(t *testing.T) {
	if got := MipExtent(uint32(5), 2); got != 1 {
		t.Errorf("MipExtent(5, 2) = %d, want 1", got)
	}
	if got := MipExtent(uint32(5), 9); got != 1 {
		t.Errorf("MipExtent(5, 9) = %d, want 1", got)
	}
	if got := Clamp(12, 0, 10); got != 10 {
		t.Errorf("Clamp = %d", got)
	}
	if got := DivCeil(10, 4); got != 3 {
		t.Errorf("DivCeil(10, 4) = %d, want 3", got)
	}
}
