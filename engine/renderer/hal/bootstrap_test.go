package hal

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
)

func TestDeviceNegotiation(t *testing.T) {
	tests := []struct {
		name      string
		available map[driver.DriverType]bool
		maxLevel  driver.FeatureLevel
		wantType  driver.DriverType
		wantLevel driver.FeatureLevel
		attempts  int
	}{
		{
			name:      "hardware with every level",
			available: map[driver.DriverType]bool{driver.DriverHardware: true},
			wantType:  driver.DriverHardware,
			wantLevel: driver.MakeFeatureLevel(1, 3),
			attempts:  1,
		},
		{
			name:      "highest level unknown",
			available: map[driver.DriverType]bool{driver.DriverHardware: true},
			maxLevel:  driver.MakeFeatureLevel(1, 2),
			wantType:  driver.DriverHardware,
			wantLevel: driver.MakeFeatureLevel(1, 2),
			attempts:  2,
		},
		{
			name:      "falls back to warp",
			available: map[driver.DriverType]bool{driver.DriverWarp: true},
			wantType:  driver.DriverWarp,
			wantLevel: driver.MakeFeatureLevel(1, 3),
			attempts:  2,
		},
		{
			name:      "reference without the highest level",
			available: map[driver.DriverType]bool{driver.DriverReference: true},
			maxLevel:  driver.MakeFeatureLevel(1, 2),
			wantType:  driver.DriverReference,
			wantLevel: driver.MakeFeatureLevel(1, 2),
			attempts:  6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mock.NewFactory()
			f.Available = tt.available
			f.MaxLevel = tt.maxLevel
			h := newTestHAL(t, f, 1)

			if h.driverType != tt.wantType || h.featureLevel != tt.wantLevel {
				t.Errorf("got %s %d.%d, want %s %d.%d", h.driverType, h.featureLevel.Major(), h.featureLevel.Minor(),
					tt.wantType, tt.wantLevel.Major(), tt.wantLevel.Minor())
			}
			if len(f.Attempts) != tt.attempts {
				t.Errorf("attempts = %d, want %d: %+v", len(f.Attempts), tt.attempts, f.Attempts)
			}
			if tt.maxLevel != 0 && len(f.Attempts[1].Levels) != len(driver.FeatureLevels)-1 {
				t.Errorf("retry did not drop the highest level: %+v", f.Attempts[1])
			}
		})
	}
}

func TestNoDevice(t *testing.T) {
	withPanickingFatal(t)
	f := mock.NewFactory()
	f.Available = nil

	_, err := Initialise(Params{Factory: f, Width: 64, Height: 64})
	if !errors.Is(err, core.ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
	if len(f.Attempts) != len(driverTypes) {
		t.Errorf("attempts = %d, want one per driver type", len(f.Attempts))
	}
}

func TestSwapchainPaths(t *testing.T) {
	for _, modern := range []bool{true, false} {
		f := mock.NewFactory()
		f.Modern = modern
		newTestHAL(t, f, 1)

		sc := f.Swapchain
		if sc.Modern != modern {
			t.Errorf("modern = %v, want %v", sc.Modern, modern)
		}
		if !modern && sc.Desc.RefreshRate != 60 {
			t.Errorf("legacy refresh rate = %d, want 60", sc.Desc.RefreshRate)
		}
		if sc.Desc.Width != 640 || sc.Desc.Height != 480 {
			t.Errorf("swapchain = %dx%d", sc.Desc.Width, sc.Desc.Height)
		}
	}
}

func TestPresentOrder(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.NewFrame()
	h.Present()
	h.NewFrame()
	h.Present()

	if h.Frame() != 2 || f.Swapchain.Presents != 2 {
		t.Errorf("frame %d presents %d", h.Frame(), f.Swapchain.Presents)
	}
	if len(h.perf.stack) != 1 || h.perf.buffers[h.perf.buf].markers[0].name != "frame" {
		t.Error("each frame must open with a frame marker")
	}
}

func TestBackbufferHandlesAreReserved(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	expectFatal(t, func() { h.createRTVs(3, 4) })
}

func TestFormatTables(t *testing.T) {
	tests := []struct {
		depth         driver.Format
		storage, read driver.Format
	}{
		{driver.FormatD16Unorm, driver.FormatR16Typeless, driver.FormatR16Float},
		{driver.FormatD32Float, driver.FormatR32Typeless, driver.FormatR32Float},
		{driver.FormatD24UnormS8Uint, driver.FormatR24G8Typeless, driver.FormatR24UnormX8Typeless},
		{driver.FormatD32FloatS8X24Uint, driver.FormatR32G8X24Typeless, driver.FormatR32FloatX8X24Typeless},
	}
	for _, tt := range tests {
		a := depthAliasOf(tt.depth)
		if a.storage != tt.storage || a.dsv != tt.depth || a.srv != tt.read {
			t.Errorf("%s aliases = %+v", tt.depth, a)
		}
		if !a.storage.IsTypeless() {
			t.Errorf("%s storage %s is not typeless", tt.depth, a.storage)
		}
	}

	withPanickingFatal(t)
	expectFatal(t, func() { depthAliasOf(driver.FormatRGBA8Unorm) })
}
