package hal

import (
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/renderer/driver/mock"
)

func TestPerfMarkersAreIgnoredOnTheFirstFrame(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.PushPerfMarker("early")
	h.PopPerfMarker()
	if got := f.Device.Live(mock.KindQuery); got != 0 {
		t.Errorf("queries created before the first present: %d", got)
	}

	h.Present()
	// disjoint queries for every buffer plus the frame marker pair
	if got := f.Device.Live(mock.KindQuery); got != DefaultMarkerBuffers+2 {
		t.Errorf("queries after the first present = %d, want %d", got, DefaultMarkerBuffers+2)
	}
}

func TestNestedPerfMarkers(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)

	h.Present()
	h.PushPerfMarker("shadows")
	h.PushPerfMarker("cascade 0")
	h.PopPerfMarker()
	h.PopPerfMarker()
	h.Present()

	if got := h.PerfResults(); len(got) != 0 {
		t.Fatalf("results available before the gpu finished: %+v", got)
	}

	h.Present()
	results := h.PerfResults()
	if len(results) != 3 {
		t.Fatalf("results = %+v, want frame, shadows and cascade 0", results)
	}

	frame, outer, inner := results[0], results[1], results[2]
	if frame.Name != "frame" || outer.Name != "shadows" || inner.Name != "cascade 0" {
		t.Fatalf("names = %q %q %q", frame.Name, outer.Name, inner.Name)
	}
	if frame.Depth != 0 || outer.Depth != 1 || inner.Depth != 2 {
		t.Errorf("depths = %d %d %d, want 0 1 2", frame.Depth, outer.Depth, inner.Depth)
	}
	for _, r := range results {
		if r.Frame != 1 {
			t.Errorf("%s recorded in frame %d, want 1", r.Name, r.Frame)
		}
		if r.Elapsed != r.End-r.Begin || r.End <= r.Begin {
			t.Errorf("%s interval %d..%d elapsed %d", r.Name, r.Begin, r.End, r.Elapsed)
		}
	}
	if !(frame.Begin < outer.Begin && outer.Begin < inner.Begin && inner.End < outer.End && outer.End < frame.End) {
		t.Errorf("intervals are not nested: %+v", results)
	}
	if got := h.GPUTotal(); got != frame.Elapsed {
		t.Errorf("gpu total = %d, want the frame marker %d", got, frame.Elapsed)
	}

	b := &h.perf.buffers[0]
	if b.pos != 0 || b.pending {
		t.Errorf("consumed buffer not reset: pos %d pending %v", b.pos, b.pending)
	}
}

func TestPerfMarkerPairing(t *testing.T) {
	f := mock.NewFactory()
	h := newTestHAL(t, f, 1)
	h.Present()

	h.PopPerfMarker()
	expectFatal(t, func() { h.PopPerfMarker() })
}

func TestUnreadPerfBuffersExpire(t *testing.T) {
	tests := []struct {
		name     string
		latency  uint64
		disjoint bool
	}{
		{"results never arrive", 1000, false},
		{"disjoint intervals", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mock.NewFactory()
			f.Device.Latency = tt.latency
			f.Device.Disjoint = tt.disjoint
			h := newTestHAL(t, f, 1)

			for frame := 0; frame < 4*DefaultMarkerBuffers; frame++ {
				h.NewFrame()
				h.PushPerfMarker("work")
				h.PopPerfMarker()
				h.Present()
			}

			if got := h.PerfResults(); len(got) != 0 {
				t.Errorf("published %d results that can not be trusted", len(got))
			}
			for i, b := range h.perf.buffers {
				if len(b.markers) > 2 {
					t.Errorf("buffer %d grew to %d markers", i, len(b.markers))
				}
			}
			cur := h.perf.buffers[h.perf.buf]
			if cur.pos != 1 || h.perf.depth != 1 {
				t.Errorf("current buffer pos %d depth %d, want only the frame marker", cur.pos, h.perf.depth)
			}

			// Once the gpu answers again the next gathers publish.
			f.Device.Latency = 1
			f.Device.Disjoint = false
			for frame := 0; frame < 3; frame++ {
				h.NewFrame()
				h.PushPerfMarker("work")
				h.PopPerfMarker()
				h.Present()
			}
			results := h.PerfResults()
			if len(results) == 0 {
				t.Fatal("no results after the gpu recovered")
			}
			for _, r := range results {
				if r.Name != "frame" && r.Name != "work" {
					t.Errorf("unexpected marker %q", r.Name)
				}
				if r.End <= r.Begin {
					t.Errorf("%s interval %d..%d", r.Name, r.Begin, r.End)
				}
			}
			cur = h.perf.buffers[h.perf.buf]
			if cur.pos != 1 || h.perf.depth != 1 {
				t.Errorf("after recovery pos %d depth %d, want only the frame marker", cur.pos, h.perf.depth)
			}
		})
	}
}

func TestPerfResultsKeepTheNewest(t *testing.T) {
	f := mock.NewFactory()
	withPanickingFatal(t)
	h, err := Initialise(Params{Factory: f, Width: 64, Height: 64, ResultCapacity: 4})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		h.Present()
	}
	results := h.PerfResults()
	if len(results) != 4 {
		t.Fatalf("results = %d, want the capacity of 4", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Frame <= results[i-1].Frame {
			t.Errorf("results out of order: %+v", results)
		}
	}
	if last := results[len(results)-1].Frame; last != h.Frame()-2 {
		t.Errorf("newest result from frame %d, want %d", last, h.Frame()-2)
	}
}

func TestQueryStates(t *testing.T) {
	f := mock.NewFactory()
	dev := f.Device
	ctx := dev.MockContext()

	q, _ := dev.CreateQuery(0)
	if s, _ := pollQuery(ctx, q); s != QueryNotReady {
		t.Errorf("unended query = %s", s)
	}
	ctx.End(q)
	if s, _ := pollQuery(ctx, q); s != QueryNotReady {
		t.Errorf("query in flight = %s", s)
	}
	dev.Frame++
	if s, d := pollQuery(ctx, q); s != QueryReady || d.Timestamp == 0 {
		t.Errorf("completed query = %s %+v", s, d)
	}

	dq, _ := dev.CreateQuery(1)
	ctx.Begin(dq)
	ctx.End(dq)
	dev.Frame++
	dev.Disjoint = true
	if s, _ := pollQuery(ctx, dq); s != QueryExpired {
		t.Errorf("disjoint query = %s, want expired", s)
	}
}

func TestTicksToNanoseconds(t *testing.T) {
	tests := []struct {
		ticks, freq, want uint64
	}{
		{1000, 1_000_000_000, 1000},
		{1000, 1_000_000, 1_000_000},
		{3, 3_000_000_000, 1},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := ticksToNanoseconds(tt.ticks, tt.freq); got != tt.want {
			t.Errorf("ticksToNanoseconds(%d, %d) = %d, want %d", tt.ticks, tt.freq, got, tt.want)
		}
	}
}
