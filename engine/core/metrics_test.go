package core

import (
	"math"
	"testing"
)

func TestMetricsAverages(t *testing.T) {
	if err := MetricsInitialize(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < int(AVG_COUNT); i++ {
		MetricsUpdate(0.010)
		MetricsGPUUpdate("frame", 0, 4_000_000)
	}
	if got := MetricsFrameTime(); math.Abs(got-10) > 1e-9 {
		t.Errorf("MetricsFrameTime() = %v, want 10", got)
	}
	if got := MetricsGPUFrameTime(); math.Abs(got-4) > 1e-9 {
		t.Errorf("MetricsGPUFrameTime() = %v, want 4", got)
	}

	MetricsGPUUpdate("shadow", 1, 500_000)
	if ms, ok := MetricsGPUMarker("shadow"); !ok || ms != 0.5 {
		t.Errorf("MetricsGPUMarker(shadow) = %v, %v", ms, ok)
	}
	if _, ok := MetricsGPUMarker("missing"); ok {
		t.Error("unexpected marker")
	}
}
