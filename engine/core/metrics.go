package core

import (
	"sync"
)

const AVG_COUNT uint8 = 30

type MetricsState struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	GPUAVGCounter uint8
	GPUMStimes    [AVG_COUNT]float64
	GPUMSavg      float64
	// GPUMarkers holds the latest elapsed milliseconds per marker name.
	GPUMarkers map[string]float64
}

var onceMetrics sync.Once
var metricsMu sync.Mutex
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes:    [AVG_COUNT]float64{0},
			GPUMarkers: make(map[string]float64),
		}
	})
	return nil
}

func MetricsUpdate(frame_elapsed_time float64) {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	// Calculate frame ms average
	frame_ms := (frame_elapsed_time * 1000.0)
	metricsState.MStimes[metricsState.FrameAVGCounter] = frame_ms
	if metricsState.FrameAVGCounter == AVG_COUNT-1 {
		metricsState.MSavg = average(metricsState.MStimes[:])
	}
	metricsState.FrameAVGCounter++
	metricsState.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	metricsState.AccumulatedFrameMS += frame_ms
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}

	// Count all Frames.
	metricsState.Frames++
}

// MetricsGPUUpdate records a gathered GPU timing. The frame marker (depth 0)
// feeds the rolling GPU frame average.
func MetricsGPUUpdate(name string, depth uint32, elapsedNS uint64) {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	ms := float64(elapsedNS) / 1e6
	metricsState.GPUMarkers[name] = ms
	if depth != 0 {
		return
	}
	metricsState.GPUMStimes[metricsState.GPUAVGCounter] = ms
	if metricsState.GPUAVGCounter == AVG_COUNT-1 {
		metricsState.GPUMSavg = average(metricsState.GPUMStimes[:])
	}
	metricsState.GPUAVGCounter++
	metricsState.GPUAVGCounter %= AVG_COUNT
}

func average(samples []float64) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func MetricsFPS() float64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsState.FPS
}

func MetricsFrameTime() float64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsState.MSavg
}

func MetricsFrame() (float64, float64) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsState.FPS, metricsState.MSavg
}

func MetricsGPUFrameTime() float64 {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsState.GPUMSavg
}

// MetricsGPUMarker returns the last time in ms recorded for a marker name.
func MetricsGPUMarker(name string) (float64, bool) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	ms, ok := metricsState.GPUMarkers[name]
	return ms, ok
}
