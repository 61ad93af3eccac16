package metadata

type RendererInfo struct {
	APIVersion     string
	ShaderVersion  string
	Renderer       string
	Vendor         string
	ShaderPlatform string
	Caps           Caps
	// DepthMin..DepthMax is the clip space depth range.
	DepthMin, DepthMax float32
	ViewportVUp        bool
}

// GPUPerfResult is one completed timestamp interval.
type GPUPerfResult struct {
	Name  string
	Frame uint64
	Depth uint32
	// Begin and End are GPU timestamps in nanoseconds.
	Begin, End uint64
	Elapsed    uint64
}
