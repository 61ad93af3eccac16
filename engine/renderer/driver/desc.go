package driver

import "github.com/spaghettifunk/anima-hal/engine/renderer/metadata"

type TextureDimension uint32

const (
	Texture2D TextureDimension = iota
	Texture3D
)

type TextureDesc struct {
	Dimension TextureDimension
	Width     uint32
	Height    uint32
	// DepthOrArraySize is the depth of a 3D texture or the layer count otherwise.
	DepthOrArraySize uint32
	MipLevels        uint32
	SampleCount      uint32
	Format           Format
	Usage            metadata.Usage
	BindFlags        metadata.BindFlags
	CPUAccess        metadata.CPUAccessFlags
	Cube             bool
	GenerateMips     bool
}

type ViewKind uint32

const (
	ViewRenderTarget ViewKind = iota
	ViewDepthStencil
	ViewShaderResource
	ViewStorage
)

type ViewDimension uint32

const (
	ViewDimension2D ViewDimension = iota
	ViewDimension2DMS
	ViewDimension2DArray
	ViewDimension2DMSArray
	ViewDimensionCube
	ViewDimensionCubeArray
	ViewDimension3D
)

// IsArray reports whether views of this dimension address array slices
// individually when used as targets.
func (d ViewDimension) IsArray() bool {
	return d == ViewDimension2DArray || d == ViewDimensionCubeArray || d == ViewDimensionCube
}

func (d ViewDimension) IsCube() bool {
	return d == ViewDimensionCubeArray || d == ViewDimensionCube
}

type ViewDesc struct {
	Kind      ViewKind
	Format    Format
	Dimension ViewDimension
	// MipLevels of 0 means every level from MostDetailedMip.
	MostDetailedMip uint32
	MipLevels       uint32
	FirstSlice      uint32
	// ArraySize counts layers, or whole cubes for cube dimensions.
	ArraySize uint32
}

type BufferDesc struct {
	Size      uint32
	Stride    uint32
	Usage     metadata.Usage
	BindFlags metadata.BindFlags
	CPUAccess metadata.CPUAccessFlags
}

type Stages uint32

const (
	StageVS Stages = 1 << iota
	StagePS
	StageGS
	StageCS
)

type QueryKind uint32

const (
	QueryTimestamp QueryKind = iota
	// QueryTimestampDisjoint brackets a set of timestamps and reports the
	// tick frequency and whether the interval can be trusted.
	QueryTimestampDisjoint
)

type QueryData struct {
	Timestamp uint64
	Frequency uint64
	Disjoint  bool
}

type MappedSubresource struct {
	Data       []byte
	RowPitch   uint32
	DepthPitch uint32
}

type DriverType uint32

const (
	DriverHardware DriverType = iota
	DriverWarp
	DriverReference
)

func (t DriverType) String() string {
	switch t {
	case DriverHardware:
		return "hardware"
	case DriverWarp:
		return "warp"
	case DriverReference:
		return "reference"
	}
	return "unknown"
}

// FeatureLevel packs an API major and minor version.
type FeatureLevel uint32

func MakeFeatureLevel(major, minor uint32) FeatureLevel {
	return FeatureLevel(major<<8 | minor)
}

func (l FeatureLevel) Major() uint32 { return uint32(l) >> 8 }
func (l FeatureLevel) Minor() uint32 { return uint32(l) & 0xff }

// FeatureLevels are tried highest first.
var FeatureLevels = []FeatureLevel{
	MakeFeatureLevel(1, 3),
	MakeFeatureLevel(1, 2),
	MakeFeatureLevel(1, 1),
	MakeFeatureLevel(1, 0),
}

type SwapchainDesc struct {
	Width       uint32
	Height      uint32
	Format      Format
	SampleCount uint32
	BufferCount uint32
	// RefreshRate is only honoured by the legacy path.
	RefreshRate uint32
	VSync       bool
}
