package driver

// Format is a native surface format. Typeless formats describe storage only
// and are reinterpreted by the views created on them.
type Format uint32

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA32Float
	FormatRGBA16Float
	FormatRG32Float
	FormatR32Float
	FormatR16Float
	FormatR32Uint
	FormatR16Uint
	FormatR8Unorm
	FormatBC1Unorm
	FormatBC2Unorm
	FormatBC3Unorm
	FormatBC4Unorm
	FormatBC5Unorm

	// typeless storage and its aliases
	FormatR16Typeless
	FormatD16Unorm
	FormatR32Typeless
	FormatD32Float
	FormatR24G8Typeless
	FormatD24UnormS8Uint
	FormatR24UnormX8Typeless
	FormatR32G8X24Typeless
	FormatD32FloatS8X24Uint
	FormatR32FloatX8X24Typeless
)

var formatNames = map[Format]string{
	FormatUnknown:               "unknown",
	FormatRGBA8Unorm:            "rgba8_unorm",
	FormatBGRA8Unorm:            "bgra8_unorm",
	FormatRGBA32Float:           "rgba32_float",
	FormatRGBA16Float:           "rgba16_float",
	FormatRG32Float:             "rg32_float",
	FormatR32Float:              "r32_float",
	FormatR16Float:              "r16_float",
	FormatR32Uint:               "r32_uint",
	FormatR16Uint:               "r16_uint",
	FormatR8Unorm:               "r8_unorm",
	FormatBC1Unorm:              "bc1_unorm",
	FormatBC2Unorm:              "bc2_unorm",
	FormatBC3Unorm:              "bc3_unorm",
	FormatBC4Unorm:              "bc4_unorm",
	FormatBC5Unorm:              "bc5_unorm",
	FormatR16Typeless:           "r16_typeless",
	FormatD16Unorm:              "d16_unorm",
	FormatR32Typeless:           "r32_typeless",
	FormatD32Float:              "d32_float",
	FormatR24G8Typeless:         "r24g8_typeless",
	FormatD24UnormS8Uint:        "d24_unorm_s8_uint",
	FormatR24UnormX8Typeless:    "r24_unorm_x8_typeless",
	FormatR32G8X24Typeless:      "r32g8x24_typeless",
	FormatD32FloatS8X24Uint:     "d32_float_s8x24_uint",
	FormatR32FloatX8X24Typeless: "r32_float_x8x24_typeless",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "invalid"
}

// IsTypeless reports whether f only describes storage.
func (f Format) IsTypeless() bool {
	switch f {
	case FormatR16Typeless, FormatR32Typeless, FormatR24G8Typeless, FormatR32G8X24Typeless:
		return true
	}
	return false
}

// HasDepth reports whether views of this format write or read depth.
func (f Format) HasDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Float, FormatD24UnormS8Uint, FormatD32FloatS8X24Uint,
		FormatR24UnormX8Typeless, FormatR32FloatX8X24Typeless:
		return true
	}
	return f.IsTypeless()
}

// HasStencil reports whether the format carries a stencil aspect.
func (f Format) HasStencil() bool {
	switch f {
	case FormatD24UnormS8Uint, FormatD32FloatS8X24Uint, FormatR24G8Typeless, FormatR32G8X24Typeless:
		return true
	}
	return false
}
