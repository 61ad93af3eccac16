package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

var textureFormats = map[metadata.TextureFormat]driver.Format{
	metadata.TEX_FORMAT_BGRA8_UNORM:        driver.FormatBGRA8Unorm,
	metadata.TEX_FORMAT_RGBA8_UNORM:        driver.FormatRGBA8Unorm,
	metadata.TEX_FORMAT_D24_UNORM_S8_UINT:  driver.FormatD24UnormS8Uint,
	metadata.TEX_FORMAT_D32_FLOAT:          driver.FormatD32Float,
	metadata.TEX_FORMAT_D32_FLOAT_S8_UINT:  driver.FormatD32FloatS8X24Uint,
	metadata.TEX_FORMAT_R32G32B32A32_FLOAT: driver.FormatRGBA32Float,
	metadata.TEX_FORMAT_R32_FLOAT:          driver.FormatR32Float,
	metadata.TEX_FORMAT_R16G16B16A16_FLOAT: driver.FormatRGBA16Float,
	metadata.TEX_FORMAT_R16_FLOAT:          driver.FormatR16Float,
	metadata.TEX_FORMAT_R32_UINT:           driver.FormatR32Uint,
	metadata.TEX_FORMAT_R8_UNORM:           driver.FormatR8Unorm,
	metadata.TEX_FORMAT_R32G32_FLOAT:       driver.FormatRG32Float,
	metadata.TEX_FORMAT_BC1_UNORM:          driver.FormatBC1Unorm,
	metadata.TEX_FORMAT_BC2_UNORM:          driver.FormatBC2Unorm,
	metadata.TEX_FORMAT_BC3_UNORM:          driver.FormatBC3Unorm,
	metadata.TEX_FORMAT_BC4_UNORM:          driver.FormatBC4Unorm,
	metadata.TEX_FORMAT_BC5_UNORM:          driver.FormatBC5Unorm,
}

func toNativeFormat(f metadata.TextureFormat) driver.Format {
	nf, ok := textureFormats[f]
	core.Assert(ok, "unsupported texture format %d", f)
	return nf
}

// depthAlias names the typeless storage behind a depth format and the two
// views it is read and written through.
type depthAlias struct {
	storage driver.Format
	dsv     driver.Format
	srv     driver.Format
}

var depthAliases = map[driver.Format]depthAlias{
	driver.FormatD16Unorm:          {driver.FormatR16Typeless, driver.FormatD16Unorm, driver.FormatR16Float},
	driver.FormatD32Float:          {driver.FormatR32Typeless, driver.FormatD32Float, driver.FormatR32Float},
	driver.FormatD24UnormS8Uint:    {driver.FormatR24G8Typeless, driver.FormatD24UnormS8Uint, driver.FormatR24UnormX8Typeless},
	driver.FormatD32FloatS8X24Uint: {driver.FormatR32G8X24Typeless, driver.FormatD32FloatS8X24Uint, driver.FormatR32FloatX8X24Typeless},
}

func depthAliasOf(f driver.Format) depthAlias {
	a, ok := depthAliases[f]
	core.Assert(ok, "unsupported depth texture format %s", f)
	return a
}

func toViewDimension(collection metadata.CollectionType, ms bool) driver.ViewDimension {
	switch collection {
	case metadata.TEXTURE_COLLECTION_CUBE:
		return driver.ViewDimensionCube
	case metadata.TEXTURE_COLLECTION_ARRAY:
		if ms {
			return driver.ViewDimension2DMSArray
		}
		return driver.ViewDimension2DArray
	case metadata.TEXTURE_COLLECTION_CUBE_ARRAY:
		return driver.ViewDimensionCubeArray
	case metadata.TEXTURE_COLLECTION_VOLUME:
		return driver.ViewDimension3D
	}
	if ms {
		return driver.ViewDimension2DMS
	}
	return driver.ViewDimension2D
}

func toStages(ps, vs, cs bool) driver.Stages {
	var s driver.Stages
	if ps {
		s |= driver.StagePS
	}
	if vs {
		s |= driver.StageVS
	}
	if cs {
		s |= driver.StageCS
	}
	return s
}
