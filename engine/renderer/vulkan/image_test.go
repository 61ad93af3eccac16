package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
)

func TestViewRange(t *testing.T) {
	array := &VulkanImage{mips: 4, layers: 12}
	volume := &VulkanImage{mips: 3, layers: 1, depth: 8}

	tests := []struct {
		name   string
		img    *VulkanImage
		desc   driver.ViewDesc
		base   uint32
		levels uint32
		first  uint32
		layers uint32
	}{
		{
			name:   "srv all mips",
			img:    array,
			desc:   driver.ViewDesc{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimension2D},
			levels: 4, layers: 1,
		},
		{
			name: "rtv one mip",
			img:  array,
			desc: driver.ViewDesc{Kind: driver.ViewRenderTarget, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimension2DArray,
				MostDetailedMip: 2, FirstSlice: 3, ArraySize: 1},
			base: 2, levels: 1, first: 3, layers: 1,
		},
		{
			name:   "cube",
			img:    array,
			desc:   driver.ViewDesc{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimensionCube, FirstSlice: 6},
			levels: 4, first: 6, layers: 6,
		},
		{
			name:   "cube array counts cubes",
			img:    array,
			desc:   driver.ViewDesc{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimensionCubeArray, ArraySize: 2},
			levels: 4, layers: 12,
		},
		{
			name:   "array rest of layers",
			img:    array,
			desc:   driver.ViewDesc{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimension2DArray, FirstSlice: 4, MipLevels: 2},
			levels: 2, first: 4, layers: 8,
		},
		{
			name:   "volume storage",
			img:    volume,
			desc:   driver.ViewDesc{Kind: driver.ViewStorage, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimension3D, ArraySize: 8},
			levels: 1, layers: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := viewRange(tt.img, tt.desc)
			if err != nil {
				t.Fatal(err)
			}
			if r.BaseMipLevel != tt.base || r.LevelCount != tt.levels || r.BaseArrayLayer != tt.first || r.LayerCount != tt.layers {
				t.Errorf("range = mips %d+%d layers %d+%d, want mips %d+%d layers %d+%d",
					r.BaseMipLevel, r.LevelCount, r.BaseArrayLayer, r.LayerCount,
					tt.base, tt.levels, tt.first, tt.layers)
			}
			if r.AspectMask != vk.ImageAspectFlags(vk.ImageAspectColorBit) {
				t.Errorf("aspect = %#x", r.AspectMask)
			}
		})
	}
}

func TestViewRangeOutOfBounds(t *testing.T) {
	img := &VulkanImage{mips: 2, layers: 6}
	bad := []driver.ViewDesc{
		{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimension2D, MostDetailedMip: 2},
		{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimensionCube, FirstSlice: 1},
		{Kind: driver.ViewShaderResource, Format: driver.FormatRGBA8Unorm, Dimension: driver.ViewDimension2DArray, FirstSlice: 4, ArraySize: 3},
	}
	for _, desc := range bad {
		if _, err := viewRange(img, desc); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("viewRange(%+v) err = %v", desc, err)
		}
	}
}

func TestReadbackSize(t *testing.T) {
	tests := []struct {
		desc            driver.TextureDesc
		size, row, slab uint32
	}{
		{driver.TextureDesc{Width: 64, Height: 32, DepthOrArraySize: 1, Format: driver.FormatRGBA8Unorm}, 64 * 32 * 4, 256, 64 * 32 * 4},
		{driver.TextureDesc{Width: 4, Height: 4, DepthOrArraySize: 6, Format: driver.FormatR32Float}, 4 * 4 * 4 * 6, 16, 64},
		{driver.TextureDesc{Width: 10, Height: 6, Format: driver.FormatBC1Unorm}, 3 * 2 * 8, 24, 48},
	}
	for _, tt := range tests {
		size, row, slab := readbackSize(tt.desc)
		if size != tt.size || row != tt.row || slab != tt.slab {
			t.Errorf("readbackSize(%dx%d %s) = %d, %d, %d, want %d, %d, %d",
				tt.desc.Width, tt.desc.Height, tt.desc.Format, size, row, slab, tt.size, tt.row, tt.slab)
		}
	}
}

func TestRenderPassKey(t *testing.T) {
	colour := &VulkanImage{Format: vk.FormatR8g8b8a8Unorm, desc: driver.TextureDesc{SampleCount: 4}}
	depth := &VulkanImage{Format: vk.FormatD24UnormS8Uint, desc: driver.TextureDesc{SampleCount: 4}}
	key := keyFor([]*VulkanView{{image: colour}, {image: colour}}, &VulkanView{image: depth})
	if key.count != 2 || key.colours[1] != vk.FormatR8g8b8a8Unorm {
		t.Errorf("colours = %d %v", key.count, key.colours[:key.count])
	}
	if key.depth != vk.FormatD24UnormS8Uint || key.samples != vk.SampleCount4Bit {
		t.Errorf("depth = %d samples = %d", key.depth, key.samples)
	}

	gap := keyFor([]*VulkanView{nil, {image: colour}}, nil)
	if gap.count != 2 || gap.colours[0] != vk.FormatUndefined || gap.colours[1] != vk.FormatR8g8b8a8Unorm {
		t.Errorf("unused slot = %d %v", gap.count, gap.colours[:gap.count])
	}
	if gap.samples != vk.SampleCount4Bit {
		t.Errorf("unused slot samples = %d", gap.samples)
	}

	only := keyFor(nil, nil)
	if only.count != 0 || only.depth != vk.FormatUndefined || only.samples != vk.SampleCount1Bit {
		t.Errorf("empty key = %+v", only)
	}
}
