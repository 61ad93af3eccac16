package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
)

func TestFormatBlock(t *testing.T) {
	tests := []struct {
		format driver.Format
		size   uint32
		pixels uint32
	}{
		{driver.FormatRGBA8Unorm, 4, 1},
		{driver.FormatRGBA32Float, 16, 1},
		{driver.FormatRGBA16Float, 8, 1},
		{driver.FormatR8Unorm, 1, 1},
		{driver.FormatD16Unorm, 2, 1},
		{driver.FormatBC1Unorm, 8, 4},
		{driver.FormatBC3Unorm, 16, 4},
	}
	for _, tt := range tests {
		size, pixels := formatBlock(tt.format)
		if size != tt.size || pixels != tt.pixels {
			t.Errorf("formatBlock(%s) = %d, %d, want %d, %d", tt.format, size, pixels, tt.size, tt.pixels)
		}
	}
}

func TestTypelessDepthCollapses(t *testing.T) {
	pairs := [][2]driver.Format{
		{driver.FormatR24G8Typeless, driver.FormatD24UnormS8Uint},
		{driver.FormatR24UnormX8Typeless, driver.FormatD24UnormS8Uint},
		{driver.FormatR32Typeless, driver.FormatD32Float},
		{driver.FormatR16Typeless, driver.FormatD16Unorm},
	}
	for _, p := range pairs {
		if toVulkanFormat(p[0]) != toVulkanFormat(p[1]) {
			t.Errorf("%s and %s map to different formats", p[0], p[1])
		}
	}
}

func TestAspectOf(t *testing.T) {
	colour := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	depth := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	stencil := vk.ImageAspectFlags(vk.ImageAspectStencilBit)

	tests := []struct {
		format driver.Format
		kind   driver.ViewKind
		want   vk.ImageAspectFlags
	}{
		{driver.FormatRGBA8Unorm, driver.ViewShaderResource, colour},
		{driver.FormatD32Float, driver.ViewDepthStencil, depth},
		{driver.FormatD24UnormS8Uint, driver.ViewDepthStencil, depth | stencil},
		{driver.FormatR24UnormX8Typeless, driver.ViewShaderResource, depth},
	}
	for _, tt := range tests {
		if got := aspectOf(tt.format, tt.kind); got != tt.want {
			t.Errorf("aspectOf(%s, %d) = %#x, want %#x", tt.format, tt.kind, got, tt.want)
		}
	}
	if got := fullAspect(driver.FormatD24UnormS8Uint); got != depth|stencil {
		t.Errorf("fullAspect = %#x", got)
	}
}

func TestToSampleCount(t *testing.T) {
	tests := map[uint32]vk.SampleCountFlagBits{
		0: vk.SampleCount1Bit,
		1: vk.SampleCount1Bit,
		4: vk.SampleCount4Bit,
		8: vk.SampleCount8Bit,
	}
	for n, want := range tests {
		if got := toSampleCount(n); got != want {
			t.Errorf("toSampleCount(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestToApiVersion(t *testing.T) {
	got := vk.Version(toApiVersion(driver.MakeFeatureLevel(1, 2)))
	if got.Major() != 1 || got.Minor() != 2 {
		t.Errorf("toApiVersion(1.2) = %d.%d", got.Major(), got.Minor())
	}
}

func TestResultError(t *testing.T) {
	tests := []struct {
		result vk.Result
		want   error
	}{
		{vk.ErrorIncompatibleDriver, core.ErrInvalidArgument},
		{vk.ErrorDeviceLost, core.ErrDeviceLost},
		{vk.ErrorOutOfDate, core.ErrSwapchainBooting},
		{vk.ErrorFormatNotSupported, core.ErrUnsupported},
		{vk.ErrorOutOfHostMemory, core.ErrUnknown},
	}
	for _, tt := range tests {
		if err := resultError("vkTest", tt.result); !errors.Is(err, tt.want) {
			t.Errorf("resultError(%s) = %v, want %v", VulkanResultString(tt.result), err, tt.want)
		}
	}
	if err := resultError("vkTest", vk.Success); err != nil {
		t.Errorf("resultError(success) = %v", err)
	}
	if err := resultError("vkTest", vk.Timeout); err != nil {
		t.Errorf("resultError(timeout) = %v", err)
	}
}
