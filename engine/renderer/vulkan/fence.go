package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(device *VulkanDevice, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(device.LogicalDevice, &fenceCreateInfo, device.Allocator, &pFence); res != vk.Success {
		return nil, resultError("vkCreateFence", res)
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy(device *VulkanDevice) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(device.LogicalDevice, vf.Handle, device.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks for at most timeoutNs. It reports false on timeout and on a
// lost device, the latter also returned as an error.
func (vf *VulkanFence) Wait(device *VulkanDevice, timeoutNs uint64) (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	result := vk.WaitForFences(device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return false, nil
	}
	return false, resultError("vkWaitForFences", result)
}

// Poll checks the fence without blocking.
func (vf *VulkanFence) Poll(device *VulkanDevice) (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	switch result := vk.GetFenceStatus(device.LogicalDevice, vf.Handle); result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, resultError("vkGetFenceStatus", result)
	}
}

func (vf *VulkanFence) Reset(device *VulkanDevice) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			return resultError("vkResetFences", res)
		}
		vf.IsSignaled = false
	}
	return nil
}
