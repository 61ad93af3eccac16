package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
)

// Render passes load and store every attachment so a pass can be ended and
// begun again around copies and clears without losing contents.
type renderPassKey struct {
	colours [maxColourAttachments]vk.Format
	count   int
	depth   vk.Format
	samples vk.SampleCountFlagBits
}

type framebufferKey struct {
	pass    vk.RenderPass
	colours [maxColourAttachments]*VulkanView
	depth   *VulkanView
}

type renderPassCache struct {
	device       *VulkanDevice
	passes       map[renderPassKey]vk.RenderPass
	framebuffers map[framebufferKey]*VulkanFramebuffer
}

func newRenderPassCache(device *VulkanDevice) *renderPassCache {
	return &renderPassCache{
		device:       device,
		passes:       make(map[renderPassKey]vk.RenderPass),
		framebuffers: make(map[framebufferKey]*VulkanFramebuffer),
	}
}

func (c *renderPassCache) destroy() {
	for key, fb := range c.framebuffers {
		fb.Destroy(c.device)
		delete(c.framebuffers, key)
	}
	for key, pass := range c.passes {
		vk.DestroyRenderPass(c.device.LogicalDevice, pass, c.device.Allocator)
		delete(c.passes, key)
	}
}

// keyFor describes the attachments of a target set. A nil colour view is an
// unused slot and keys as FormatUndefined.
func keyFor(colours []*VulkanView, depth *VulkanView) renderPassKey {
	var key renderPassKey
	key.samples = vk.SampleCount1Bit
	for i, v := range colours {
		if v == nil {
			key.colours[i] = vk.FormatUndefined
			continue
		}
		key.colours[i] = v.image.Format
		key.samples = toSampleCount(v.image.desc.SampleCount)
	}
	key.count = len(colours)
	key.depth = vk.FormatUndefined
	if depth != nil {
		key.depth = depth.image.Format
		key.samples = toSampleCount(depth.image.desc.SampleCount)
	}
	return key
}

func (c *renderPassCache) renderPass(key renderPassKey) (vk.RenderPass, error) {
	if pass, ok := c.passes[key]; ok {
		return pass, nil
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	var attachments []vk.AttachmentDescription
	var colourRefs []vk.AttachmentReference
	for i := 0; i < key.count; i++ {
		if key.colours[i] == vk.FormatUndefined {
			colourRefs = append(colourRefs, vk.AttachmentReference{
				Attachment: vk.AttachmentUnused,
				Layout:     vk.ImageLayoutUndefined,
			})
			continue
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         key.colours[i],
			Samples:        key.samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		colourRefs = append(colourRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}
	subpass.ColorAttachmentCount = uint32(len(colourRefs))
	subpass.PColorAttachments = colourRefs

	if key.depth != vk.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         key.depth,
			Samples:        key.samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpLoad,
			StencilStoreOp: vk.AttachmentStoreOpStore,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(c.device.LogicalDevice, &createInfo, c.device.Allocator, &pass); res != vk.Success {
		return nil, resultError("vkCreateRenderPass", res)
	}
	c.passes[key] = pass
	return pass, nil
}

// framebuffer returns the framebuffer of pass over the given targets, sized
// to the smallest of them.
func (c *renderPassCache) framebuffer(pass vk.RenderPass, colours []*VulkanView, depth *VulkanView) (*VulkanFramebuffer, error) {
	key := framebufferKey{pass: pass, depth: depth}
	copy(key.colours[:], colours)
	if fb, ok := c.framebuffers[key]; ok {
		return fb, nil
	}

	var views []vk.ImageView
	width, height := ^uint32(0), ^uint32(0)
	add := func(v *VulkanView) {
		views = append(views, v.Handle)
		width = min(width, v.Width)
		height = min(height, v.Height)
	}
	for _, v := range colours {
		if v != nil {
			add(v)
		}
	}
	if depth != nil {
		add(depth)
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("framebuffer without attachments: %w", core.ErrInvalidArgument)
	}

	fb, err := FramebufferCreate(c.device, pass, width, height, views)
	if err != nil {
		return nil, err
	}
	c.framebuffers[key] = fb
	return fb, nil
}

// evictView drops every framebuffer that attaches v.
func (c *renderPassCache) evictView(v *VulkanView) {
	if c == nil {
		return
	}
	for key, fb := range c.framebuffers {
		uses := key.depth == v
		for _, colour := range key.colours {
			uses = uses || colour == v
		}
		if !uses {
			continue
		}
		delete(c.framebuffers, key)
		c.device.retire(func() { fb.Destroy(c.device) })
	}
}
