package vulkan

import (
	"fmt"
	"math"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// frameResources is what one frame in flight records into.
type frameResources struct {
	commandBuffer  *VulkanCommandBuffer
	fence          *VulkanFence
	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore
	descriptors    vk.DescriptorPool
	// serial of the last submission made from this frame.
	serial   uint64
	inFlight bool
}

type retired struct {
	serial  uint64
	release func()
}

type vertexBinding struct {
	buffer *VulkanBuffer
	stride uint32
	offset uint32
}

// VulkanContext implements driver.Context on the graphics queue. Commands
// are recorded into the current frame's command buffer, begun on first use
// and submitted by Present or by a CPU read back. Render passes are begun
// lazily by draws and ended by anything that cannot run inside one.
type VulkanContext struct {
	device *VulkanDevice

	frames       [MaxFramesInFlight]*frameResources
	CurrentFrame uint32
	recording    bool

	// serial numbers submissions. completed is the newest one known to have
	// finished on the GPU.
	serial    uint64
	completed uint64
	garbage   []retired

	colours     []*VulkanView
	depth       *VulkanView
	inPass      bool
	passKey     renderPassKey
	pass        vk.RenderPass
	framebuffer *VulkanFramebuffer

	viewport vk.Viewport
	scissor  vk.Rect2D

	shaders       [metadata.SHADER_TYPE_CS + 1]*VulkanShader
	layout        *VulkanInputLayout
	vertexBuffers [maxVertexBuffers]vertexBinding
	indexBuffer   *VulkanBuffer
	indexType     vk.IndexType
	indexOffset   uint32
	raster        *VulkanRasterState
	blend         *VulkanBlendState
	depthStencil  *VulkanDepthStencilState
	stencilRef    uint32

	bindings  bindings
	sets      [descriptorSetCount]vk.DescriptorSet
	setsDirty bool

	warnedStreamOut bool
}

func newVulkanContext(device *VulkanDevice) (*VulkanContext, error) {
	ctx := &VulkanContext{device: device, serial: 1}
	for i := range ctx.frames {
		frame := &frameResources{}
		ctx.frames[i] = frame

		var err error
		if frame.commandBuffer, err = NewVulkanCommandBuffer(device, device.GraphicsCommandPool, true); err != nil {
			ctx.destroy()
			return nil, err
		}
		// Created signaled so the first wait on an unused frame passes.
		if frame.fence, err = NewFence(device, true); err != nil {
			ctx.destroy()
			return nil, err
		}
		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreCreateInfo, device.Allocator, &frame.imageAvailable); res != vk.Success {
			ctx.destroy()
			return nil, resultError("vkCreateSemaphore", res)
		}
		if res := vk.CreateSemaphore(device.LogicalDevice, &semaphoreCreateInfo, device.Allocator, &frame.renderComplete); res != vk.Success {
			ctx.destroy()
			return nil, resultError("vkCreateSemaphore", res)
		}
		if frame.descriptors, err = device.layouts.newDescriptorPool(); err != nil {
			ctx.destroy()
			return nil, err
		}
	}
	core.LogDebug("Vulkan context created with %d frames in flight.", MaxFramesInFlight)
	return ctx, nil
}

// destroy expects the device to be idle.
func (ctx *VulkanContext) destroy() {
	for _, g := range ctx.garbage {
		g.release()
	}
	ctx.garbage = nil
	device := ctx.device
	for _, frame := range ctx.frames {
		if frame == nil {
			continue
		}
		if frame.commandBuffer != nil {
			frame.commandBuffer.Free(device, device.GraphicsCommandPool)
		}
		if frame.fence != nil {
			frame.fence.Destroy(device)
		}
		if frame.imageAvailable != vk.NullSemaphore {
			vk.DestroySemaphore(device.LogicalDevice, frame.imageAvailable, device.Allocator)
		}
		if frame.renderComplete != vk.NullSemaphore {
			vk.DestroySemaphore(device.LogicalDevice, frame.renderComplete, device.Allocator)
		}
		if frame.descriptors != nil {
			vk.DestroyDescriptorPool(device.LogicalDevice, frame.descriptors, device.Allocator)
		}
	}
}

// retire runs release once every submission that may use the object has
// finished. Without a context nothing is in flight.
func (device *VulkanDevice) retire(release func()) {
	if device.ctx == nil {
		release()
		return
	}
	device.ctx.garbage = append(device.ctx.garbage, retired{serial: device.ctx.serial, release: release})
}

func (ctx *VulkanContext) frame() *frameResources {
	return ctx.frames[ctx.CurrentFrame]
}

// finished records that frame's submission is done and frees what waited on it.
func (ctx *VulkanContext) finished(frame *frameResources) {
	frame.inFlight = false
	if frame.serial > ctx.completed {
		ctx.completed = frame.serial
	}
	kept := ctx.garbage[:0]
	for _, g := range ctx.garbage {
		if g.serial <= ctx.completed {
			g.release()
			continue
		}
		kept = append(kept, g)
	}
	ctx.garbage = kept
}

// poll notices finished frames without blocking.
func (ctx *VulkanContext) poll() error {
	for _, frame := range ctx.frames {
		if !frame.inFlight {
			continue
		}
		done, err := frame.fence.Poll(ctx.device)
		if err != nil {
			return err
		}
		if done {
			ctx.finished(frame)
		}
	}
	return nil
}

// waitIdle blocks until every submitted frame has finished.
func (ctx *VulkanContext) waitIdle() error {
	for _, frame := range ctx.frames {
		if !frame.inFlight {
			continue
		}
		if _, err := frame.fence.Wait(ctx.device, math.MaxUint64); err != nil {
			return err
		}
		ctx.finished(frame)
	}
	return nil
}

// commandBuffer returns the recording command buffer, beginning the frame
// if needed. It reports false when recording cannot start.
func (ctx *VulkanContext) commandBuffer() (vk.CommandBuffer, bool) {
	frame := ctx.frame()
	if ctx.recording {
		return frame.commandBuffer.Handle, true
	}
	if err := ctx.beginFrame(frame); err != nil {
		core.LogError("Unable to begin recording frame %d: %s", ctx.serial, err)
		return nil, false
	}
	return frame.commandBuffer.Handle, true
}

func (ctx *VulkanContext) beginFrame(frame *frameResources) error {
	// Wait for the execution of the last use of this frame to complete.
	if frame.inFlight {
		if _, err := frame.fence.Wait(ctx.device, math.MaxUint64); err != nil {
			return err
		}
		ctx.finished(frame)
	}
	if res := vk.ResetDescriptorPool(ctx.device.LogicalDevice, frame.descriptors, 0); res != vk.Success {
		return resultError("vkResetDescriptorPool", res)
	}
	if err := frame.commandBuffer.Reset(); err != nil {
		return err
	}
	if err := frame.commandBuffer.Begin(true, false, false); err != nil {
		return err
	}
	ctx.recording = true
	ctx.setsDirty = true
	return nil
}

// submit ends the frame and hands it to the queue. wait and signal are
// optional semaphores for presentation.
func (ctx *VulkanContext) submit(wait, signal vk.Semaphore) error {
	if _, ok := ctx.commandBuffer(); !ok {
		return fmt.Errorf("submit without a command buffer: %w", core.ErrDeviceLost)
	}
	ctx.endRenderPass()

	frame := ctx.frame()
	ctx.recording = false
	ctx.CurrentFrame = (ctx.CurrentFrame + 1) % MaxFramesInFlight

	if err := frame.commandBuffer.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{frame.commandBuffer.Handle},
	}
	// The wait semaphore holds back the copy into the acquired image.
	if wait != vk.NullSemaphore {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{wait}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)}
	}
	if signal != vk.NullSemaphore {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{signal}
	}

	if err := frame.fence.Reset(ctx.device); err != nil {
		return err
	}
	if err := lockPool.SafeQueueCall(uint32(ctx.device.GraphicsQueueIndex), func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(ctx.device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, frame.fence.Handle))
	}); err != nil {
		return err
	}
	frame.commandBuffer.UpdateSubmitted()
	frame.serial = ctx.serial
	frame.inFlight = true
	ctx.serial++
	return nil
}

func (ctx *VulkanContext) endRenderPass() {
	if !ctx.inPass {
		return
	}
	vk.CmdEndRenderPass(ctx.frame().commandBuffer.Handle)
	ctx.inPass = false
}

// isTarget reports whether img is attached to the bound targets.
func (ctx *VulkanContext) isTarget(img *VulkanImage) bool {
	if ctx.depth != nil && ctx.depth.image == img {
		return true
	}
	for _, v := range ctx.colours {
		if v != nil && v.image == img {
			return true
		}
	}
	return false
}

// hasTargets reports whether any colour or depth target is bound.
func (ctx *VulkanContext) hasTargets() bool {
	if ctx.depth != nil {
		return true
	}
	for _, v := range ctx.colours {
		if v != nil {
			return true
		}
	}
	return false
}

// transitionBindings puts every bound shader resource in the layout its
// descriptor expects.
func (ctx *VulkanContext) transitionBindings(cb vk.CommandBuffer) {
	for unit := range ctx.bindings.textures {
		if v := ctx.bindings.textures[unit]; v != nil && !ctx.isTarget(v.image) {
			v.image.transition(cb, vk.ImageLayoutShaderReadOnlyOptimal)
		}
		if v := ctx.bindings.images[unit]; v != nil {
			v.image.transition(cb, vk.ImageLayoutGeneral)
		}
	}
}

func (ctx *VulkanContext) ensureRenderPass(cb vk.CommandBuffer) error {
	if ctx.inPass {
		return nil
	}
	if !ctx.hasTargets() {
		return fmt.Errorf("no render targets bound: %w", core.ErrInvalidArgument)
	}
	ctx.transitionBindings(cb)
	for _, v := range ctx.colours {
		if v != nil {
			v.image.transition(cb, vk.ImageLayoutColorAttachmentOptimal)
		}
	}
	if ctx.depth != nil {
		ctx.depth.image.transition(cb, vk.ImageLayoutDepthStencilAttachmentOptimal)
	}

	key := keyFor(ctx.colours, ctx.depth)
	pass, err := ctx.device.passes.renderPass(key)
	if err != nil {
		return err
	}
	fb, err := ctx.device.passes.framebuffer(pass, ctx.colours, ctx.depth)
	if err != nil {
		return err
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb.Handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height},
		},
	}
	vk.CmdBeginRenderPass(cb, &beginInfo, vk.SubpassContentsInline)
	ctx.inPass = true
	ctx.passKey = key
	ctx.pass = pass
	ctx.framebuffer = fb
	return nil
}

// memoryBarrier orders everything recorded so far before everything after.
func memoryBarrier(cb vk.CommandBuffer) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0, 1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

func (ctx *VulkanContext) SetRenderTargets(colours []driver.View, depth driver.View) {
	// Nil entries stay in place as unused attachments so every view keeps
	// its output slot.
	next := make([]*VulkanView, len(colours))
	for i, c := range colours {
		next[i], _ = c.(*VulkanView)
	}
	if len(next) > maxColourAttachments {
		core.LogError("%d colour targets bound, keeping the first %d", len(next), maxColourAttachments)
		next = next[:maxColourAttachments]
	}
	d, _ := depth.(*VulkanView)

	same := d == ctx.depth && len(next) == len(ctx.colours)
	for i := 0; same && i < len(next); i++ {
		same = next[i] == ctx.colours[i]
	}
	if same {
		return
	}
	ctx.endRenderPass()
	ctx.colours = next
	ctx.depth = d
}

func (ctx *VulkanContext) ClearRenderTarget(view driver.View, rgba [4]float32) {
	v, ok := view.(*VulkanView)
	if !ok || v == nil {
		return
	}
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	ctx.endRenderPass()
	v.image.transition(cb, vk.ImageLayoutTransferDstOptimal)
	var colour vk.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&colour)) = rgba
	vk.CmdClearColorImage(cb, v.image.Handle, vk.ImageLayoutTransferDstOptimal, &colour, 1, []vk.ImageSubresourceRange{v.Range})
}

func (ctx *VulkanContext) ClearDepthStencil(view driver.View, flags metadata.ClearFlags, depth float32, stencil uint8) {
	v, ok := view.(*VulkanView)
	if !ok || v == nil {
		return
	}
	var aspect vk.ImageAspectFlags
	if flags&metadata.CLEAR_DEPTH_BUFFER != 0 {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if flags&metadata.CLEAR_STENCIL_BUFFER != 0 && v.image.desc.Format.HasStencil() {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	if aspect == 0 {
		return
	}
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	ctx.endRenderPass()
	v.image.transition(cb, vk.ImageLayoutTransferDstOptimal)
	subresources := v.Range
	subresources.AspectMask = aspect
	value := vk.ClearDepthStencilValue{Depth: depth, Stencil: uint32(stencil)}
	vk.CmdClearDepthStencilImage(cb, v.image.Handle, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{subresources})
}

func (ctx *VulkanContext) ClearStorage(view driver.View, rgba [4]float32) {
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	switch v := view.(type) {
	case *VulkanView:
		ctx.endRenderPass()
		v.image.transition(cb, vk.ImageLayoutGeneral)
		var colour vk.ClearColorValue
		*(*[4]float32)(unsafe.Pointer(&colour)) = rgba
		vk.CmdClearColorImage(cb, v.image.Handle, vk.ImageLayoutGeneral, &colour, 1, []vk.ImageSubresourceRange{v.Range})
	case *VulkanBufferView:
		ctx.endRenderPass()
		memoryBarrier(cb)
		// Structured buffers are filled with the raw bits of the first channel.
		vk.CmdFillBuffer(cb, v.buffer.Handle, 0, vk.DeviceSize(v.stride*v.count)&^3, math.Float32bits(rgba[0]))
		memoryBarrier(cb)
	}
}

func (ctx *VulkanContext) SetViewport(vp metadata.Viewport) {
	ctx.viewport = vk.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
}

func (ctx *VulkanContext) SetScissorRect(r metadata.Rect) {
	ctx.scissor = vk.Rect2D{
		Offset: vk.Offset2D{X: int32(r.Left), Y: int32(r.Top)},
		Extent: vk.Extent2D{
			Width:  uint32(max(r.Right-r.Left, 0)),
			Height: uint32(max(r.Bottom-r.Top, 0)),
		},
	}
}

func (ctx *VulkanContext) SetShader(stage metadata.ShaderType, shader driver.Shader) {
	if int(stage) >= len(ctx.shaders) {
		return
	}
	s, _ := shader.(*VulkanShader)
	ctx.shaders[stage] = s
}

func (ctx *VulkanContext) SetInputLayout(layout driver.InputLayout) {
	l, _ := layout.(*VulkanInputLayout)
	ctx.layout = l
}

func (ctx *VulkanContext) SetVertexBuffers(startSlot uint32, buffers []driver.Buffer, strides, offsets []uint32) {
	for i, b := range buffers {
		slot := startSlot + uint32(i)
		if slot >= maxVertexBuffers {
			core.LogError("vertex buffer slot %d out of range", slot)
			return
		}
		vb := vertexBinding{}
		vb.buffer, _ = b.(*VulkanBuffer)
		if i < len(strides) {
			vb.stride = strides[i]
		}
		if i < len(offsets) {
			vb.offset = offsets[i]
		}
		ctx.vertexBuffers[slot] = vb
	}
}

func (ctx *VulkanContext) SetIndexBuffer(buffer driver.Buffer, format metadata.IndexFormat, offset uint32) {
	ctx.indexBuffer, _ = buffer.(*VulkanBuffer)
	ctx.indexType = toIndexType(format)
	ctx.indexOffset = offset
}

func unitInRange(unit uint32) bool {
	if unit >= maxBindings {
		core.LogError("shader unit %d out of range (max %d)", unit, maxBindings)
		return false
	}
	return true
}

// Stages are ignored below as every binding is visible to every stage.

func (ctx *VulkanContext) SetConstantBuffer(buffer driver.Buffer, unit uint32, stages driver.Stages) {
	if !unitInRange(unit) {
		return
	}
	ctx.bindings.uniforms[unit], _ = buffer.(*VulkanBuffer)
	ctx.setsDirty = true
}

func (ctx *VulkanContext) SetShaderResource(view driver.View, unit uint32, stages driver.Stages) {
	if !unitInRange(unit) {
		return
	}
	ctx.bindings.textures[unit] = nil
	ctx.bindings.buffers[unit] = nil
	switch v := view.(type) {
	case *VulkanView:
		ctx.bindings.textures[unit] = v
		// Layout changes cannot happen inside a pass.
		if ctx.inPass && v.image.layout != vk.ImageLayoutShaderReadOnlyOptimal && !ctx.isTarget(v.image) {
			ctx.endRenderPass()
		}
	case *VulkanBufferView:
		ctx.bindings.buffers[unit] = v
	}
	ctx.setsDirty = true
}

func (ctx *VulkanContext) SetSampler(sampler driver.Sampler, unit uint32, stages driver.Stages) {
	if !unitInRange(unit) {
		return
	}
	ctx.bindings.samplers[unit], _ = sampler.(*VulkanSampler)
	ctx.setsDirty = true
}

func (ctx *VulkanContext) SetStorage(view driver.View, unit uint32) {
	if !unitInRange(unit) {
		return
	}
	ctx.bindings.images[unit] = nil
	ctx.bindings.storage[unit] = nil
	switch v := view.(type) {
	case *VulkanView:
		ctx.bindings.images[unit] = v
		if ctx.inPass && v.image.layout != vk.ImageLayoutGeneral {
			ctx.endRenderPass()
		}
	case *VulkanBufferView:
		ctx.bindings.storage[unit] = v
	}
	ctx.setsDirty = true
}

func (ctx *VulkanContext) SetRasterState(state driver.RasterState) {
	ctx.raster, _ = state.(*VulkanRasterState)
}

func (ctx *VulkanContext) SetBlendState(state driver.BlendState) {
	ctx.blend, _ = state.(*VulkanBlendState)
}

func (ctx *VulkanContext) SetDepthStencilState(state driver.DepthStencilState, stencilRef uint8) {
	ctx.depthStencil, _ = state.(*VulkanDepthStencilState)
	ctx.stencilRef = uint32(stencilRef)
}

func (ctx *VulkanContext) SetStreamOutTarget(buffer driver.Buffer) {
	if buffer != nil && !ctx.warnedStreamOut {
		core.LogWarn("Stream out is not supported by the Vulkan driver, ignoring the target.")
		ctx.warnedStreamOut = true
	}
}

func (ctx *VulkanContext) bindDescriptors(cb vk.CommandBuffer, bindPoint vk.PipelineBindPoint) bool {
	if ctx.setsDirty {
		sets, err := ctx.device.layouts.allocate(ctx.frame().descriptors, &ctx.bindings, ctx.device.defaultSmp)
		if err != nil {
			core.LogError("Unable to allocate descriptor sets: %s", err)
			return false
		}
		ctx.sets = sets
		ctx.setsDirty = false
	}
	vk.CmdBindDescriptorSets(cb, bindPoint, ctx.device.layouts.pipeline, 0, descriptorSetCount, ctx.sets[:], 0, nil)
	return true
}

// prepareDraw begins the pass if needed and binds all state a draw reads.
func (ctx *VulkanContext) prepareDraw(topology metadata.PrimitiveTopology) (vk.CommandBuffer, bool) {
	cb, ok := ctx.commandBuffer()
	if !ok {
		return nil, false
	}
	if err := ctx.ensureRenderPass(cb); err != nil {
		core.LogError("draw: %s", err)
		return nil, false
	}

	key := pipelineKey{
		vs:       ctx.shaders[metadata.SHADER_TYPE_VS],
		ps:       ctx.shaders[metadata.SHADER_TYPE_PS],
		gs:       ctx.shaders[metadata.SHADER_TYPE_GS],
		layout:   ctx.layout,
		topology: topology,
		raster:   ctx.raster,
		blend:    ctx.blend,
		depth:    ctx.depthStencil,
		pass:     ctx.pass,
		colours:  ctx.passKey.count,
		samples:  ctx.passKey.samples,
	}
	if ctx.layout != nil {
		for slot := range ctx.layout.rates {
			key.strides[slot] = ctx.vertexBuffers[slot].stride
		}
	}
	pipeline, err := ctx.device.pipelines.graphics(key)
	if err != nil {
		core.LogError("draw: %s", err)
		return nil, false
	}
	vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pipeline)
	if !ctx.bindDescriptors(cb, vk.PipelineBindPointGraphics) {
		return nil, false
	}

	// Dynamic state
	viewport := ctx.viewport
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = vk.Viewport{Width: float32(ctx.framebuffer.Width), Height: float32(ctx.framebuffer.Height), MaxDepth: 1}
	}
	scissor := vk.Rect2D{Extent: vk.Extent2D{Width: ctx.framebuffer.Width, Height: ctx.framebuffer.Height}}
	if ctx.raster != nil && ctx.raster.scissor {
		scissor = ctx.scissor
	}
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})
	vk.CmdSetStencilReference(cb, vk.StencilFaceFlags(vk.StencilFrontAndBack), ctx.stencilRef)

	if ctx.layout != nil {
		for slot := range ctx.layout.rates {
			vb := ctx.vertexBuffers[slot]
			if vb.buffer == nil || vb.buffer.Handle == nil {
				continue
			}
			vk.CmdBindVertexBuffers(cb, slot, 1, []vk.Buffer{vb.buffer.Handle}, []vk.DeviceSize{vk.DeviceSize(vb.offset)})
		}
	}
	return cb, true
}

func (ctx *VulkanContext) bindIndexBuffer(cb vk.CommandBuffer) bool {
	if ctx.indexBuffer == nil || ctx.indexBuffer.Handle == nil {
		core.LogError("indexed draw without an index buffer")
		return false
	}
	vk.CmdBindIndexBuffer(cb, ctx.indexBuffer.Handle, vk.DeviceSize(ctx.indexOffset), ctx.indexType)
	return true
}

func (ctx *VulkanContext) Draw(vertexCount, startVertex uint32, topology metadata.PrimitiveTopology) {
	if cb, ok := ctx.prepareDraw(topology); ok {
		vk.CmdDraw(cb, vertexCount, 1, startVertex, 0)
	}
}

func (ctx *VulkanContext) DrawIndexed(indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology) {
	if cb, ok := ctx.prepareDraw(topology); ok && ctx.bindIndexBuffer(cb) {
		vk.CmdDrawIndexed(cb, indexCount, 1, startIndex, baseVertex, 0)
	}
}

func (ctx *VulkanContext) DrawIndexedInstanced(instanceCount, startInstance, indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology) {
	if cb, ok := ctx.prepareDraw(topology); ok && ctx.bindIndexBuffer(cb) {
		vk.CmdDrawIndexed(cb, indexCount, instanceCount, startIndex, baseVertex, startInstance)
	}
}

func (ctx *VulkanContext) DrawAuto() {
	if !ctx.warnedStreamOut {
		core.LogWarn("DrawAuto needs stream out which the Vulkan driver does not support, skipping.")
		ctx.warnedStreamOut = true
	}
}

func (ctx *VulkanContext) Dispatch(x, y, z uint32) {
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	ctx.endRenderPass()
	ctx.transitionBindings(cb)
	pipeline, err := ctx.device.pipelines.compute(ctx.shaders[metadata.SHADER_TYPE_CS])
	if err != nil {
		core.LogError("dispatch: %s", err)
		return
	}
	vk.CmdBindPipeline(cb, vk.PipelineBindPointCompute, pipeline)
	if !ctx.bindDescriptors(cb, vk.PipelineBindPointCompute) {
		return
	}
	vk.CmdDispatch(cb, x, y, z)
	memoryBarrier(cb)
}

func (ctx *VulkanContext) UpdateBuffer(buffer driver.Buffer, offset uint32, data []byte) error {
	b, ok := buffer.(*VulkanBuffer)
	if !ok || b.Handle == nil {
		return fmt.Errorf("update of %T: %w", buffer, core.ErrInvalidArgument)
	}
	if uint64(offset)+uint64(len(data)) > uint64(b.Size) {
		return fmt.Errorf("update of %d bytes at %d into %d: %w", len(data), offset, b.Size, core.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return nil
	}
	if b.hostVisible {
		return b.write(offset, data)
	}

	cb, ok := ctx.commandBuffer()
	if !ok {
		return fmt.Errorf("update buffer: %w", core.ErrDeviceLost)
	}
	staging, err := ctx.device.stagingBuffer(data)
	if err != nil {
		return err
	}
	defer staging.Release()

	ctx.endRenderPass()
	memoryBarrier(cb)
	vk.CmdCopyBuffer(cb, staging.Handle, b.Handle, 1, []vk.BufferCopy{{
		DstOffset: vk.DeviceSize(offset),
		Size:      vk.DeviceSize(len(data)),
	}})
	memoryBarrier(cb)
	return nil
}

func (ctx *VulkanContext) UpdateSubresource(tex driver.Texture, mip, layer uint32, data []byte, rowPitch, slicePitch uint32) error {
	img, ok := tex.(*VulkanImage)
	if !ok || img.Handle == nil {
		return fmt.Errorf("upload to %T without an image: %w", tex, core.ErrInvalidArgument)
	}
	if mip >= img.mips || layer >= img.layers {
		return fmt.Errorf("upload to mip %d layer %d of %dx%d: %w", mip, layer, img.mips, img.layers, core.ErrInvalidArgument)
	}
	extent := img.extent(mip)
	if rowPitch == 0 || uint64(len(data)) < uint64(slicePitch)*uint64(extent.Depth) {
		return fmt.Errorf("upload of %d bytes with pitches %d/%d: %w", len(data), rowPitch, slicePitch, core.ErrInvalidArgument)
	}

	cb, ok := ctx.commandBuffer()
	if !ok {
		return fmt.Errorf("update subresource: %w", core.ErrDeviceLost)
	}
	staging, err := ctx.device.stagingBuffer(data)
	if err != nil {
		return err
	}
	defer staging.Release()

	ctx.endRenderPass()
	img.transition(cb, vk.ImageLayoutTransferDstOptimal)

	block, pixels := formatBlock(img.desc.Format)
	aspect := img.aspect
	if aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	region := vk.BufferImageCopy{
		BufferRowLength:   rowPitch / block * pixels,
		BufferImageHeight: slicePitch / rowPitch * pixels,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     aspect,
			MipLevel:       mip,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
		ImageExtent: extent,
	}
	vk.CmdCopyBufferToImage(cb, staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	return nil
}

func (ctx *VulkanContext) GenerateMips(view driver.View) {
	v, ok := view.(*VulkanView)
	if !ok || v == nil || v.image.mips < 2 {
		return
	}
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	ctx.endRenderPass()
	img := v.image
	img.transition(cb, vk.ImageLayoutGeneral)
	for mip := uint32(1); mip < img.mips; mip++ {
		src, dst := img.extent(mip-1), img.extent(mip)
		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       mip - 1,
				BaseArrayLayer: 0,
				LayerCount:     img.layers,
			},
			SrcOffsets: [2]vk.Offset3D{{}, {X: int32(src.Width), Y: int32(src.Height), Z: int32(src.Depth)}},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       mip,
				BaseArrayLayer: 0,
				LayerCount:     img.layers,
			},
			DstOffsets: [2]vk.Offset3D{{}, {X: int32(dst.Width), Y: int32(dst.Height), Z: int32(dst.Depth)}},
		}
		vk.CmdBlitImage(cb, img.Handle, vk.ImageLayoutGeneral, img.Handle, vk.ImageLayoutGeneral, 1, []vk.ImageBlit{blit}, vk.FilterLinear)
		// Each level reads the one written before it.
		memoryBarrier(cb)
	}
}

func (ctx *VulkanContext) ResolveTexture(dst, src driver.Texture, format driver.Format) {
	d, ok := dst.(*VulkanImage)
	s, ok2 := src.(*VulkanImage)
	if !ok || !ok2 || d.Handle == nil || s.Handle == nil {
		core.LogError("resolve between %T and %T needs two images", dst, src)
		return
	}
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	ctx.endRenderPass()
	s.transition(cb, vk.ImageLayoutTransferSrcOptimal)
	d.transition(cb, vk.ImageLayoutTransferDstOptimal)

	layers := min(s.layers, d.layers)
	subresource := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: layers,
	}
	extent := s.extent(0)
	if s.desc.SampleCount <= 1 {
		vk.CmdCopyImage(cb, s.Handle, vk.ImageLayoutTransferSrcOptimal, d.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{{
			SrcSubresource: subresource,
			DstSubresource: subresource,
			Extent:         extent,
		}})
		return
	}
	// The resolve runs in the images' own format.
	vk.CmdResolveImage(cb, s.Handle, vk.ImageLayoutTransferSrcOptimal, d.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageResolve{{
		SrcSubresource: subresource,
		DstSubresource: subresource,
		Extent:         extent,
	}})
}

func (ctx *VulkanContext) CopyTexture(dst, src driver.Texture) {
	d, ok := dst.(*VulkanImage)
	s, ok2 := src.(*VulkanImage)
	if !ok || !ok2 || s.Handle == nil {
		core.LogError("copy from %T to %T needs an image source", src, dst)
		return
	}
	cb, ok := ctx.commandBuffer()
	if !ok {
		return
	}
	ctx.endRenderPass()
	s.transition(cb, vk.ImageLayoutTransferSrcOptimal)

	// Buffer copies take a single aspect.
	aspect := s.aspect
	if aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	if d.staging != nil {
		region := vk.BufferImageCopy{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: aspect,
				LayerCount: s.layers,
			},
			ImageExtent: s.extent(0),
		}
		vk.CmdCopyImageToBuffer(cb, s.Handle, vk.ImageLayoutTransferSrcOptimal, d.staging.Handle, 1, []vk.BufferImageCopy{region})
		memoryBarrier(cb)
		return
	}

	d.transition(cb, vk.ImageLayoutTransferDstOptimal)
	mips := min(s.mips, d.mips)
	regions := make([]vk.ImageCopy, 0, mips)
	for mip := uint32(0); mip < mips; mip++ {
		subresource := vk.ImageSubresourceLayers{
			AspectMask: s.aspect,
			MipLevel:   mip,
			LayerCount: min(s.layers, d.layers),
		}
		regions = append(regions, vk.ImageCopy{
			SrcSubresource: subresource,
			DstSubresource: subresource,
			Extent:         s.extent(mip),
		})
	}
	vk.CmdCopyImage(cb, s.Handle, vk.ImageLayoutTransferSrcOptimal, d.Handle, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
}

func (ctx *VulkanContext) Map(tex driver.Texture) (driver.MappedSubresource, error) {
	img, ok := tex.(*VulkanImage)
	if !ok || img.staging == nil {
		return driver.MappedSubresource{}, fmt.Errorf("map of a texture without CPU read access: %w", core.ErrInvalidArgument)
	}
	if ctx.recording {
		if err := ctx.submit(vk.NullSemaphore, vk.NullSemaphore); err != nil {
			return driver.MappedSubresource{}, err
		}
	}
	if err := ctx.waitIdle(); err != nil {
		return driver.MappedSubresource{}, err
	}

	size, rowPitch, slicePitch := readbackSize(img.desc)
	var ptr unsafe.Pointer
	if res := vk.MapMemory(ctx.device.LogicalDevice, img.staging.Memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
		return driver.MappedSubresource{}, resultError("vkMapMemory", res)
	}
	img.mapped = true
	return driver.MappedSubresource{
		Data:       unsafe.Slice((*byte)(ptr), size),
		RowPitch:   rowPitch,
		DepthPitch: slicePitch,
	}, nil
}

func (ctx *VulkanContext) Unmap(tex driver.Texture) {
	img, ok := tex.(*VulkanImage)
	if !ok || !img.mapped {
		return
	}
	vk.UnmapMemory(ctx.device.LogicalDevice, img.staging.Memory)
	img.mapped = false
}

// Begin has nothing to record: timestamps are written at End and a
// disjoint bracket is judged by the submissions it spans.
func (ctx *VulkanContext) Begin(q driver.Query) {}

func (ctx *VulkanContext) End(q driver.Query) {
	vq, ok := q.(*VulkanQuery)
	if !ok || vq.released {
		return
	}
	if vq.kind == driver.QueryTimestamp {
		cb, ok := ctx.commandBuffer()
		if !ok {
			return
		}
		// Resets are not allowed inside a pass.
		ctx.endRenderPass()
		pool := ctx.device.queries.handle
		vk.CmdResetQueryPool(cb, pool, vq.slot, 1)
		vk.CmdWriteTimestamp(cb, vk.PipelineStageBottomOfPipeBit, pool, vq.slot)
	}
	vq.serial = ctx.serial
}

func (ctx *VulkanContext) GetData(q driver.Query) (driver.QueryData, bool, error) {
	vq, ok := q.(*VulkanQuery)
	if !ok {
		return driver.QueryData{}, false, fmt.Errorf("query %T: %w", q, core.ErrInvalidArgument)
	}
	if vq.serial == 0 {
		return driver.QueryData{}, false, nil
	}
	if err := ctx.poll(); err != nil {
		return driver.QueryData{}, false, err
	}
	if ctx.completed < vq.serial {
		return driver.QueryData{}, false, nil
	}
	if vq.kind == driver.QueryTimestampDisjoint {
		return driver.QueryData{
			Frequency: ctx.device.frequency(),
			Disjoint:  ctx.device.timestampBits == 0,
		}, true, nil
	}
	value, ready, err := ctx.device.queries.timestamp(vq.slot)
	if err != nil || !ready {
		return driver.QueryData{}, false, err
	}
	return driver.QueryData{Timestamp: value}, true, nil
}
