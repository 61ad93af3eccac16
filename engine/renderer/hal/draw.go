package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

func (h *HAL) Draw(vertexCount, startVertex uint32, topology metadata.PrimitiveTopology) {
	h.ctx.Draw(vertexCount, startVertex, topology)
}

func (h *HAL) DrawIndexed(indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology) {
	h.ctx.DrawIndexed(indexCount, startIndex, baseVertex, topology)
}

func (h *HAL) DrawIndexedInstanced(instanceCount, startInstance, indexCount, startIndex uint32, baseVertex int32, topology metadata.PrimitiveTopology) {
	h.ctx.DrawIndexedInstanced(instanceCount, startInstance, indexCount, startIndex, baseVertex, topology)
}

// DrawAuto draws the vertices captured by the last stream out pass as points.
func (h *HAL) DrawAuto() {
	h.ctx.DrawAuto()
}

// Dispatch runs grid thread groups. numThreads is fixed by the shader and
// only kept for callers sizing the grid.
func (h *HAL) Dispatch(grid, numThreads metadata.Uint3) {
	h.ctx.Dispatch(grid.X, grid.Y, grid.Z)
}

func (h *HAL) SetStreamOutTarget(handle metadata.Handle) {
	var buf driver.Buffer
	if b := h.buffer(handle); b != nil {
		buf = b.buf
	}
	h.ctx.SetStreamOutTarget(buf)
}
