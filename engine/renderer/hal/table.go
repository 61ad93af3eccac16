package hal

import (
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type slotKind uint32

const (
	slotEmpty slotKind = iota
	slotClearState
	slotBuffer
	slotTexture
	slotRenderTarget
	slotShader
	slotStreamOut
	slotInputLayout
	slotSampler
	slotRasterState
	slotBlendState
	slotDepthStencilState
	slotProgram
)

func (k slotKind) String() string {
	switch k {
	case slotEmpty:
		return "empty"
	case slotClearState:
		return "clear state"
	case slotBuffer:
		return "buffer"
	case slotTexture:
		return "texture"
	case slotRenderTarget:
		return "render target"
	case slotShader:
		return "shader"
	case slotStreamOut:
		return "stream out shader"
	case slotInputLayout:
		return "input layout"
	case slotSampler:
		return "sampler"
	case slotRasterState:
		return "raster state"
	case slotBlendState:
		return "blend state"
	case slotDepthStencilState:
		return "depth stencil state"
	case slotProgram:
		return "shader program"
	}
	return "unknown"
}

type bufferResource struct {
	buf    driver.Buffer
	srv    driver.View
	uav    driver.View
	stride uint32
}

func (b *bufferResource) release() {
	releaseObject(&b.srv)
	releaseObject(&b.uav)
	releaseObject(&b.buf)
}

type textureResource struct {
	tex driver.Texture
	srv driver.View
	uav driver.View
	// volume textures are the only ones resolved with GENERATE_MIPS
	volume bool
}

func (t *textureResource) release() {
	releaseObject(&t.srv)
	releaseObject(&t.uav)
	releaseObject(&t.tex)
}

type shaderResource struct {
	stage  metadata.ShaderType
	native driver.Shader
}

// streamOutResource pairs the vertex stage with the stream out geometry stage.
type streamOutResource struct {
	vs driver.Shader
	gs driver.Shader
}

type shaderProgram struct {
	vs, ps, gs  metadata.Handle
	inputLayout metadata.Handle
}

// slot is one entry of the resource table. Exactly one payload is set,
// selected by kind.
type slot struct {
	kind slotKind

	clear        *metadata.ClearState
	buffer       *bufferResource
	texture      *textureResource
	target       *renderTarget
	shader       *shaderResource
	streamOut    *streamOutResource
	program      *shaderProgram
	inputLayout  driver.InputLayout
	sampler      driver.Sampler
	raster       driver.RasterState
	blend        driver.BlendState
	depthStencil driver.DepthStencilState
}

// release frees every native object held by the slot and empties it.
func (s *slot) release() {
	switch s.kind {
	case slotBuffer:
		s.buffer.release()
	case slotTexture:
		s.texture.release()
	case slotRenderTarget:
		s.target.release()
	case slotShader:
		releaseObject(&s.shader.native)
	case slotStreamOut:
		releaseObject(&s.streamOut.vs)
		releaseObject(&s.streamOut.gs)
	case slotInputLayout:
		releaseObject(&s.inputLayout)
	case slotSampler:
		releaseObject(&s.sampler)
	case slotRasterState:
		releaseObject(&s.raster)
	case slotBlendState:
		releaseObject(&s.blend)
	case slotDepthStencilState:
		releaseObject(&s.depthStencil)
	}
	*s = slot{}
}

// resourceTable is indexed directly by caller supplied handles. It only
// ever grows, so a handle stays valid for the lifetime of the table. A
// *slot must not be held across a call that can grow the table.
type resourceTable struct {
	slots []slot
}

func newResourceTable(capacity uint32) resourceTable {
	return resourceTable{slots: make([]slot, capacity)}
}

// grow makes sure h can be indexed, doubling the capacity as needed.
func (t *resourceTable) grow(h metadata.Handle) {
	need := int(h) + 1
	if need <= len(t.slots) {
		return
	}
	size := len(t.slots)
	if size == 0 {
		size = 1
	}
	for size < need {
		size *= 2
	}
	slots := make([]slot, size)
	copy(slots, t.slots)
	t.slots = slots
}

func (t *resourceTable) len() int {
	return len(t.slots)
}

// at returns the slot for h, or nil when h was never grown into.
func (t *resourceTable) at(h metadata.Handle) *slot {
	if int(h) >= len(t.slots) {
		return nil
	}
	return &t.slots[h]
}

// prepare grows the table to h and empties the slot, warning when a
// live resource is overwritten.
func (t *resourceTable) prepare(h metadata.Handle, kind slotKind) *slot {
	core.Assert(h.Valid(), "cannot create a %s at handle %d", kind, h)
	t.grow(h)
	s := &t.slots[h]
	if s.kind != slotEmpty {
		core.LogWarn("handle %d already holds a %s, releasing it before creating a %s", h, s.kind, kind)
		s.release()
	}
	s.kind = kind
	return s
}

// lookup returns the slot for h if it holds a resource of kind.
func (t *resourceTable) lookup(h metadata.Handle, kind slotKind) *slot {
	s := t.at(h)
	if s == nil || s.kind != kind {
		return nil
	}
	return s
}

// releaseAll empties every slot.
func (t *resourceTable) releaseAll() {
	for i := range t.slots {
		t.slots[i].release()
	}
}

// releaseObject releases *o if set and clears it.
func releaseObject[T driver.Object](o *T) {
	var zero T
	if any(*o) == nil {
		return
	}
	(*o).Release()
	*o = zero
}
