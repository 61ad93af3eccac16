// Package overlay draws the GPU timing HUD. Text is laid out on the CPU
// with a BMFont and uploaded as a texture the caller composites.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/fzipp/bmfont"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

const (
	margin = 4
	// maxLines keeps the HUD a fixed height however deep the markers go.
	maxLines = 24
)

// Uploader is the part of the HAL the HUD needs.
type Uploader interface {
	CreateTexture(handle metadata.Handle, tcp metadata.TextureCreationParams)
	ReleaseTexture(handle metadata.Handle)
}

type HUD struct {
	font       *bmfont.BitmapFont
	lineHeight int
	canvas     *image.RGBA
	lines      []string
	dirty      bool
	uploaded   bool
}

// NewHUD makes a width x height HUD. A nil font yields an empty panel.
func NewHUD(font *bmfont.BitmapFont, width, height int) *HUD {
	lineHeight := 12
	if font != nil && font.Descriptor.Common.LineHeight > 0 {
		lineHeight = font.Descriptor.Common.LineHeight
	}
	return &HUD{
		font:       font,
		lineHeight: lineHeight,
		canvas:     image.NewRGBA(image.Rect(0, 0, width, height)),
		dirty:      true,
	}
}

// Lines formats one line per marker, indented by nesting depth, under a
// total for the frame.
func Lines(results []metadata.GPUPerfResult, gpuTotal uint64) []string {
	lines := make([]string, 0, len(results)+1)
	lines = append(lines, fmt.Sprintf("gpu %7.3f ms", float64(gpuTotal)/1e6))
	for _, r := range results {
		if len(lines) == maxLines {
			break
		}
		indent := strings.Repeat("  ", int(r.Depth))
		lines = append(lines, fmt.Sprintf("%s%-16s %7.3f ms", indent, r.Name, float64(r.Elapsed)/1e6))
	}
	return lines
}

// Update replaces the text. Nothing is redrawn when it did not change.
func (h *HUD) Update(results []metadata.GPUPerfResult, gpuTotal uint64) {
	lines := Lines(results, gpuTotal)
	if len(lines) == len(h.lines) {
		same := true
		for i := range lines {
			if lines[i] != h.lines[i] {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	h.lines = lines
	h.dirty = true
}

// Image redraws the panel if needed and returns it.
func (h *HUD) Image() *image.RGBA {
	if !h.dirty {
		return h.canvas
	}
	background := image.NewUniform(color.RGBA{A: 0xa0})
	draw.Draw(h.canvas, h.canvas.Rect, background, image.Point{}, draw.Src)
	if h.font != nil {
		for i, line := range h.lines {
			pos := image.Pt(margin, margin+(i+1)*h.lineHeight)
			if pos.Y > h.canvas.Rect.Dy() {
				break
			}
			h.font.DrawText(h.canvas, pos, line)
		}
	}
	h.dirty = false
	return h.canvas
}

// Upload puts the panel into the texture at handle when it changed.
func (h *HUD) Upload(u Uploader, handle metadata.Handle) {
	if !h.dirty && h.uploaded {
		return
	}
	img := h.Image()
	if h.uploaded {
		u.ReleaseTexture(handle)
	}
	u.CreateTexture(handle, metadata.TextureCreationParams{
		Width:     uint32(img.Rect.Dx()),
		Height:    uint32(img.Rect.Dy()),
		NumMips:   1,
		NumArrays: 1,
		Format:    metadata.TEX_FORMAT_RGBA8_UNORM,
		Usage:     metadata.USAGE_DEFAULT,
		BindFlags: metadata.BIND_SHADER_RESOURCE,
		Data:      img.Pix,
	})
	h.uploaded = true
	core.LogDebug("hud uploaded to %d: %d lines", handle, len(h.lines))
}
