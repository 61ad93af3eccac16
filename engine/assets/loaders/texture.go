package loaders

import (
	"image"
	"os"

	// Decoders registered with image.Decode.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type TextureLoader struct{}

// Load decodes an image file into RGBA8 pixels ready for a texture upload.
func (tl *TextureLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	// Open and decode the texture image file
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	flip := false
	if p, ok := params.(*metadata.ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}
	rgba := ToRGBA(img, flip)
	return &metadata.Resource{
		Name:     "image",
		FullPath: path,
		DataSize: uint64(len(rgba.Pix)),
		Data: &metadata.ImageResourceData{
			ChannelCount: 4,
			Width:        uint32(rgba.Rect.Dx()),
			Height:       uint32(rgba.Rect.Dy()),
			Pixels:       rgba.Pix,
		},
	}, nil
}

func (tl *TextureLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// ToRGBA converts any image into a tightly packed RGBA image at the origin.
func ToRGBA(src image.Image, flipY bool) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	if flipY {
		stride := dst.Stride
		row := make([]byte, stride)
		for y := 0; y < dst.Rect.Dy()/2; y++ {
			top := dst.Pix[y*stride : (y+1)*stride]
			bottom := dst.Pix[(dst.Rect.Dy()-1-y)*stride : (dst.Rect.Dy()-y)*stride]
			copy(row, top)
			copy(top, bottom)
			copy(bottom, row)
		}
	}
	return dst
}
