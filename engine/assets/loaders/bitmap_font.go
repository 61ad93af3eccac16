package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type BitmapFontLoader struct{}

// Load reads a text .fnt descriptor and the page sheets next to it. The
// resource data is the *bmfont.BitmapFont.
func (fl *BitmapFontLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	if filepath.Ext(path) != ".fnt" {
		return nil, fmt.Errorf("unable to load bitmap font '%s': %w", path, core.ErrUnsupported)
	}
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, err
	}
	if len(font.Descriptor.Pages) == 0 {
		return nil, fmt.Errorf("bitmap font '%s' has no pages: %w", path, core.ErrInvalidArgument)
	}
	core.LogDebug("loaded bitmap font '%s' %dpx, %d glyphs", font.Descriptor.Info.Face, font.Descriptor.Info.Size, len(font.Descriptor.Chars))
	return &metadata.Resource{
		Name:     font.Descriptor.Info.Face,
		FullPath: path,
		DataSize: uint64(len(font.Descriptor.Chars)),
		Data:     font,
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}
