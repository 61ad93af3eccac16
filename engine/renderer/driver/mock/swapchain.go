package mock

import (
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type Swapchain struct {
	dev      *Device
	Desc     driver.SwapchainDesc
	Modern   bool
	buffer   *Texture
	Presents int
	Resizes  int
}

func (s *Swapchain) Backbuffer() (driver.Texture, error) {
	if s.buffer == nil {
		s.buffer = &Texture{
			object: object{kind: KindTexture, counters: s.dev.Counters},
			desc: driver.TextureDesc{
				Width:            s.Desc.Width,
				Height:           s.Desc.Height,
				DepthOrArraySize: 1,
				MipLevels:        1,
				SampleCount:      s.Desc.SampleCount,
				Format:           s.Desc.Format,
				BindFlags:        metadata.BIND_RENDER_TARGET,
			},
			owned: true,
		}
	}
	return s.buffer, nil
}

func (s *Swapchain) Format() driver.Format { return s.Desc.Format }

func (s *Swapchain) SampleCount() uint32 { return s.Desc.SampleCount }

func (s *Swapchain) Size() (uint32, uint32) { return s.Desc.Width, s.Desc.Height }

func (s *Swapchain) Resize(width, height uint32) error {
	s.Desc.Width, s.Desc.Height = width, height
	s.buffer = nil
	s.Resizes++
	return nil
}

func (s *Swapchain) Present(vsync bool) error {
	s.Presents++
	s.dev.Frame++
	return nil
}

func (s *Swapchain) Release() {}
