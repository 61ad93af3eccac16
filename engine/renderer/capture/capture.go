// Package capture writes backbuffer read backs to BMP files.
package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/jobs"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// Target is the part of the HAL a capture needs.
type Target interface {
	ReadBack(params metadata.ResourceReadBackParams)
	BackbufferSize() (uint32, uint32)
}

// Recorder captures one frame per session to dir. Files are named after a
// session id so repeated runs never overwrite each other.
type Recorder struct {
	dir     string
	frame   uint64
	session uuid.UUID

	jobs    Submitter
	mutex   sync.Mutex
	written []string
}

// Submitter queues background work. *jobs.JobSystem satisfies it.
type Submitter interface {
	Submit(job jobs.Job) error
}

// NewRecorder captures frame into dir. A zero frame never captures.
func NewRecorder(dir string, frame uint64) *Recorder {
	return &Recorder{
		dir:     dir,
		frame:   frame,
		session: uuid.New(),
	}
}

func (r *Recorder) Session() uuid.UUID { return r.session }

// SetJobs moves encoding and writing off the calling goroutine. The read
// back itself still blocks the caller.
func (r *Recorder) SetJobs(s Submitter) { r.jobs = s }

// Written lists the files saved so far.
func (r *Recorder) Written() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.written...)
}

// Due reports whether frame is the one to capture.
func (r *Recorder) Due(frame uint64) bool {
	return r.frame != 0 && frame == r.frame
}

func (r *Recorder) fileName(frame uint64) string {
	return filepath.Join(r.dir, fmt.Sprintf("capture-%s-%06d.bmp", r.session, frame))
}

// Capture reads back the backbuffer colour surface and writes it. It
// blocks until the GPU has finished the frame. With a Submitter the file
// appears in Written once the job has run.
func (r *Recorder) Capture(target Target, frame uint64, format metadata.TextureFormat) (string, error) {
	width, height := target.BackbufferSize()
	var img *image.RGBA
	target.ReadBack(metadata.ResourceReadBackParams{
		Resource:  metadata.BackbufferColour,
		Format:    format,
		BlockSize: 4,
		RowPitch:  width * 4,
		DataSize:  width * height * 4,
		Callback: func(data []byte, rowPitch, depthPitch, blockSize uint32) {
			img = Decode(data, width, height, rowPitch, format == metadata.TEX_FORMAT_BGRA8_UNORM)
		},
	})
	if img == nil {
		return "", fmt.Errorf("capture of frame %d: %w", frame, core.ErrNotReady)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}
	name := r.fileName(frame)
	write := func() error { return WriteBMP(name, img) }
	done := func() {
		r.mutex.Lock()
		r.written = append(r.written, name)
		r.mutex.Unlock()
		core.LogInfo("captured frame %d to %s", frame, name)
	}

	if r.jobs == nil {
		if err := write(); err != nil {
			return "", err
		}
		done()
		return name, nil
	}
	err := r.jobs.Submit(jobs.Job{
		Name:       "capture " + filepath.Base(name),
		Run:        write,
		OnComplete: done,
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// Decode copies rows of mapped RGBA8 or BGRA8 texels into an image.
func Decode(data []byte, width, height, rowPitch uint32, bgra bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	row := int(width) * 4
	for y := 0; y < int(height); y++ {
		src := data[y*int(rowPitch):]
		if len(src) < row {
			break
		}
		dst := img.Pix[y*img.Stride : y*img.Stride+row]
		copy(dst, src[:row])
		if bgra {
			for x := 0; x < row; x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
		// Alpha is not meaningful in a presented surface.
		for x := 3; x < row; x += 4 {
			dst[x] = 0xff
		}
	}
	return img
}

func WriteBMP(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
