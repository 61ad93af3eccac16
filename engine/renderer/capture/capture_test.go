package capture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/anima-hal/engine/jobs"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

type fakeTarget struct {
	width, height uint32
	rowPitch      uint32
	data          []byte
	reads         int
}

func (f *fakeTarget) BackbufferSize() (uint32, uint32) { return f.width, f.height }

func (f *fakeTarget) ReadBack(params metadata.ResourceReadBackParams) {
	f.reads++
	if params.Resource != metadata.BackbufferColour {
		return
	}
	params.Callback(f.data, f.rowPitch, f.rowPitch*f.height, params.BlockSize)
}

func TestDecodeSwizzlesAndSkipsPadding(t *testing.T) {
	// 2x2 BGRA with 4 bytes of row padding.
	data := []byte{
		1, 2, 3, 0, 4, 5, 6, 0, 9, 9, 9, 9,
		7, 8, 9, 0, 10, 11, 12, 0, 9, 9, 9, 9,
	}
	img := Decode(data, 2, 2, 12, true)
	want := []byte{3, 2, 1, 255, 6, 5, 4, 255, 9, 8, 7, 255, 12, 11, 10, 255}
	for i := range want {
		if img.Pix[i] != want[i] {
			t.Fatalf("Pix = %v, want %v", img.Pix, want)
		}
	}
}

func TestRecorderCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	r := NewRecorder(dir, 3)
	if r.Due(0) || r.Due(2) || !r.Due(3) {
		t.Error("Due() fires on the wrong frame")
	}
	if NewRecorder(dir, 0).Due(0) {
		t.Error("a zero frame recorder captured")
	}

	target := &fakeTarget{width: 4, height: 2, rowPitch: 16, data: make([]byte, 32)}
	for i := range target.data {
		target.data[i] = byte(i)
	}
	name, err := r.Capture(target, 3, metadata.TEX_FORMAT_RGBA8_UNORM)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(name, r.Session().String()) || len(r.Written()) != 1 {
		t.Errorf("wrote %s, session %s", name, r.Session())
	}

	f, err := os.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := bmp.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("bmp bounds = %v", b)
	}
}

func TestCaptureWithoutData(t *testing.T) {
	r := NewRecorder(t.TempDir(), 1)
	target := &fakeTarget{width: 4, height: 4}
	// A callback that never runs leaves nothing to write.
	if _, err := r.Capture(noReadBack{target}, 1, metadata.TEX_FORMAT_RGBA8_UNORM); err == nil {
		t.Error("Capture() succeeded without a read back")
	}
}

type noReadBack struct{ *fakeTarget }

func (noReadBack) ReadBack(metadata.ResourceReadBackParams) {}

func TestCaptureOnJobSystem(t *testing.T) {
	js, err := jobs.NewJobSystem(1, 4)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(t.TempDir(), 1)
	r.SetJobs(js)

	target := &fakeTarget{width: 2, height: 2, rowPitch: 8, data: make([]byte, 16)}
	name, err := r.Capture(target, 1, metadata.TEX_FORMAT_BGRA8_UNORM)
	if err != nil {
		t.Fatal(err)
	}
	js.Shutdown()

	if w := r.Written(); len(w) != 1 || w[0] != name {
		t.Errorf("Written() = %v, want [%s]", w, name)
	}
	if _, err := os.Stat(name); err != nil {
		t.Errorf("capture not written: %v", err)
	}
}
