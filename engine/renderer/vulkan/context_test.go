package vulkan

import (
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
)

func TestRetireWaitsForSubmission(t *testing.T) {
	ctx := &VulkanContext{serial: 1}
	device := &VulkanDevice{ctx: ctx}
	ctx.device = device

	var released []string
	device.retire(func() { released = append(released, "first") })

	// Submitted as serial 1, the next recording is serial 2.
	frame := &frameResources{serial: 1, inFlight: true}
	ctx.serial = 2
	device.retire(func() { released = append(released, "second") })

	ctx.finished(frame)
	if len(released) != 1 || released[0] != "first" {
		t.Fatalf("released %v after serial 1", released)
	}
	if frame.inFlight || ctx.completed != 1 {
		t.Errorf("frame in flight %t, completed %d", frame.inFlight, ctx.completed)
	}

	ctx.finished(&frameResources{serial: 2, inFlight: true})
	if len(released) != 2 || len(ctx.garbage) != 0 {
		t.Errorf("released %v, %d pending", released, len(ctx.garbage))
	}
}

func TestRetireWithoutContextIsImmediate(t *testing.T) {
	device := &VulkanDevice{}
	ran := false
	device.retire(func() { ran = true })
	if !ran {
		t.Error("release deferred without a context")
	}
}

func TestFinishedKeepsNewestSerial(t *testing.T) {
	ctx := &VulkanContext{serial: 5, completed: 4}
	ctx.finished(&frameResources{serial: 3, inFlight: true})
	if ctx.completed != 4 {
		t.Errorf("completed went back to %d", ctx.completed)
	}
}

func TestSetRenderTargetsKeepsUnusedSlots(t *testing.T) {
	ctx := &VulkanContext{}
	target := &VulkanView{image: &VulkanImage{}}

	ctx.SetRenderTargets([]driver.View{nil, target}, nil)
	if len(ctx.colours) != 2 || ctx.colours[0] != nil || ctx.colours[1] != target {
		t.Fatalf("colours = %v, want an unused slot then the target", ctx.colours)
	}
	if !ctx.hasTargets() || !ctx.isTarget(target.image) {
		t.Error("bound target not reported")
	}

	ctx.SetRenderTargets([]driver.View{nil}, nil)
	if ctx.hasTargets() {
		t.Error("only unused slots reported as bound targets")
	}
}
