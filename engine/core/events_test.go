package core

import "testing"

func TestEvents(t *testing.T) {
	EventInitialize()
	t.Cleanup(func() { EventShutdown() })

	var got []uint32
	onResize := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		got = append(got, data.Data.U32[0], data.Data.U32[1])
		return true
	}
	never := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		t.Error("handled event propagated to a later listener")
		return false
	}

	if !EventRegister(EVENT_CODE_RESIZED, "a", onResize) {
		t.Fatal("EventRegister() = false")
	}
	if EventRegister(EVENT_CODE_RESIZED, "a", onResize) {
		t.Error("duplicate registration accepted")
	}
	EventRegister(EVENT_CODE_RESIZED, "b", never)

	ctx := EventContext{}
	ctx.Data.U32[0], ctx.Data.U32[1] = 800, 600
	if !EventFire(EVENT_CODE_RESIZED, nil, ctx) {
		t.Error("EventFire() = false, want handled")
	}
	if len(got) != 2 || got[0] != 800 || got[1] != 600 {
		t.Errorf("listener saw %v", got)
	}

	if !EventUnregister(EVENT_CODE_RESIZED, "a", onResize) {
		t.Error("EventUnregister() = false")
	}
	if EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Error("unregistered code reported handled")
	}
}
