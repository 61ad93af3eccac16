package vulkan

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-hal/engine/core"
)

func TestVulkanSafeString(t *testing.T) {
	if got := VulkanSafeString("main"); got != "main\x00" {
		t.Errorf("VulkanSafeString = %q", got)
	}
	if got := VulkanSafeString("main\x00"); got != "main\x00" {
		t.Errorf("already terminated string changed to %q", got)
	}
	if got := VulkanSafeStrings([]string{"a", "b\x00"}); got[0] != "a\x00" || got[1] != "b\x00" {
		t.Errorf("VulkanSafeStrings = %q", got)
	}
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "llvmpipe")
	if got := cString(name[:]); got != "llvmpipe" {
		t.Errorf("cString = %q", got)
	}
	if got := cString([]byte("full")); got != "full" {
		t.Errorf("unterminated cString = %q", got)
	}
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 || words[0] != 0x07230203 || words[1] != 1 {
		t.Errorf("spirvWords = %#x", words)
	}
	for _, code := range [][]byte{nil, {1, 2, 3}} {
		if _, err := spirvWords(code); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("spirvWords(%v) err = %v", code, err)
		}
	}
}

func TestLockPoolReusesLocks(t *testing.T) {
	pool := NewVulkanLockPool()
	if pool.lock(PipelineManagement) != pool.lock(PipelineManagement) {
		t.Error("group lock not reused")
	}
	if pool.queueLock(0) == pool.queueLock(1) {
		t.Error("queue families share a lock")
	}
	calls := 0
	err := pool.SafeCall(QueryManagement, func() error {
		calls++
		return core.ErrNotReady
	})
	if calls != 1 || !errors.Is(err, core.ErrNotReady) {
		t.Errorf("SafeCall ran %d times, err %v", calls, err)
	}
}
