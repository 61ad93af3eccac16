package vulkan

import "sync"

type LockGroup string

const (
	ResourceManagement      LockGroup = "resource_management"
	CommandBufferManagement LockGroup = "command_buffer_management"
	PipelineManagement      LockGroup = "pipeline_management"
	DescriptorManagement    LockGroup = "descriptor_management"
	QueryManagement         LockGroup = "query_management"
	SwapchainManagement     LockGroup = "swapchain_management"
)

// VulkanLockPool hands out one mutex per group of externally synchronised
// Vulkan objects, plus one per queue family.
type VulkanLockPool struct {
	mu           sync.Mutex
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

var lockPool = NewVulkanLockPool()

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

func (vs *VulkanLockPool) queueLock(index uint32) *sync.Mutex {
	vs.mu.Lock()
	l, ok := vs.queueMutexes[index]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[index] = l
	}
	vs.mu.Unlock()
	return l
}

// SafeQueueCall serialises submissions to one queue family.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}
