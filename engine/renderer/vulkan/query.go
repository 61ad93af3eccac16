package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
)

// queryPool hands out timestamp slots of a single device pool.
type queryPool struct {
	device *VulkanDevice
	handle vk.QueryPool
	free   []uint32
}

func newQueryPool(device *VulkanDevice, count uint32) (*queryPool, error) {
	createInfo := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: count,
	}
	p := &queryPool{device: device, free: make([]uint32, 0, count)}
	if res := vk.CreateQueryPool(device.LogicalDevice, &createInfo, device.Allocator, &p.handle); res != vk.Success {
		return nil, resultError("vkCreateQueryPool", res)
	}
	// Hand out low slots first.
	for i := count; i > 0; i-- {
		p.free = append(p.free, i-1)
	}
	return p, nil
}

func (p *queryPool) destroy() {
	if p.handle != nil {
		vk.DestroyQueryPool(p.device.LogicalDevice, p.handle, p.device.Allocator)
		p.handle = nil
	}
}

func (p *queryPool) acquire() (uint32, error) {
	var slot uint32
	err := lockPool.SafeCall(QueryManagement, func() error {
		if len(p.free) == 0 {
			return fmt.Errorf("all %d timestamp queries in use: %w", maxQueries, core.ErrUnsupported)
		}
		slot = p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		return nil
	})
	return slot, err
}

func (p *queryPool) release(slot uint32) {
	lockPool.SafeCall(QueryManagement, func() error {
		p.free = append(p.free, slot)
		return nil
	})
}

// VulkanQuery is either a timestamp slot or a disjoint bracket. Results
// become readable once the submission holding End has retired.
type VulkanQuery struct {
	device *VulkanDevice
	kind   driver.QueryKind
	slot   uint32
	// serial of the submission the last End was recorded into, 0 if none.
	serial   uint64
	released bool
}

func (q *VulkanQuery) Release() {
	if q.released {
		return
	}
	q.released = true
	if q.kind == driver.QueryTimestamp {
		device, slot := q.device, q.slot
		device.retire(func() { device.queries.release(slot) })
	}
}

func (device *VulkanDevice) CreateQuery(kind driver.QueryKind) (driver.Query, error) {
	q := &VulkanQuery{device: device, kind: kind}
	switch kind {
	case driver.QueryTimestamp:
		if device.timestampBits == 0 {
			return nil, fmt.Errorf("timestamps on %s: %w", cString(device.Properties.DeviceName[:]), core.ErrUnsupported)
		}
		slot, err := device.queries.acquire()
		if err != nil {
			return nil, err
		}
		q.slot = slot
	case driver.QueryTimestampDisjoint:
	default:
		return nil, fmt.Errorf("query kind %d: %w", kind, core.ErrInvalidArgument)
	}
	return q, nil
}

// timestamp reads a retired timestamp slot, masked to the valid bits.
func (p *queryPool) timestamp(slot uint32) (uint64, bool, error) {
	var value uint64
	res := vk.GetQueryPoolResults(p.device.LogicalDevice, p.handle, slot, 1,
		uint64(unsafe.Sizeof(value)), unsafe.Pointer(&value), vk.DeviceSize(unsafe.Sizeof(value)),
		vk.QueryResultFlags(vk.QueryResult64Bit))
	switch res {
	case vk.Success:
	case vk.NotReady:
		return 0, false, nil
	default:
		return 0, false, resultError("vkGetQueryPoolResults", res)
	}
	if bits := p.device.timestampBits; bits < 64 {
		value &= 1<<bits - 1
	}
	return value, true, nil
}

// frequency is the timestamp tick rate in Hz.
func (device *VulkanDevice) frequency() uint64 {
	if device.timestampPeriod <= 0 {
		return 0
	}
	return uint64(1e9 / float64(device.timestampPeriod))
}
