package hal

import (
	"math/bits"

	"github.com/spaghettifunk/anima-hal/engine/core"
	"github.com/spaghettifunk/anima-hal/engine/renderer/driver"
	"github.com/spaghettifunk/anima-hal/engine/renderer/metadata"
)

// QueryState is the outcome of polling an asynchronous query.
type QueryState int

const (
	QueryNotReady QueryState = iota
	QueryReady
	// QueryExpired results can never be trusted and are discarded.
	QueryExpired
)

func (s QueryState) String() string {
	switch s {
	case QueryNotReady:
		return "not ready"
	case QueryReady:
		return "ready"
	case QueryExpired:
		return "expired"
	}
	return "unknown"
}

// pollQuery never blocks.
func pollQuery(ctx driver.Context, q driver.Query) (QueryState, driver.QueryData) {
	data, ok, err := ctx.GetData(q)
	switch {
	case err != nil:
		core.LogWarn("query read failed: %s", err)
		return QueryExpired, data
	case !ok:
		return QueryNotReady, data
	case data.Disjoint:
		return QueryExpired, data
	}
	return QueryReady, data
}

type perfMarker struct {
	begin, end driver.Query
	frame      uint64
	name       string
	// issued counts the timestamps written: 0 free, 1 open, 2 closed.
	issued uint32
	depth  uint32
}

type markerBuffer struct {
	markers  []perfMarker
	pos      int
	disjoint driver.Query
	// pending is set once the disjoint query has ended and its markers
	// have not all been read yet.
	pending bool
}

func (b *markerBuffer) expire() {
	for i := range b.markers {
		b.markers[i].issued = 0
	}
	b.pos = 0
	b.pending = false
}

// perfMarkerSet is a ring of marker buffers, one per frame in flight.
type perfMarkerSet struct {
	dev     driver.Device
	ctx     driver.Context
	buffers []markerBuffer
	buf     int
	depth   uint32
	stack   []int
	// publish receives every completed interval. index is its position in the buffer.
	publish func(index int, r metadata.GPUPerfResult)
}

func newPerfMarkerSet(dev driver.Device, ctx driver.Context, numBuffers int, publish func(int, metadata.GPUPerfResult)) *perfMarkerSet {
	return &perfMarkerSet{
		dev:     dev,
		ctx:     ctx,
		buffers: make([]markerBuffer, numBuffers),
		publish: publish,
	}
}

func (p *perfMarkerSet) push(frame uint64, name string) {
	if frame == 0 {
		return
	}
	b := &p.buffers[p.buf]
	if b.pos >= len(b.markers) {
		var m perfMarker
		var err error
		m.begin, err = p.dev.CreateQuery(driver.QueryTimestamp)
		core.CheckCall(err, "create timestamp query")
		m.end, err = p.dev.CreateQuery(driver.QueryTimestamp)
		core.CheckCall(err, "create timestamp query")
		b.markers = append(b.markers, m)
	}

	m := &b.markers[b.pos]
	// results taking longer than the ring depth to arrive are expired on
	// advance, so a busy marker here is a pairing bug
	core.Assert(m.issued == 0, "perf marker %q pushed over a marker still in flight", name)

	p.stack = append(p.stack, b.pos)
	m.name = name
	m.depth = p.depth
	m.frame = frame
	if m.begin != nil {
		p.ctx.End(m.begin)
	}
	m.issued++
	b.pos++
	p.depth++
}

func (p *perfMarkerSet) pop(frame uint64) {
	if frame == 0 {
		return
	}
	core.Assert(len(p.stack) > 0, "perf marker popped with none pushed")
	p.depth--

	i := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]

	m := &p.buffers[p.buf].markers[i]
	core.Assert(m.issued == 1, "perf marker %q popped twice", m.name)
	if m.end != nil {
		p.ctx.End(m.end)
	}
	m.issued++
}

// gather reads back every buffer whose frame has completed, then moves on
// to the next buffer of the ring.
func (p *perfMarkerSet) gather(frame uint64) {
	if frame == 0 {
		for i := range p.buffers {
			q, err := p.dev.CreateQuery(driver.QueryTimestampDisjoint)
			core.CheckCall(err, "create disjoint query")
			p.buffers[i].disjoint = q
		}
		p.begin()
		return
	}

	if cur := &p.buffers[p.buf]; cur.disjoint != nil {
		p.ctx.End(cur.disjoint)
		cur.pending = true
	}

	for bb := range p.buffers {
		b := &p.buffers[bb]
		if !b.pending {
			continue
		}
		state, data := pollQuery(p.ctx, b.disjoint)
		switch state {
		case QueryNotReady:
			continue
		case QueryExpired:
			b.expire()
			continue
		}
		p.read(b, data.Frequency)
	}

	p.buf = (p.buf + 1) % len(p.buffers)
	if next := &p.buffers[p.buf]; next.pending || next.pos > 0 {
		// a full ring later the results are still unread, drop them
		next.expire()
		p.depth = 0
		p.stack = p.stack[:0]
	}
	p.begin()
}

func (p *perfMarkerSet) begin() {
	if q := p.buffers[p.buf].disjoint; q != nil {
		p.ctx.Begin(q)
	}
}

func (p *perfMarkerSet) read(b *markerBuffer, frequency uint64) {
	complete := 0
	for i := 0; i < b.pos; i++ {
		m := &b.markers[i]
		if m.issued != 2 {
			continue
		}
		bs, begin := pollQuery(p.ctx, m.begin)
		if bs != QueryReady {
			continue
		}
		es, end := pollQuery(p.ctx, m.end)
		if es != QueryReady {
			continue
		}
		r := metadata.GPUPerfResult{
			Name:  m.name,
			Frame: m.frame,
			Depth: m.depth,
			Begin: ticksToNanoseconds(begin.Timestamp, frequency),
			End:   ticksToNanoseconds(end.Timestamp, frequency),
		}
		r.Elapsed = r.End - r.Begin
		if p.publish != nil {
			p.publish(i, r)
		}
		m.issued = 0
		complete++
	}

	if complete == b.pos {
		b.pos = 0
		b.pending = false
		p.depth = 0
	}
}

func (p *perfMarkerSet) release() {
	for i := range p.buffers {
		b := &p.buffers[i]
		for j := range b.markers {
			releaseObject(&b.markers[j].begin)
			releaseObject(&b.markers[j].end)
		}
		releaseObject(&b.disjoint)
		b.markers = nil
	}
}

func ticksToNanoseconds(ticks, frequency uint64) uint64 {
	if frequency == 0 || frequency == 1_000_000_000 {
		return ticks
	}
	hi, lo := bits.Mul64(ticks, 1_000_000_000)
	if hi >= frequency {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, frequency)
	return q
}
