package audio

import "sync/atomic"

// DefaultRingCapacity is the default number of frames an input/output ring
// can hold before the producer starts dropping. At 128 samples/frame and
// 48kHz this is roughly 171ms of buffering.
const DefaultRingCapacity = 64

// MinRingCapacity is the smallest capacity the system tolerates.
const MinRingCapacity = 8

// Ring is a bounded, wait-free queue of audio Frames for exactly one
// producer and one consumer. Both writePos and readPos increment freely
// and are only masked when indexing into the backing array; the emptiness
// check readPos==writePos relies on both counters sharing that domain.
//
// Full pushes are dropped at the producer — TryPush never blocks. Empty
// pops return ok=false — TryPop never blocks. Concurrent producers or
// concurrent consumers are undefined behavior; this type assumes exactly
// one of each, as required by the mixer's per-participant input/output
// queues.
type Ring struct {
	buffer   []Frame
	mask     uint32
	writePos uint32
	readPos  uint32
	dropped  uint64
}

// NewRing creates a ring rounded up to the next power of two, clamped to
// at least MinRingCapacity.
func NewRing(capacity int) *Ring {
	if capacity < MinRingCapacity {
		capacity = MinRingCapacity
	}
	size := uint32(1)
	for int(size) < capacity {
		size <<= 1
	}
	return &Ring{
		buffer: make([]Frame, size),
		mask:   size - 1,
	}
}

// TryPush writes frame to the ring. Returns false and drops the frame if
// the ring is full; never blocks.
//
// The store to buffer happens before the atomic store that publishes the
// new writePos, so a consumer observing the new writePos via TryPop's
// acquire load also observes the frame's bytes (release/acquire pairing).
func (r *Ring) TryPush(frame Frame) bool {
	writePos := atomic.LoadUint32(&r.writePos)
	readPos := atomic.LoadUint32(&r.readPos)

	if writePos-readPos >= uint32(len(r.buffer)) {
		atomic.AddUint64(&r.dropped, 1)
		return false
	}

	r.buffer[writePos&r.mask] = frame
	atomic.StoreUint32(&r.writePos, writePos+1)
	return true
}

// TryPop reads the oldest frame into out. Returns false if the ring is
// empty; never blocks.
func (r *Ring) TryPop(out *Frame) bool {
	readPos := atomic.LoadUint32(&r.readPos)
	writePos := atomic.LoadUint32(&r.writePos)

	if readPos == writePos {
		return false
	}

	*out = r.buffer[readPos&r.mask]
	atomic.AddUint32(&r.readPos, 1)
	return true
}

// SizeHint returns an approximate count of buffered frames. It may lag
// under concurrent access and is for diagnostics only.
func (r *Ring) SizeHint() int {
	writePos := atomic.LoadUint32(&r.writePos)
	readPos := atomic.LoadUint32(&r.readPos)
	return int(writePos - readPos)
}

// Dropped returns the number of frames dropped because the ring was full
// at push time.
func (r *Ring) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

// Capacity returns the ring's fixed slot count.
func (r *Ring) Capacity() int {
	return len(r.buffer)
}
