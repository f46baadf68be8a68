package gcheap

import (
	"unsafe"

	"github.com/orizon-lang/preciseheap/internal/fault"
	"github.com/orizon-lang/preciseheap/ospage"
)

// collector owns the to-space semispace and the sizing controller state
// that decides how large the next to-space should be. Its resize/forward/
// scan sequence is a direct port of the copying strategy's alloc/copy
// cycle: grow the to-space by a factor chosen from the previous fill
// ratio, forward every root, then breadth-first scan to-space copying
// anything still reachable from an already-forwarded object.
type collector struct {
	to   bumpBlock
	free unsafe.Pointer

	initialHeap uintptr
	slowGrowth  float64
	fastGrowth  float64

	lastUsed   float64
	lastFailed uintptr
}

func newCollector(initialHeap uintptr, slowGrowth, fastGrowth float64) collector {
	return collector{
		initialHeap: initialHeap,
		slowGrowth:  slowGrowth,
		fastGrowth:  fastGrowth,
	}
}

// growthFactor picks the fast factor when the previous semispace filled
// past 80%, and the slow factor otherwise — the same threshold the
// original sizing heuristic uses to tell "about to thrash" from "comfortably
// sized" apart.
func (c *collector) growthFactor() float64 {
	if c.lastUsed > 0.8 {
		return c.fastGrowth
	}

	return c.slowGrowth
}

// resize grows (or reuses) the to-space ahead of a collection. fromOffset
// is the number of bytes allocated in the from-space (live or not) going
// into this collection; target is derived from it plus whatever allocation just
// failed, scaled by the fill ratio of the previous cycle and the chosen
// growth factor, then clamped to never shrink below the configured
// initial heap size and rounded up to a whole page. c.to is left with a
// zeroed offset and a region of at least target bytes, reserved fresh
// only when the region currently held (the previous from-space, recycled
// by the caller) is too small.
func (c *collector) resize(pager ospage.Pager, fromOffset uintptr) error {
	needed := c.lastFailed
	c.lastFailed = 0

	target := fromOffset + needed

	if c.lastUsed > 0 {
		target = uintptr(float64(target) * c.lastUsed)
	}

	if target < c.initialHeap {
		target = c.initialHeap
	}

	target = uintptr(float64(target) * c.growthFactor())
	target = roundUpTo(target, pager.PageSize())

	if target > c.to.region.Size {
		if !c.to.region.Empty() {
			if err := pager.Release(c.to.region); err != nil {
				return fault.ToSpaceExhausted(err)
			}
		}

		region, err := pager.Reserve(target)
		if err != nil {
			return fault.ToSpaceExhausted(err)
		}

		c.to.region = region
	}

	c.to.offset = 0

	return nil
}

func roundUpTo(size, page uintptr) uintptr {
	if page == 0 {
		return size
	}

	return (size + page - 1) &^ (page - 1)
}

// forward copies the block containing ptr (an object-header address) to
// to-space on its first visit and returns the new object-header address
// every time, including on repeat visits — the forwarding pointer stashed
// in the block header is what makes the second call free.
func (c *collector) forward(ptr unsafe.Pointer) unsafe.Pointer {
	if ptr == nil {
		return nil
	}

	hdr := headerAt(ptr)

	if hdr.forward != nil {
		return hdr.forward
	}

	dst := unsafe.Add(c.to.region.Base, int(c.to.offset))
	copyMem(dst, unsafe.Pointer(hdr), hdr.size)

	newObj := unsafe.Add(dst, int(blockHeaderSize))
	hdr.forward = newObj
	c.to.offset += hdr.size

	return newObj
}

// scan performs the breadth-first to-space walk: starting from the
// beginning of to-space, it reads each copied object's header to find its
// type, walks that type's live pointer slots, forwards whatever they
// point to, and writes the forwarded address back in place. Because
// forward() appends newly-copied objects to the same to-space the scan is
// walking, this single linear pass reaches every object transitively
// reachable from the roots without an explicit work queue.
func (c *collector) scan(reg *TypeRegistry) {
	scanOffset := uintptr(0)

	for scanOffset < c.to.offset {
		blockStart := unsafe.Add(c.to.region.Base, int(scanOffset))
		hdr := (*blockHeader)(blockStart)
		objPtr := unsafe.Add(blockStart, int(blockHeaderSize))

		scanObject(objPtr, reg, c.forward)

		scanOffset += hdr.size
	}
}

func scanObject(objPtr unsafe.Pointer, reg *TypeRegistry, forward func(unsafe.Pointer) unsafe.Pointer) {
	obj := objectHeaderAt(objPtr)
	desc := reg.Get(obj.typeID())
	payload := unsafe.Add(objPtr, int(objectHeaderSize))

	if !obj.isArray() {
		walkPointers(payload, desc, func(slot unsafe.Pointer) {
			forwardSlot(slot, forward)
		})

		return
	}

	length := *(*uintptr)(payload)
	elems := unsafe.Add(payload, int(ptrSize))

	walkArrayPointers(elems, desc, length, func(slot unsafe.Pointer) {
		forwardSlot(slot, forward)
	})
}

func forwardSlot(slot unsafe.Pointer, forward func(unsafe.Pointer) unsafe.Pointer) {
	ref := (*unsafe.Pointer)(slot)
	if *ref == nil {
		return
	}

	*ref = forward(*ref)
}
