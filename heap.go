// Package gcheap implements a precise, moving semispace-copying garbage
// collector intended for embedding into a language runtime: a type
// registry describing object pointer layouts, a bump-pointer allocator, a
// Cheney-style copying collector, and a handle table that lets a host
// hold GC roots without pinning raw pointers across a collection.
package gcheap

import (
	"unsafe"

	"github.com/orizon-lang/preciseheap/internal/fault"
	"github.com/orizon-lang/preciseheap/ospage"
)

// Heap is a single, single-threaded garbage-collected arena. It is not
// safe for concurrent use: the model assumes one mutator thread drives
// allocation and collection is never triggered reentrantly.
type Heap struct {
	types   *TypeRegistry
	handles *handleTable
	pager   ospage.Pager

	from bumpBlock
	gc   collector

	localStack []int32

	observer    Observer
	collections uint64
}

// New reserves the initial from-space and returns a ready-to-use Heap.
func New(cfg Config, opts ...Option) (*Heap, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pager := cfg.pager
	if pager == nil {
		pager = ospage.DefaultPager()
	}

	region, err := pager.Reserve(cfg.InitialHeap)
	if err != nil {
		return nil, fault.ToSpaceExhausted(err)
	}

	h := &Heap{
		types:   NewTypeRegistry(),
		handles: newHandleTable(),
		pager:   pager,
		from:    bumpBlock{region: region},
		gc:      newCollector(cfg.InitialHeap, cfg.SlowGrowthFactor, cfg.FastGrowthFactor),
		observer: cfg.observer,
	}

	return h, nil
}

// Types returns the registry new object types must be registered with
// before they can be allocated.
func (h *Heap) Types() *TypeRegistry { return h.types }

// Close releases both semispaces back to the pager. The Heap must not be
// used afterward.
func (h *Heap) Close() error {
	if err := h.pager.Release(h.from.region); err != nil {
		return err
	}

	if !h.gc.to.region.Empty() {
		if err := h.pager.Release(h.gc.to.region); err != nil {
			return err
		}
	}

	return nil
}

// Stats reports the heap's current size and usage.
func (h *Heap) Stats() Stats {
	return Stats{
		Allocated:   h.from.capacity() + h.gc.to.capacity(),
		Used:        h.from.used(),
		TypeCount:   h.types.Count(),
		HandleCount: h.handles.liveCount(),
		Collections: h.collections,
	}
}

// Alloc allocates a single instance of typeID, returning the address of
// its object header. The object's payload is zeroed. Allocation is
// unrooted: the caller must record the returned pointer into a Root (or a
// Local within an open Scope) before doing anything that might trigger a
// collection, or it may be reclaimed.
func (h *Heap) Alloc(typeID TypeId) unsafe.Pointer {
	desc := h.types.Get(typeID)
	debugAssertTypeID(h.types, typeID)

	objPtr := h.allocRaw(desc.Size)
	*objectHeaderAt(objPtr) = packObjectHeader(typeID, false)

	return objPtr
}

// AllocArray allocates an array of count elements of typeID, returning
// the address of its object header. The array's length is stored
// immediately after the header; element data follows.
func (h *Heap) AllocArray(typeID TypeId, count uintptr) unsafe.Pointer {
	desc := h.types.Get(typeID)
	debugAssertTypeID(h.types, typeID)

	payloadSize := ptrSize + count*desc.Size

	objPtr := h.allocRaw(payloadSize)
	*objectHeaderAt(objPtr) = packObjectHeader(typeID, true)
	*(*uintptr)(unsafe.Add(objPtr, int(objectHeaderSize))) = count

	return objPtr
}

// arrayLen returns the element count stored in an array object allocated
// by AllocArray.
func arrayLen(objPtr unsafe.Pointer) uintptr {
	return *(*uintptr)(unsafe.Add(objPtr, int(objectHeaderSize)))
}

// arrayElem returns the address of element i of an array object.
func arrayElem(objPtr unsafe.Pointer, elemSize, i uintptr) unsafe.Pointer {
	base := unsafe.Add(objPtr, int(objectHeaderSize+ptrSize))
	return unsafe.Add(base, int(i*elemSize))
}

func (h *Heap) allocRaw(payloadSize uintptr) unsafe.Pointer {
	if ptr := h.from.alloc(payloadSize); ptr != nil {
		debugAssertFreshBlock(headerAt(ptr))
		return ptr
	}

	h.gc.lastFailed = payloadSize + blockHeaderSize + objectHeaderSize
	h.collect()

	if ptr := h.from.alloc(payloadSize); ptr != nil {
		return ptr
	}

	panic(fault.OutOfMemory(payloadSize, h.from.capacity()-h.from.used()))
}

// collect runs one full stop-the-world copying collection: grow (or
// reuse) the to-space, forward every root, breadth-first scan to-space to
// forward everything transitively reachable, then swap from/to so the
// newly-populated space becomes live.
func (h *Heap) collect() {
	allocatedBefore := h.Stats().Allocated
	usedBefore := h.from.used()

	if err := h.gc.resize(h.pager, h.from.used()); err != nil {
		panic(err)
	}

	h.handles.forEach(func(slot *unsafe.Pointer) {
		*slot = h.gc.forward(*slot)
	})

	h.gc.scan(h.types)

	oldFrom := h.from
	h.from = bumpBlock{region: h.gc.to.region, offset: h.gc.to.offset}
	h.gc.to = oldFrom
	h.gc.to.offset = 0

	if usedBefore > 0 {
		h.gc.lastUsed = clamp01(float64(h.from.used()) / float64(usedBefore))
	} else {
		h.gc.lastUsed = 0
	}
	h.collections++

	if h.observer != nil {
		h.observer.OnCollection(CollectionStats{
			AllocatedBefore: allocatedBefore,
			UsedBefore:      usedBefore,
			UsedAfter:       h.from.used(),
			BytesMoved:      h.from.used(),
		})
	}
}

// Collect forces a collection outside of an allocation failure, useful
// for hosts that want to pace pauses explicitly.
func (h *Heap) Collect() { h.collect() }
