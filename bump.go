package gcheap

import (
	"unsafe"

	"github.com/orizon-lang/preciseheap/ospage"
)

// bumpBlock is a single semispace: a reserved region plus a monotonically
// advancing offset. Allocation is the classic bump-pointer sequence;
// freeing a single object is never supported, only wholesale reset at the
// start of a collection.
type bumpBlock struct {
	region ospage.Region
	offset uintptr
}

// alloc reserves room for a payload of payloadSize bytes, writes a fresh
// blockHeader in front of it, and returns the address of the object
// header that follows (i.e. where the caller should write the
// objectHeader and then the payload). It returns nil when the block has
// no room left; the caller is responsible for triggering a collection and
// retrying.
func (b *bumpBlock) alloc(payloadSize uintptr) unsafe.Pointer {
	total := alignUp(blockHeaderSize+objectHeaderSize+payloadSize, ptrSize)

	if b.offset+total > b.region.Size {
		return nil
	}

	blockStart := unsafe.Add(b.region.Base, int(b.offset))
	hdr := (*blockHeader)(blockStart)
	hdr.forward = nil
	hdr.size = total

	objStart := unsafe.Add(blockStart, int(blockHeaderSize))
	zeroMem(objStart, total-blockHeaderSize)

	b.offset += total

	return objStart
}

// reset rewinds the block to empty without releasing its backing region.
func (b *bumpBlock) reset() { b.offset = 0 }

func (b *bumpBlock) used() uintptr { return b.offset }

func (b *bumpBlock) capacity() uintptr { return b.region.Size }
