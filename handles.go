package gcheap

import (
	"unsafe"

	"github.com/orizon-lang/preciseheap/internal/fault"
)

// handleTable is the heap's root set: a dense slice of raw object
// pointers plus a LIFO stack of free indices so add/remove/reuse are all
// O(1). Every Root, ArrayRoot and Local handle is just an index into this
// table, which is why the collector can relocate the objects they refer
// to by walking the table and rewriting pointers in place.
type handleTable struct {
	ptrs []unsafe.Pointer
	free []int32
}

func newHandleTable() *handleTable {
	return &handleTable{}
}

func (t *handleTable) add(ptr unsafe.Pointer) int32 {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]

		if t.ptrs[idx] != nil {
			panic(fault.Internal("reused handle slot was not actually free"))
		}

		t.ptrs[idx] = ptr

		return idx
	}

	t.ptrs = append(t.ptrs, ptr)

	return int32(len(t.ptrs) - 1)
}

func (t *handleTable) remove(idx int32) {
	t.ptrs[idx] = nil
	t.free = append(t.free, idx)
}

func (t *handleTable) get(idx int32) unsafe.Pointer {
	return t.ptrs[idx]
}

func (t *handleTable) set(idx int32, ptr unsafe.Pointer) {
	t.ptrs[idx] = ptr
}

// forEach visits every occupied slot, letting the caller mutate the
// stored pointer in place (the collector uses this to forward roots).
func (t *handleTable) forEach(visit func(*unsafe.Pointer)) {
	for i := range t.ptrs {
		if t.ptrs[i] == nil {
			continue
		}

		visit(&t.ptrs[i])
	}
}

func (t *handleTable) liveCount() int {
	return len(t.ptrs) - len(t.free)
}
