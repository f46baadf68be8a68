package gcheap

import (
	"unsafe"

	"github.com/orizon-lang/preciseheap/internal/fault"
)

// GcPtr is a raw, unrooted reference into the heap. It is only valid
// until the next collection; hold one across an allocation at your own
// risk. Use Root or Local to keep a reference alive across collections.
type GcPtr[T any] struct {
	ptr unsafe.Pointer
}

// IsNil reports whether the pointer is nil.
func (p GcPtr[T]) IsNil() bool { return p.ptr == nil }

// Deref returns the pointed-to value. It panics if the pointer is nil.
func (p GcPtr[T]) Deref() *T {
	if p.ptr == nil {
		panic(fault.NullPointer("Deref"))
	}

	return (*T)(unsafe.Add(p.ptr, int(objectHeaderSize)))
}

// Root keeps a single heap object alive across collections by occupying
// a slot in the owning Heap's handle table. Close it when done, or it
// will keep the object (and everything reachable from it) alive forever.
type Root[T any] struct {
	heap  *Heap
	index int32
}

// AllocRoot allocates a new instance of typeID and returns a Root owning
// it. T's layout must match typeID's TypeDescriptor; the package cannot
// verify this statically.
func AllocRoot[T any](h *Heap, typeID TypeId) *Root[T] {
	ptr := h.Alloc(typeID)
	idx := h.handles.add(ptr)

	return &Root[T]{heap: h, index: idx}
}

// Get returns a pointer to the rooted value. The pointer is only valid
// until the Root is closed or the next collection runs (after which a
// fresh call to Get returns the relocated address).
func (r *Root[T]) Get() *T {
	objPtr := r.heap.handles.get(r.index)
	return (*T)(unsafe.Add(objPtr, int(objectHeaderSize)))
}

// AsPtr returns an unrooted GcPtr to the same object, for passing into
// another object's pointer slot.
func (r *Root[T]) AsPtr() GcPtr[T] {
	return GcPtr[T]{ptr: r.heap.handles.get(r.index)}
}

// Clone roots the same object again under a new handle.
func (r *Root[T]) Clone() *Root[T] {
	idx := r.heap.handles.add(r.heap.handles.get(r.index))
	return &Root[T]{heap: r.heap, index: idx}
}

// Close releases the root. The object becomes eligible for collection
// once nothing else references it.
func (r *Root[T]) Close() {
	r.heap.handles.remove(r.index)
}

// ArrayRoot keeps a heap-allocated array alive across collections and
// provides bounds-checked element access.
type ArrayRoot[T any] struct {
	heap     *Heap
	index    int32
	elemSize uintptr
}

// AllocArrayRoot allocates an array of length elements of typeID and
// returns an ArrayRoot owning it.
func AllocArrayRoot[T any](h *Heap, typeID TypeId, length uintptr) *ArrayRoot[T] {
	desc := h.types.Get(typeID)
	ptr := h.AllocArray(typeID, length)
	idx := h.handles.add(ptr)

	return &ArrayRoot[T]{heap: h, index: idx, elemSize: desc.Size}
}

// Len returns the array's element count.
func (r *ArrayRoot[T]) Len() uintptr {
	return arrayLen(r.heap.handles.get(r.index))
}

// At returns a pointer to element i. It panics if i is out of bounds.
func (r *ArrayRoot[T]) At(i uintptr) *T {
	objPtr := r.heap.handles.get(r.index)

	n := arrayLen(objPtr)
	if i >= n {
		panic(fault.IndexOutOfBounds(i, n))
	}

	return (*T)(arrayElem(objPtr, r.elemSize, i))
}

// Close releases the root.
func (r *ArrayRoot[T]) Close() {
	r.heap.handles.remove(r.index)
}

// Scope is a nested lifetime for Local handles: closing a Scope releases
// every Local opened within it in one step, the same way a host runtime's
// stack frame would release its locals on return.
type Scope struct {
	heap  *Heap
	depth int
}

// OpenScope begins a new nested lifetime for Local handles.
func OpenScope(h *Heap) *Scope {
	return &Scope{heap: h, depth: len(h.localStack)}
}

// Close releases every Local opened since OpenScope was called, in
// reverse order.
func (s *Scope) Close() {
	stack := s.heap.localStack

	for len(stack) > s.depth {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.heap.handles.remove(idx)
	}

	s.heap.localStack = stack
}

// Local is a Root scoped to a Scope rather than closed individually.
type Local[T any] struct {
	heap  *Heap
	index int32
}

// AllocLocal allocates a new instance of typeID rooted for the lifetime
// of s.
func AllocLocal[T any](s *Scope, typeID TypeId) *Local[T] {
	ptr := s.heap.Alloc(typeID)
	idx := s.heap.handles.add(ptr)
	s.heap.localStack = append(s.heap.localStack, idx)

	return &Local[T]{heap: s.heap, index: idx}
}

// Get returns a pointer to the local value.
func (l *Local[T]) Get() *T {
	objPtr := l.heap.handles.get(l.index)
	return (*T)(unsafe.Add(objPtr, int(objectHeaderSize)))
}
