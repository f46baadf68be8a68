package gcheap

import (
	"unsafe"

	"github.com/orizon-lang/preciseheap/internal/fault"
)

// TypeId identifies a registered TypeDescriptor. Object headers carry a
// TypeId rather than a pointer to the descriptor itself, keeping the
// header a single machine word.
type TypeId uint32

// WalkResult tells walkPointers what to do with the slot a Callback layout
// just inspected.
type WalkResult int

const (
	// WalkPointer means the slot holds a live pointer to trace and forward.
	WalkPointer WalkResult = iota
	// WalkSkip means the slot holds non-pointer data; move to the next slot.
	WalkSkip
	// WalkEnd means there are no more slots in this object.
	WalkEnd
)

// CallbackFunc inspects slot i (a pointer-sized word) of payload and
// reports whether it holds a traceable pointer.
type CallbackFunc func(payload unsafe.Pointer, slot uintptr) WalkResult

// Layout describes which pointer-sized words of an object's payload hold
// traceable pointers. The three implementations mirror the original
// strategy's GcTypeLayout: a type with no pointers, a type small enough to
// describe with a bitmask, and a type whose shape needs arbitrary logic.
type Layout interface {
	isLayout()
}

// NoPointers marks a type whose payload contains no traceable pointers
// (numbers, strings of bytes, etc).
type NoPointers struct{}

// Bitmap marks bit i when pointer-sized word i of the payload is a
// traceable pointer. It can only describe types with at most 64
// pointer-sized words.
type Bitmap uint64

// Callback marks a type whose pointer slots aren't expressible as a fixed
// bitmap (e.g. variable-length container internals); Fn is invoked once
// per slot starting at 0 until it returns WalkEnd.
type Callback struct {
	Fn CallbackFunc
}

func (NoPointers) isLayout() {}
func (Bitmap) isLayout()     {}
func (Callback) isLayout()   {}

// TypeDescriptor records the layout of one registered type: the size of
// its payload in bytes (excluding both headers) and which of its
// pointer-sized slots are live references.
type TypeDescriptor struct {
	Size   uintptr
	Layout Layout
}

// TypeRegistry holds every TypeDescriptor a Heap's objects may reference.
// Entries are append-only; TypeId 0 is never assigned so a zero value
// reliably indicates "no type".
type TypeRegistry struct {
	descs []TypeDescriptor
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{descs: make([]TypeDescriptor, 1)}
}

// Add validates and registers desc, returning the TypeId future
// allocations should use to refer to it.
func (r *TypeRegistry) Add(desc TypeDescriptor) (TypeId, error) {
	if err := validateDescriptor(desc); err != nil {
		return 0, err
	}

	r.descs = append(r.descs, desc)

	return TypeId(len(r.descs) - 1), nil
}

// MustAdd is Add for callers confident the descriptor is well formed; it
// panics on validation failure.
func (r *TypeRegistry) MustAdd(desc TypeDescriptor) TypeId {
	id, err := r.Add(desc)
	if err != nil {
		panic(err)
	}

	return id
}

// Get returns the descriptor registered under id.
func (r *TypeRegistry) Get(id TypeId) *TypeDescriptor {
	if id == 0 || int(id) >= len(r.descs) {
		panic(fault.Internal("unregistered TypeId referenced"))
	}

	return &r.descs[id]
}

// Count returns the number of registered types, not including the
// reserved zero id.
func (r *TypeRegistry) Count() int { return len(r.descs) - 1 }

func validateDescriptor(desc TypeDescriptor) error {
	if desc.Layout == nil {
		return fault.InvalidLayout("Layout must not be nil")
	}

	if desc.Size == 0 {
		return fault.InvalidLayout("Size must be greater than zero")
	}

	if b, ok := desc.Layout.(Bitmap); ok {
		words := desc.Size / ptrSize
		if words > 64 {
			return fault.InvalidLayout("Bitmap layout cannot describe more than 64 pointer-sized words")
		}

		if uint64(b) != 0 && words < 64 {
			if uint64(b)>>words != 0 {
				return fault.InvalidLayout("Bitmap sets a bit beyond the type's payload size")
			}
		}
	}

	if desc.Size%ptrSize != 0 {
		return fault.InvalidLayout("Size must be a multiple of the pointer size")
	}

	return nil
}
