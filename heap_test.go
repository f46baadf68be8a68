package gcheap

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/orizon-lang/preciseheap/ospage"
)

// node is a two-word object: a traceable pointer to another node and a
// plain integer payload. Its Bitmap layout marks only word 0 (Next) live.
type node struct {
	Next GcPtr[node]
	Val  uintptr
}

func nodeHeap(t *testing.T, initialHeap uintptr) (*Heap, TypeId) {
	t.Helper()

	h, err := New(DefaultConfig(),
		WithPager(ospage.NewFakePager(4096)),
		WithInitialHeap(initialHeap))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := h.Types().MustAdd(TypeDescriptor{Size: 2 * ptrSize, Layout: Bitmap(1)})

	return h, id
}

// TestSimpleIntegrityAcrossCollection links two rooted nodes, forces a
// collection, and checks both the scalar field and the cross-object
// pointer survive the move intact.
func TestSimpleIntegrityAcrossCollection(t *testing.T) {
	h, id := nodeHeap(t, 4096)

	a := AllocRoot[node](h, id)
	b := AllocRoot[node](h, id)

	a.Get().Val = 111
	b.Get().Val = 222
	a.Get().Next = b.AsPtr()

	h.Collect()

	if a.Get().Val != 111 || b.Get().Val != 222 {
		t.Fatalf("values corrupted across collection: a=%d b=%d", a.Get().Val, b.Get().Val)
	}

	linked := a.Get().Next
	if linked.IsNil() {
		t.Fatal("a.Next became nil across collection")
	}

	if linked.Deref().Val != 222 {
		t.Fatalf("a.Next.Val = %d, want 222", linked.Deref().Val)
	}
}

// TestForwardingMovesTheObject checks the copying collector is actually
// moving, the Root address after a collection differs from before it,
// demonstrating this is not a no-op conservative collector.
func TestForwardingMovesTheObject(t *testing.T) {
	h, id := nodeHeap(t, 4096)

	r := AllocRoot[node](h, id)
	before := unsafe.Pointer(r.Get())

	h.Collect()

	after := unsafe.Pointer(r.Get())
	if before == after {
		t.Fatal("object address did not change across a collection")
	}
}

// TestForwardingIsIdempotentWithinACollection verifies that when two
// roots alias the same object, both resolve to the same new address after
// one collection rather than producing two diverging copies.
func TestForwardingIsIdempotentWithinACollection(t *testing.T) {
	h, id := nodeHeap(t, 4096)

	a := AllocRoot[node](h, id)
	b := a.Clone()

	h.Collect()

	if unsafe.Pointer(a.Get()) != unsafe.Pointer(b.Get()) {
		t.Fatal("aliased roots resolved to different addresses after collection")
	}
}

// TestArrayTraceAcrossCollection allocates an array of pointer elements,
// links them to rooted nodes, and checks the whole graph survives a
// collection through the array-walking path.
func TestArrayTraceAcrossCollection(t *testing.T) {
	h, id := nodeHeap(t, 4096)

	// GcPtr[node] is a single pointer-sized word; its own element
	// descriptor is distinct from node's own two-word descriptor.
	ptrElemID := h.Types().MustAdd(TypeDescriptor{Size: ptrSize, Layout: Bitmap(1)})

	const n = 4
	arr := AllocArrayRoot[GcPtr[node]](h, ptrElemID, n)

	targets := make([]*Root[node], n)
	for i := uintptr(0); i < n; i++ {
		targets[i] = AllocRoot[node](h, id)
		targets[i].Get().Val = 1000 + i
		*arr.At(i) = targets[i].AsPtr()
	}

	h.Collect()

	for i := uintptr(0); i < n; i++ {
		slot := *arr.At(i)
		if slot.IsNil() {
			t.Fatalf("array slot %d became nil across collection", i)
		}

		if slot.Deref().Val != 1000+i {
			t.Fatalf("array slot %d Val = %d, want %d", i, slot.Deref().Val, 1000+i)
		}
	}
}

// callbackPayload has one traceable pointer word followed by one word
// that merely looks like a pointer (non-zero, pointer-sized) but must not
// be followed, proving the Callback layout's own logic — not a blanket
// heuristic — decides which words are live.
type callbackPayload struct {
	Live  GcPtr[node]
	Dummy uintptr
}

func TestCallbackLayoutOnlyFollowsDeclaredSlots(t *testing.T) {
	h, _ := nodeHeap(t, 4096)

	cbID := h.Types().MustAdd(TypeDescriptor{
		Size: 2 * ptrSize,
		Layout: Callback{Fn: func(payload unsafe.Pointer, slot uintptr) WalkResult {
			switch slot {
			case 0:
				return WalkPointer
			case 1:
				return WalkSkip
			default:
				return WalkEnd
			}
		}},
	})
	nodeID := h.Types().MustAdd(TypeDescriptor{Size: 2 * ptrSize, Layout: Bitmap(1)})

	target := AllocRoot[node](h, nodeID)
	target.Get().Val = 55

	holder := AllocRoot[callbackPayload](h, cbID)
	holder.Get().Live = target.AsPtr()
	holder.Get().Dummy = 0xDEADBEEF

	h.Collect()

	if holder.Get().Live.Deref().Val != 55 {
		t.Fatal("traced pointer slot did not survive collection")
	}

	if holder.Get().Dummy != 0xDEADBEEF {
		t.Fatal("non-pointer word was mutated despite Callback marking it WalkSkip")
	}
}

// collectObserver records every CollectionStats it receives.
type collectObserver struct {
	events []CollectionStats
}

func (o *collectObserver) OnCollection(cs CollectionStats) {
	o.events = append(o.events, cs)
}

// TestSizingGrowsMonotonicallyAndNotifiesObserver drives enough
// allocations to cause several collections and checks the heap's total
// allocated size grows monotonically and that the observer is notified
// each time.
func TestSizingGrowsMonotonicallyAndNotifiesObserver(t *testing.T) {
	obs := &collectObserver{}

	h, err := New(DefaultConfig(),
		WithPager(ospage.NewFakePager(4096)),
		WithInitialHeap(4096),
		WithObserver(obs))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := h.Types().MustAdd(TypeDescriptor{Size: 2 * ptrSize, Layout: NoPointers{}})

	scope := OpenScope(h)

	var lastAllocated uintptr
	for i := 0; i < 1024; i++ {
		AllocLocal[node](scope, id)

		stats := h.Stats()
		if stats.Allocated < lastAllocated {
			t.Fatalf("Allocated shrank: %d -> %d", lastAllocated, stats.Allocated)
		}

		lastAllocated = stats.Allocated
	}

	if h.Stats().Collections == 0 {
		t.Fatal("expected at least one collection to have run")
	}

	if len(obs.events) != int(h.Stats().Collections) {
		t.Fatalf("observer saw %d events, want %d", len(obs.events), h.Stats().Collections)
	}
}

// cappedPager is a FakePager that refuses any reservation above limit,
// so a heap built on it cannot grow past that size.
type cappedPager struct {
	*ospage.FakePager
	limit uintptr
}

func (p cappedPager) Reserve(size uintptr) (ospage.Region, error) {
	if size > p.limit {
		return ospage.Region{}, errors.New("reservation exceeds the pager's cap")
	}

	return p.FakePager.Reserve(size)
}

// TestAllocLargerThanHeapPanics is a smoke test for the out-of-memory
// path: a single allocation larger than the heap can ever grow to must
// fail fatally rather than silently succeeding or corrupting state.
func TestAllocLargerThanHeapPanics(t *testing.T) {
	h, err := New(DefaultConfig(),
		WithPager(cappedPager{FakePager: ospage.NewFakePager(4096), limit: 64 * 1024}),
		WithInitialHeap(4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id := h.Types().MustAdd(TypeDescriptor{Size: 2 * ptrSize, Layout: Bitmap(1)})

	defer func() {
		if recover() == nil {
			t.Fatal("expected an allocation larger than the heap to panic")
		}
	}()

	h.AllocArray(id, 1<<20)
}

func TestCloseReleasesBothSemispaces(t *testing.T) {
	h, id := nodeHeap(t, 4096)

	AllocRoot[node](h, id)
	h.Collect()

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
