package gcheap

import (
	"testing"
	"unsafe"
)

func fakePtr(n int) unsafe.Pointer {
	v := new(int)
	*v = n
	return unsafe.Pointer(v)
}

func TestHandleTableAddRemoveReuse(t *testing.T) {
	table := newHandleTable()

	i0 := table.add(fakePtr(0))
	i1 := table.add(fakePtr(1))

	if i0 == i1 {
		t.Fatalf("expected distinct indices, got %d and %d", i0, i1)
	}

	table.remove(i0)

	i2 := table.add(fakePtr(2))
	if i2 != i0 {
		t.Fatalf("expected the freed index %d to be reused, got %d", i0, i2)
	}

	if table.liveCount() != 2 {
		t.Fatalf("liveCount() = %d, want 2", table.liveCount())
	}
}

func TestHandleTableForEachSkipsFreedSlots(t *testing.T) {
	table := newHandleTable()

	i0 := table.add(fakePtr(10))
	table.add(fakePtr(20))
	table.remove(i0)

	var visited int
	table.forEach(func(*unsafe.Pointer) { visited++ })

	if visited != 1 {
		t.Fatalf("forEach visited %d slots, want 1", visited)
	}
}

func TestHandleTableForEachCanRewriteInPlace(t *testing.T) {
	table := newHandleTable()

	replacement := fakePtr(99)
	table.add(fakePtr(1))

	table.forEach(func(slot *unsafe.Pointer) { *slot = replacement })

	if table.get(0) != replacement {
		t.Fatal("forEach mutation did not persist")
	}
}
