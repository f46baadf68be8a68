//go:build !unix

package ospage

import (
	"runtime"
	"unsafe"
)

// fallbackPageSize is used on hosts without a POSIX mmap; it matches the
// common 4 KiB page size assumed elsewhere in the module's sizing math.
const fallbackPageSize = 4096

// MmapPager backs regions with Go-owned memory on non-unix hosts. This is
// the implemented form of the placeholder the teacher repo leaves as a
// comment in internal/runtime/region_alloc.go ("In production, this would
// use mmap() on Unix or VirtualAlloc() on Windows").
type MmapPager struct{}

// NewMmapPager returns the fallback pager.
func NewMmapPager() *MmapPager { return &MmapPager{} }

// DefaultPager returns the pager a Heap uses when none is configured.
func DefaultPager() Pager { return NewMmapPager() }

// PageSize returns the assumed host page size.
func (*MmapPager) PageSize() uintptr { return fallbackPageSize }

// Reserve allocates a page-aligned-sized Go byte slice and keeps it alive
// for the lifetime of the returned region.
func (p *MmapPager) Reserve(size uintptr) (Region, error) {
	if size == 0 {
		return Empty(), nil
	}

	rounded := roundUpPage(size, p.PageSize())
	data := make([]byte, rounded)
	runtime.KeepAlive(data)

	return Region{Base: unsafe.Pointer(&data[0]), Size: rounded, handle: data}, nil
}

// Release frees nothing itself; the Go runtime reclaims the backing
// slice once no Region refers to it.
func (*MmapPager) Release(r Region) error {
	runtime.KeepAlive(r.handle)
	return nil
}
