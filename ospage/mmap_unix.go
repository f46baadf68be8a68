//go:build unix

package ospage

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapPager reserves anonymous memory straight from the kernel via mmap,
// the same syscall layer the teacher's asyncio files reach for through
// golang.org/x/sys/unix rather than hand-rolling syscall numbers.
type MmapPager struct{}

// NewMmapPager returns the POSIX mmap-backed pager.
func NewMmapPager() *MmapPager { return &MmapPager{} }

// DefaultPager returns the pager a Heap uses when none is configured.
func DefaultPager() Pager { return NewMmapPager() }

// PageSize returns the host page size.
func (*MmapPager) PageSize() uintptr { return uintptr(os.Getpagesize()) }

// Reserve maps a fresh, zeroed, readable/writable anonymous region.
func (p *MmapPager) Reserve(size uintptr) (Region, error) {
	if size == 0 {
		return Empty(), nil
	}

	rounded := roundUpPage(size, p.PageSize())

	data, err := unix.Mmap(-1, 0, int(rounded), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return Region{}, fmt.Errorf("ospage: mmap %d bytes: %w", rounded, err)
	}

	return Region{Base: unsafe.Pointer(&data[0]), Size: rounded, handle: data}, nil
}

// Release unmaps a region previously returned by Reserve.
func (*MmapPager) Release(r Region) error {
	if r.Empty() {
		return nil
	}

	data, ok := r.handle.([]byte)
	if !ok {
		return fmt.Errorf("ospage: region not owned by MmapPager")
	}

	return unix.Munmap(data)
}
