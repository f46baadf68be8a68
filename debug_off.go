//go:build !gcheap_debug

package gcheap

func debugAssertFreshBlock(hdr *blockHeader) {}

func debugAssertTypeID(reg *TypeRegistry, id TypeId) {}
