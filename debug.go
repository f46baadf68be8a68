//go:build gcheap_debug

package gcheap

import "github.com/orizon-lang/preciseheap/internal/fault"

func debugAssertFreshBlock(hdr *blockHeader) {
	if hdr.forward != nil {
		panic(fault.Internal("freshly bump-allocated block already carries a forwarding pointer"))
	}
}

func debugAssertTypeID(reg *TypeRegistry, id TypeId) {
	if id == 0 || int(id) > len(reg.descs)-1 {
		panic(fault.Internal("allocation referenced an unregistered TypeId"))
	}
}
