package gcheap

import "unsafe"

// walkPointers calls visit once for every pointer-sized slot of payload
// that desc's layout marks as a traceable reference.
func walkPointers(payload unsafe.Pointer, desc *TypeDescriptor, visit func(unsafe.Pointer)) {
	switch layout := desc.Layout.(type) {
	case NoPointers:
		return

	case Bitmap:
		words := desc.Size / ptrSize
		for i := uintptr(0); i < words; i++ {
			if uint64(layout)&(1<<i) == 0 {
				continue
			}

			visit(unsafe.Add(payload, i*ptrSize))
		}

	case Callback:
		for slot := uintptr(0); ; slot++ {
			switch layout.Fn(payload, slot) {
			case WalkPointer:
				visit(unsafe.Add(payload, slot*ptrSize))
			case WalkSkip:
				// nothing live at this slot; continue to the next
			case WalkEnd:
				return
			}
		}
	}
}

// walkArrayPointers applies walkPointers to each of count consecutive
// elements of elemDesc's type starting at elems.
func walkArrayPointers(elems unsafe.Pointer, elemDesc *TypeDescriptor, count uintptr, visit func(unsafe.Pointer)) {
	if _, ok := elemDesc.Layout.(NoPointers); ok {
		return
	}

	for i := uintptr(0); i < count; i++ {
		walkPointers(unsafe.Add(elems, i*elemDesc.Size), elemDesc, visit)
	}
}
