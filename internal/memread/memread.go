// Package memread provides bounds-checked reads of raw memory in the current
// address space. It backs self-inspection of suspended threads, where the
// walker dereferences saved stack and anchor addresses directly.
package memread

import "unsafe"

// Copy copies byteLen bytes starting at ptr into dst, returning false if the
// request is malformed. The caller is responsible for ensuring ptr refers to
// readable memory; a wild pointer still faults.
func Copy(dst []byte, ptr uintptr, byteLen int) bool {
	return copyInner(dst, ptr, byteLen)
}

//go:noinline
//go:nosplit
func copyInner(dst []byte, ptr uintptr, byteLen int) bool {
	// unsafe.Slice overflow checking can lead to a static panic if ptr is
	// close to overflowing.
	if ptr+uintptr(byteLen) < ptr {
		return false
	}
	if len(dst) < byteLen {
		return false
	}
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), byteLen))
	return true
}

// Word reads a pointer-sized value at addr+off.
//
//go:nosplit
func Word(addr uintptr, off int) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr + uintptr(off)))
}

// Byte reads a single byte at addr+off.
//
//go:nosplit
func Byte(addr uintptr, off int) byte {
	return *(*byte)(unsafe.Pointer(addr + uintptr(off)))
}

// Int reads a 32-bit value at addr+off.
//
//go:nosplit
func Int(addr uintptr, off int) int32 {
	return *(*int32)(unsafe.Pointer(addr + uintptr(off)))
}
