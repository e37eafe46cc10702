//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package platform

import "unsafe"

// Without mmap the range is ordinary heap memory: it still has a unique
// address for ownership lookups but accesses do not fault.
func reserve(size uintptr) (*Reservation, error) {
	mem := make([]byte, size)
	return &Reservation{
		mem:  mem,
		base: uintptr(unsafe.Pointer(unsafe.SliceData(mem))),
		size: size,
	}, nil
}

func release(*Reservation) error {
	return nil
}

// Faulting reports whether accesses inside a Reservation raise a fault
// on this platform.
const Faulting = false
