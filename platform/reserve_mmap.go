//go:build linux || darwin || freebsd || netbsd || openbsd

package platform

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func reserve(size uintptr) (*Reservation, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, err
	}
	return &Reservation{
		mem:  mem,
		base: uintptr(unsafe.Pointer(unsafe.SliceData(mem))),
		size: uintptr(len(mem)),
	}, nil
}

func release(r *Reservation) error {
	return unix.Munmap(r.mem)
}

// Faulting reports whether accesses inside a Reservation raise a fault
// on this platform.
const Faulting = true
