package platform

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Reservation is a page-aligned range of address space that faults on
// any access. Tables and memories own one each so that faults inside it
// can be attributed to them.
type Reservation struct {
	mem      []byte
	base     uintptr
	size     uintptr
	mu       sync.Mutex
	released bool
}

// Reserve maps size bytes of inaccessible address space, rounded up to
// whole pages.
func Reserve(size uintptr) (*Reservation, error) {
	size = roundToPage(size)
	if size == 0 {
		return nil, fmt.Errorf("reserve: empty range")
	}
	r, err := reserve(size)
	if err != nil {
		return nil, fmt.Errorf("reserve %d bytes: %w", size, err)
	}
	Logger().Debug("address range reserved",
		zap.Uintptr("base", r.base),
		zap.Uintptr("size", r.size))
	return r, nil
}

// Base returns the first address of the range.
func (r *Reservation) Base() uintptr {
	return r.base
}

// Size returns the length of the range in bytes.
func (r *Reservation) Size() uintptr {
	return r.size
}

// Contains reports whether addr lies inside the range.
func (r *Reservation) Contains(addr uintptr) bool {
	return addr >= r.base && addr-r.base < r.size
}

// Release unmaps the range. It is safe to call more than once.
func (r *Reservation) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	if err := release(r); err != nil {
		return fmt.Errorf("release reservation at %#x: %w", r.base, err)
	}
	r.mem = nil
	return nil
}

func roundToPage(n uintptr) uintptr {
	page := uintptr(os.Getpagesize())
	return (n + page - 1) &^ (page - 1)
}
