// Package region tracks which reserved address ranges belong to tables
// and which to memories.
package region

import (
	"fmt"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// Owner classifies the object a range was reserved for.
type Owner uint8

const (
	OwnerTable Owner = iota + 1
	OwnerMemory
)

func (o Owner) String() string {
	switch o {
	case OwnerTable:
		return "table"
	case OwnerMemory:
		return "memory"
	default:
		return "none"
	}
}

type span struct {
	end   uint64 // exclusive
	owner Owner
}

// Registry is an ordered set of non-overlapping ranges keyed by base
// address. Lookups take a read lock, so fault attribution on one
// goroutine never blocks another.
type Registry struct {
	tree *redblacktree.Tree
	mu   sync.RWMutex
}

func New() *Registry {
	return &Registry{tree: redblacktree.NewWith(utils.UInt64Comparator)}
}

// Add registers [base, base+size) for owner.
func (r *Registry) Add(base, size uintptr, owner Owner) error {
	if size == 0 {
		return fmt.Errorf("region: empty range at %#x", base)
	}
	lo := uint64(base)
	hi := lo + uint64(size)
	if hi < lo {
		return fmt.Errorf("region: range at %#x overflows the address space", base)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The closest range starting below hi is the only one that can overlap.
	if node, ok := r.tree.Floor(hi - 1); ok {
		if node.Value.(span).end > lo {
			return fmt.Errorf("region: [%#x, %#x) overlaps %s range at %#x",
				lo, hi, node.Value.(span).owner, node.Key.(uint64))
		}
	}
	r.tree.Put(lo, span{end: hi, owner: owner})
	return nil
}

// Remove unregisters the range starting at base.
func (r *Registry) Remove(base uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree.Remove(uint64(base))
}

// Lookup returns the owner of the range containing addr.
func (r *Registry) Lookup(addr uintptr) (Owner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.tree.Floor(uint64(addr))
	if !ok {
		return 0, false
	}
	s := node.Value.(span)
	if uint64(addr) >= s.end {
		return 0, false
	}
	return s.owner, true
}

// Len returns the number of registered ranges.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tree.Size()
}
