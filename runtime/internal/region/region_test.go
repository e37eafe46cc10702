package region

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0x1000, 0x1000, OwnerTable))
	require.NoError(t, r.Add(0x4000, 0x2000, OwnerMemory))

	tests := []struct {
		name  string
		addr  uintptr
		owner Owner
		found bool
	}{
		{"below everything", 0x0fff, 0, false},
		{"table start", 0x1000, OwnerTable, true},
		{"table end", 0x1fff, OwnerTable, true},
		{"gap", 0x2000, 0, false},
		{"memory start", 0x4000, OwnerMemory, true},
		{"memory middle", 0x5123, OwnerMemory, true},
		{"past memory", 0x6000, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, ok := r.Lookup(tt.addr)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.owner, owner)
		})
	}
}

func TestRegistry_RejectsOverlap(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0x2000, 0x1000, OwnerMemory))

	assert.Error(t, r.Add(0x2800, 0x100, OwnerTable))
	assert.Error(t, r.Add(0x1800, 0x1000, OwnerTable))
	assert.Error(t, r.Add(0x1000, 0x4000, OwnerTable))
	assert.NoError(t, r.Add(0x1000, 0x1000, OwnerTable))
	assert.NoError(t, r.Add(0x3000, 0x1000, OwnerTable))
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_RejectsEmptyAndWrapping(t *testing.T) {
	r := New()
	assert.Error(t, r.Add(0x1000, 0, OwnerTable))
	assert.Error(t, r.Add(^uintptr(0)-1, 0x10, OwnerTable))
}

func TestRegistry_Remove(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(0x1000, 0x1000, OwnerTable))
	r.Remove(0x1000)

	_, ok := r.Lookup(0x1800)
	assert.False(t, ok)
	assert.Zero(t, r.Len())

	r.Remove(0x9000)
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	r := New()
	for i := uintptr(0); i < 16; i++ {
		require.NoError(t, r.Add(0x10000*(i+1), 0x1000, Owner(1+i%2)))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uintptr(0); i < 16; i++ {
				owner, ok := r.Lookup(0x10000*(i+1) + 0x10)
				assert.True(t, ok)
				assert.Equal(t, Owner(1+i%2), owner)
			}
		}()
	}
	wg.Wait()
}

func TestOwner_String(t *testing.T) {
	assert.Equal(t, "table", OwnerTable.String())
	assert.Equal(t, "memory", OwnerMemory.String())
	assert.Equal(t, "none", Owner(0).String())
}
