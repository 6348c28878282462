package gpu

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned when the device refuses an allocation.
var ErrOutOfMemory = errors.New("gpu: out of device memory")

// BufferTarget is the device storage managed by one SetBuffer. A target must
// not be written by anything else while a SetBuffer owns it.
type BufferTarget interface {
	// Allocate replaces the storage with a new allocation of capacity bytes whose
	// leading bytes are contents. On error the previous storage is left intact.
	Allocate(capacity int, contents []byte) error
	// Write copies data into the current storage at offset.
	Write(offset int, data []byte)
}

// HostTarget keeps the buffer in CPU memory. It is used for headless meshing
// and as the reference device in tests. A positive Limit makes allocations
// above that many bytes fail with ErrOutOfMemory.
type HostTarget struct {
	Limit int

	data        []byte
	allocations int
	writes      int
}

func NewHostTarget(limit int) *HostTarget {
	return &HostTarget{Limit: limit}
}

func (t *HostTarget) Allocate(capacity int, contents []byte) error {
	if t.Limit > 0 && capacity > t.Limit {
		return fmt.Errorf("%w: %d bytes requested, limit is %d", ErrOutOfMemory, capacity, t.Limit)
	}
	if len(contents) > capacity {
		panic(fmt.Sprintf("gpu: %d bytes of contents do not fit capacity %d", len(contents), capacity))
	}
	data := make([]byte, capacity)
	copy(data, contents)
	t.data = data
	t.allocations++
	return nil
}

func (t *HostTarget) Write(offset int, data []byte) {
	if offset < 0 || offset+len(data) > len(t.data) {
		panic(fmt.Sprintf("gpu: write of %d bytes at %d outside buffer of %d bytes", len(data), offset, len(t.data)))
	}
	copy(t.data[offset:], data)
	t.writes++
}

// Bytes returns the whole allocation, including unused capacity.
func (t *HostTarget) Bytes() []byte { return t.data }

func (t *HostTarget) Capacity() int    { return len(t.data) }
func (t *HostTarget) Allocations() int { return t.allocations }

// Writes counts partial writes, which excludes the contents of Allocate.
func (t *HostTarget) Writes() int { return t.writes }
