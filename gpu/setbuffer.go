package gpu

import (
	"fmt"
	"math"
)

// CapacityFunc returns the preferred capacity, in elements, for a buffer that
// must hold required elements. Results below required are raised to required.
type CapacityFunc func(required int) int

// LinearGrowth returns required*factor + slack.
func LinearGrowth(factor float64, slack int) CapacityFunc {
	return func(required int) int {
		return int(math.Floor(float64(required)*factor)) + slack
	}
}

// Element is the CPU mirror of one element stored in a SetBuffer.
type Element struct {
	owner  *SetBuffer
	index  int
	offset int
	data   []byte
}

// Offset is the element's current byte offset in the device buffer.
func (e *Element) Offset() int { return e.offset }

// Data is the last payload written for the element. It must not be modified.
func (e *Element) Data() []byte { return e.data }

// Live reports whether the element is still stored.
func (e *Element) Live() bool { return e.owner != nil }

// SetBuffer is an unordered set of fixed-size elements packed at the front of a
// device buffer. Removal moves the last element into the hole, so the live
// elements always occupy [0, ElementCount*ElementSize).
//
// The target must not be shared and all calls must come from one goroutine.
type SetBuffer struct {
	target   BufferTarget
	elemSize int
	capacity int
	ideal    CapacityFunc

	cursor int
	mirror []*Element
}

// NewSetBuffer allocates the initial storage on target, sized by ideal(0).
func NewSetBuffer(target BufferTarget, elemSize int, ideal CapacityFunc) (*SetBuffer, error) {
	if elemSize <= 0 {
		panic(fmt.Sprintf("gpu: element size must be positive, got %d", elemSize))
	}
	s := &SetBuffer{
		target:   target,
		elemSize: elemSize,
		ideal:    ideal,
	}
	capacity := s.idealBytes(0)
	if err := target.Allocate(capacity, nil); err != nil {
		return nil, err
	}
	s.capacity = capacity
	return s, nil
}

func (s *SetBuffer) ElementSize() int  { return s.elemSize }
func (s *SetBuffer) ElementCount() int { return len(s.mirror) }

// Capacity is the allocated size in bytes.
func (s *SetBuffer) Capacity() int { return s.capacity }

// Len is the number of bytes in use.
func (s *SetBuffer) Len() int { return s.cursor }

func (s *SetBuffer) Target() BufferTarget { return s.target }

// Elements returns the live elements in buffer order.
func (s *SetBuffer) Elements() []*Element {
	return append([]*Element(nil), s.mirror...)
}

func (s *SetBuffer) idealBytes(count int) int {
	n := count
	if s.ideal != nil {
		if c := s.ideal(count); c > n {
			n = c
		}
	}
	return n * s.elemSize
}

// AddElements appends every element of batch, whose length must be a multiple
// of the element size, and returns their handles in batch order. If the batch
// fits it is uploaded with one partial write; otherwise the buffer is rebuilt
// at the capacity chosen by the CapacityFunc with one full write. When that
// allocation fails nothing changes and the error wraps ErrOutOfMemory.
func (s *SetBuffer) AddElements(batch []byte) ([]*Element, error) {
	if len(batch)%s.elemSize != 0 {
		panic(fmt.Sprintf("gpu: batch of %d bytes is not a multiple of element size %d", len(batch), s.elemSize))
	}
	n := len(batch) / s.elemSize
	if n == 0 {
		return nil, nil
	}

	owned := append([]byte(nil), batch...)
	root := s.cursor
	base := len(s.mirror)
	refs := make([]*Element, n)
	for i := range refs {
		lo, hi := i*s.elemSize, (i+1)*s.elemSize
		refs[i] = &Element{
			owner:  s,
			index:  base + i,
			offset: root + lo,
			data:   owned[lo:hi:hi],
		}
	}
	s.mirror = append(s.mirror, refs...)
	s.cursor += len(owned)

	if s.cursor <= s.capacity {
		s.target.Write(root, owned)
		return refs, nil
	}

	if err := s.rebuild(s.idealBytes(len(s.mirror))); err != nil {
		clear(s.mirror[base:])
		s.mirror = s.mirror[:base]
		s.cursor = root
		for _, r := range refs {
			r.owner = nil
		}
		return nil, err
	}
	return refs, nil
}

// RemoveElement deletes e by moving the last element into its slot. The
// allocation never shrinks.
func (s *SetBuffer) RemoveElement(e *Element) {
	if e.owner != s {
		panic("gpu: element is not stored in this set")
	}
	lastIdx := len(s.mirror) - 1
	last := s.mirror[lastIdx]
	if last != e {
		s.target.Write(e.offset, last.data)
	}
	last.offset = e.offset
	last.index = e.index
	s.mirror[e.index] = last

	s.mirror[lastIdx] = nil
	s.mirror = s.mirror[:lastIdx]
	s.cursor -= s.elemSize
	e.owner = nil
}

// SetElement overwrites e's payload in place.
func (s *SetBuffer) SetElement(e *Element, data []byte) {
	if e.owner != s {
		panic("gpu: element is not stored in this set")
	}
	if len(data) != s.elemSize {
		panic(fmt.Sprintf("gpu: payload of %d bytes, element size is %d", len(data), s.elemSize))
	}
	owned := append([]byte(nil), data...)
	s.target.Write(e.offset, owned)
	e.data = owned
}

// EnsureCapacity grows the buffer so that it holds at least count elements.
// It does nothing if the buffer is already large enough.
func (s *SetBuffer) EnsureCapacity(count int) error {
	if count*s.elemSize <= s.capacity {
		return nil
	}
	return s.rebuild(s.idealBytes(count))
}

// ResizeCapacity reallocates the buffer to the ideal capacity for the current
// element count. It never goes below the bytes in use.
func (s *SetBuffer) ResizeCapacity() error {
	capacity := s.idealBytes(len(s.mirror))
	if capacity == s.capacity {
		return nil
	}
	return s.rebuild(capacity)
}

func (s *SetBuffer) rebuild(capacity int) error {
	contents := make([]byte, 0, s.cursor)
	for _, e := range s.mirror {
		contents = append(contents, e.data...)
	}
	if err := s.target.Allocate(capacity, contents); err != nil {
		return err
	}
	s.capacity = capacity
	return nil
}
