package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUTarget backs a SetBuffer with a WebGPU buffer. Growing allocates a new
// buffer, uploads the full contents and releases the old one; partial writes go
// through the device queue.
type WGPUTarget struct {
	Device *wgpu.Device
	Label  string
	Usage  wgpu.BufferUsage

	buf *wgpu.Buffer
}

// NewWGPUTarget creates a target for vertex data.
func NewWGPUTarget(device *wgpu.Device, label string) *WGPUTarget {
	return &WGPUTarget{
		Device: device,
		Label:  label,
		Usage:  wgpu.BufferUsageVertex,
	}
}

func (t *WGPUTarget) Allocate(capacity int, contents []byte) error {
	size := uint64(capacity)
	if size%4 != 0 {
		size += 4 - (size % 4)
	}
	if size == 0 {
		size = 4
	}

	newBuf, err := t.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            t.Label,
		Size:             size,
		Usage:            t.Usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return fmt.Errorf("%w: create %s buffer of %d bytes: %w", ErrOutOfMemory, t.Label, size, err)
	}
	if len(contents) > 0 {
		t.Device.GetQueue().WriteBuffer(newBuf, 0, contents)
	}

	if t.buf != nil {
		t.buf.Release()
	}
	t.buf = newBuf
	return nil
}

func (t *WGPUTarget) Write(offset int, data []byte) {
	if t.buf == nil {
		panic(fmt.Sprintf("gpu: write to unallocated buffer %s", t.Label))
	}
	t.Device.GetQueue().WriteBuffer(t.buf, uint64(offset), data)
}

// Buffer returns the current buffer to bind as a vertex buffer. It changes
// whenever the SetBuffer grows.
func (t *WGPUTarget) Buffer() *wgpu.Buffer { return t.buf }

func (t *WGPUTarget) Release() {
	if t.buf != nil {
		t.buf.Release()
		t.buf = nil
	}
}
