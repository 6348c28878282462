package volume

import "fmt"

// Pointer is a cursor on one voxel cell of a chunk. All reads and writes go
// straight to the chunk's voxel map; nothing else is updated.
type Pointer[V any] struct {
	chunk   *Chunk[V]
	pos     Coord
	encoded EncodedPos
}

func (p *Pointer[V]) Chunk() *Chunk[V]    { return p.chunk }
func (p *Pointer[V]) Pos() Coord          { return p.pos }
func (p *Pointer[V]) Encoded() EncodedPos { return p.encoded }

// World returns the world-space coordinate of the cell.
func (p *Pointer[V]) World() Coord { return JoinWorld(p.chunk.pos, p.pos) }

// MoveTo repositions the pointer inside the same chunk.
func (p *Pointer[V]) MoveTo(local Coord) {
	if !local.InChunk() {
		panic(fmt.Sprintf("volume: local coordinate %v outside chunk extent %d", local, ChunkExtent))
	}
	p.pos = local
	p.encoded = EncodePos(local)
}

func (p *Pointer[V]) HasVoxel() bool {
	_, ok := p.chunk.voxels[p.encoded]
	return ok
}

func (p *Pointer[V]) Read() (V, bool) {
	v, ok := p.chunk.voxels[p.encoded]
	return v, ok
}

// Write stores v, creating the voxel if the cell was air.
func (p *Pointer[V]) Write(v V) {
	p.chunk.voxels[p.encoded] = v
}

// Erase turns the cell into air. Erasing air is a no-op.
func (p *Pointer[V]) Erase() {
	delete(p.chunk.voxels, p.encoded)
}

// Neighbor returns a new pointer on the cell adjacent on d. Inside the chunk
// this is a constant encoded offset; across the boundary the coordinate is
// wrapped and the neighbor chunk is looked up. Nil means the neighbor chunk is
// not loaded, which is different from a loaded neighbor holding air.
func (p *Pointer[V]) Neighbor(d Direction) *Pointer[V] {
	f := Faces[d]
	axis := f.Axis.Axis
	next := p.pos.Add(f.Offset)
	if v := next[axis]; v >= 0 && v < ChunkExtent {
		return &Pointer[V]{chunk: p.chunk, pos: next, encoded: p.encoded + EncodedPos(f.EncodedDelta)}
	}
	chunk := p.chunk.Neighbor(d)
	if chunk == nil {
		return nil
	}
	next[axis] = floorMod(next[axis], ChunkExtent)
	return &Pointer[V]{chunk: chunk, pos: next, encoded: EncodePos(next)}
}

func (p *Pointer[V]) String() string {
	return fmt.Sprintf("%v%v", p.chunk, [3]int(p.pos))
}
