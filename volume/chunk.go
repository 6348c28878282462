package volume

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkPos is a chunk's position in chunk space: world position divided by
// ChunkExtent, floored.
type ChunkPos [3]int

func (p ChunkPos) Add(c Coord) ChunkPos {
	return ChunkPos{p[0] + c[0], p[1] + c[1], p[2] + c[2]}
}

func (p ChunkPos) Less(o ChunkPos) bool {
	if p[0] != o[0] {
		return p[0] < o[0]
	}
	if p[1] != o[1] {
		return p[1] < o[1]
	}
	return p[2] < o[2]
}

// SplitWorld splits a world-space coordinate into its chunk position and the
// chunk-local coordinate.
func SplitWorld(w Coord) (ChunkPos, Coord) {
	return ChunkPos{
			floorDiv(w[0], ChunkExtent),
			floorDiv(w[1], ChunkExtent),
			floorDiv(w[2], ChunkExtent),
		}, Coord{
			floorMod(w[0], ChunkExtent),
			floorMod(w[1], ChunkExtent),
			floorMod(w[2], ChunkExtent),
		}
}

// JoinWorld is the inverse of SplitWorld.
func JoinWorld(p ChunkPos, local Coord) Coord {
	return Coord{
		p[0]*ChunkExtent + local[0],
		p[1]*ChunkExtent + local[1],
		p[2]*ChunkExtent + local[2],
	}
}

// Chunk stores the voxels of one ChunkExtent^3 block. Presence in the voxel map
// means solid; absence means air.
//
// Neighbors are recorded by position only and resolved through the owning
// world, so a removed neighbor can never be reached through a stale link.
type Chunk[V any] struct {
	pos       ChunkPos
	world     *World[V]
	voxels    map[EncodedPos]V
	neighbors map[Direction]ChunkPos
}

func NewChunk[V any](pos ChunkPos) *Chunk[V] {
	return &Chunk[V]{
		pos:       pos,
		voxels:    make(map[EncodedPos]V),
		neighbors: make(map[Direction]ChunkPos, 6),
	}
}

func (c *Chunk[V]) Pos() ChunkPos { return c.pos }

// Pointer returns a cursor at local, which must lie inside the chunk.
func (c *Chunk[V]) Pointer(local Coord) *Pointer[V] {
	p := &Pointer[V]{chunk: c}
	p.MoveTo(local)
	return p
}

// Neighbor returns the loaded chunk adjacent on d, or nil.
func (c *Chunk[V]) Neighbor(d Direction) *Chunk[V] {
	pos, ok := c.neighbors[d]
	if !ok || c.world == nil {
		return nil
	}
	return c.world.chunks[pos]
}

func (c *Chunk[V]) VoxelCount() int { return len(c.voxels) }

// Voxels returns the local coordinates of all solid voxels in encoded order.
func (c *Chunk[V]) Voxels() []Coord {
	keys := make([]int, 0, len(c.voxels))
	for e := range c.voxels {
		keys = append(keys, int(e))
	}
	sort.Ints(keys)
	out := make([]Coord, len(keys))
	for i, k := range keys {
		out[i] = DecodePos(EncodedPos(k))
	}
	return out
}

// BoundaryVoxels returns the solid voxels on the layer of this chunk that
// touches the neighbor on d.
func (c *Chunk[V]) BoundaryVoxels(d Direction) []Coord {
	f := Faces[d]
	layer := 0
	if f.Sign == 1 {
		layer = ChunkExtent - 1
	}
	var out []Coord
	for _, v := range c.Voxels() {
		if v[f.Axis.Axis] == layer {
			out = append(out, v)
		}
	}
	return out
}

// WorldOrigin is the world-space position of local (0,0,0).
func (c *Chunk[V]) WorldOrigin() mgl32.Vec3 {
	o := JoinWorld(c.pos, Coord{})
	return mgl32.Vec3{float32(o[0]), float32(o[1]), float32(o[2])}
}

func (c *Chunk[V]) String() string {
	return fmt.Sprintf("chunk%v", [3]int(c.pos))
}
