package volume

import (
	"fmt"
	"sort"
)

// World is the arena of loaded chunks keyed by chunk position. It keeps the
// neighbor links of adjacent chunks symmetric.
type World[V any] struct {
	chunks map[ChunkPos]*Chunk[V]
}

func NewWorld[V any]() *World[V] {
	return &World[V]{chunks: make(map[ChunkPos]*Chunk[V])}
}

// PutChunk inserts c and links it with every loaded adjacent chunk, both ways.
func (w *World[V]) PutChunk(c *Chunk[V]) *Chunk[V] {
	if _, exists := w.chunks[c.pos]; exists {
		panic(fmt.Sprintf("volume: %v is already loaded", c))
	}
	if c.world != nil && c.world != w {
		panic(fmt.Sprintf("volume: %v belongs to another world", c))
	}
	c.world = w
	w.chunks[c.pos] = c
	for _, f := range Faces {
		n, ok := w.chunks[c.pos.Add(f.Offset)]
		if !ok {
			continue
		}
		c.neighbors[f.Dir] = n.pos
		n.neighbors[f.Dir.Inverse()] = c.pos
	}
	return c
}

// NewChunk creates an empty chunk at pos and inserts it.
func (w *World[V]) NewChunk(pos ChunkPos) *Chunk[V] {
	return w.PutChunk(NewChunk[V](pos))
}

func (w *World[V]) Chunk(pos ChunkPos) *Chunk[V] {
	return w.chunks[pos]
}

// DeleteChunk removes the chunk at pos and the back links its neighbors hold.
// The removed chunk's own maps are left as they are.
func (w *World[V]) DeleteChunk(pos ChunkPos) *Chunk[V] {
	c, ok := w.chunks[pos]
	if !ok {
		panic(fmt.Sprintf("volume: chunk%v is not loaded", [3]int(pos)))
	}
	delete(w.chunks, pos)
	for _, f := range Faces {
		if n, ok := w.chunks[pos.Add(f.Offset)]; ok {
			delete(n.neighbors, f.Dir.Inverse())
		}
	}
	return c
}

func (w *World[V]) ChunkCount() int { return len(w.chunks) }

// Chunks returns the loaded chunks ordered by position.
func (w *World[V]) Chunks() []*Chunk[V] {
	out := make([]*Chunk[V], 0, len(w.chunks))
	for _, c := range w.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pos.Less(out[j].pos) })
	return out
}

// PointerAt returns a pointer on the world-space cell, or nil when the chunk
// holding it is not loaded.
func (w *World[V]) PointerAt(pos Coord) *Pointer[V] {
	cp, local := SplitWorld(pos)
	c := w.chunks[cp]
	if c == nil {
		return nil
	}
	return c.Pointer(local)
}
