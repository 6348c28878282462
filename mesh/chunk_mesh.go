package mesh

import (
	"encoding/binary"
	"sort"

	"github.com/gekko3d/voxmesh/gpu"
	"github.com/gekko3d/voxmesh/volume"
	"github.com/google/uuid"
)

// ElementSize is the byte size of one quad: six vertices of two uint16 words.
const ElementSize = volume.QuadWords * 2

// ChunkMesh is the visible surface of one chunk: a set buffer of quads and the
// registry mapping each live quad's FaceKey to its element.
type ChunkMesh struct {
	ID  uuid.UUID
	Pos volume.ChunkPos

	target gpu.BufferTarget
	set    *gpu.SetBuffer
	faces  map[volume.FaceKey]*gpu.Element
}

func newChunkMesh(id uuid.UUID, pos volume.ChunkPos, target gpu.BufferTarget, growth gpu.CapacityFunc) (*ChunkMesh, error) {
	set, err := gpu.NewSetBuffer(target, ElementSize, growth)
	if err != nil {
		return nil, err
	}
	return &ChunkMesh{
		ID:     id,
		Pos:    pos,
		target: target,
		set:    set,
		faces:  make(map[volume.FaceKey]*gpu.Element),
	}, nil
}

// QuadCount is the number of visible quads.
func (m *ChunkMesh) QuadCount() int { return m.set.ElementCount() }

// VertexCount is the number of vertices to draw as a triangle list.
func (m *ChunkMesh) VertexCount() int { return m.set.ElementCount() * volume.QuadVertices }

func (m *ChunkMesh) Target() gpu.BufferTarget { return m.target }
func (m *ChunkMesh) Set() *gpu.SetBuffer      { return m.set }

func (m *ChunkMesh) HasFace(key volume.FaceKey) bool {
	_, ok := m.faces[key]
	return ok
}

// Face returns the element holding the quad for key, or nil.
func (m *ChunkMesh) Face(key volume.FaceKey) *gpu.Element { return m.faces[key] }

// FaceKeys returns the keys of all live quads in ascending order.
func (m *ChunkMesh) FaceKeys() []volume.FaceKey {
	keys := make([]volume.FaceKey, 0, len(m.faces))
	for k := range m.faces {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (m *ChunkMesh) release() {
	if r, ok := m.target.(interface{ Release() }); ok {
		r.Release()
	}
}

func encodeWords(words []uint16) []byte {
	out := make([]byte, len(words)*2)
	for i, w := range words {
		binary.LittleEndian.PutUint16(out[i*2:], w)
	}
	return out
}

// DecodeWords reads little-endian vertex words back from element bytes.
func DecodeWords(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return out
}
