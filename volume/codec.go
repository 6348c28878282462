package volume

import "fmt"

const (
	// ChunkExtent is the number of voxels along each axis of a chunk.
	ChunkExtent = 16

	// PositionRadix is one larger than ChunkExtent so the far corner of the
	// last voxel (coordinate 16) is still encodable in a vertex.
	PositionRadix = ChunkExtent + 1
)

// Codec maps a fixed list of bounded integer parts onto a single scalar using a
// mixed radix, least significant part first. Radices are fixed at construction.
type Codec struct {
	radices     []int
	multipliers []int
	span        int
}

func NewCodec(radices ...int) Codec {
	c := Codec{
		radices:     append([]int(nil), radices...),
		multipliers: make([]int, len(radices)),
	}
	m := 1
	for i, r := range radices {
		if r <= 0 {
			panic(fmt.Sprintf("volume: codec part %d has non-positive radix %d", i, r))
		}
		c.multipliers[i] = m
		m *= r
	}
	c.span = m
	return c
}

// Encode encodes parts starting at the least significant part.
func (c Codec) Encode(parts ...int) int {
	return c.EncodeAt(0, parts...)
}

// EncodeAt encodes parts starting at part index offset. Parts outside
// [0, radix) are a contract violation and panic.
func (c Codec) EncodeAt(offset int, parts ...int) int {
	if offset < 0 || offset+len(parts) > len(c.multipliers) {
		panic(fmt.Sprintf("volume: codec has %d parts, cannot encode %d parts at offset %d", len(c.multipliers), len(parts), offset))
	}
	v := 0
	for i, p := range parts {
		idx := offset + i
		if p < 0 || p >= c.radices[idx] {
			panic(fmt.Sprintf("volume: codec part %d value %d outside [0, %d)", idx, p, c.radices[idx]))
		}
		v += p * c.multipliers[idx]
	}
	return v
}

// Decode splits v back into its parts.
func (c Codec) Decode(v int) []int {
	if v < 0 || v >= c.span {
		panic(fmt.Sprintf("volume: codec value %d outside [0, %d)", v, c.span))
	}
	parts := make([]int, len(c.radices))
	for i, r := range c.radices {
		parts[i] = v % r
		v /= r
	}
	return parts
}

// Multiplier returns the scalar weight of part i.
func (c Codec) Multiplier(i int) int { return c.multipliers[i] }

// Span is the exclusive upper bound of encoded values.
func (c Codec) Span() int { return c.span }

// Parts returns the number of parts.
func (c Codec) Parts() int { return len(c.radices) }

var (
	// VertexCodec packs the position word of a vertex: x, y, z in [0, 16],
	// then the face axis and the face sign.
	VertexCodec = NewCodec(PositionRadix, PositionRadix, PositionRadix, 4, 2)

	// MaterialCodec packs the material word of a vertex: uv.x, uv.y, light, texture.
	MaterialCodec = NewCodec(2, 2, 64, 256)
)

// Coord is an integer triple. In chunk-local space each axis lies in
// [0, ChunkExtent); in world space it is unbounded.
type Coord [3]int

func (c Coord) Add(o Coord) Coord {
	return Coord{c[0] + o[0], c[1] + o[1], c[2] + o[2]}
}

// InChunk reports whether c is a legal chunk-local coordinate.
func (c Coord) InChunk() bool {
	return c[0] >= 0 && c[0] < ChunkExtent &&
		c[1] >= 0 && c[1] < ChunkExtent &&
		c[2] >= 0 && c[2] < ChunkExtent
}

// EncodedPos is the scalar form of a chunk-local coordinate.
type EncodedPos int

// EncodePos encodes a position with every axis in [0, PositionRadix).
func EncodePos(c Coord) EncodedPos {
	return EncodedPos(VertexCodec.Encode(c[0], c[1], c[2]))
}

// DecodePos is the inverse of EncodePos.
func DecodePos(e EncodedPos) Coord {
	p := VertexCodec.Decode(int(e))
	return Coord{p[0], p[1], p[2]}
}

func floorDiv(v, m int) int {
	q := v / m
	if v%m < 0 {
		q--
	}
	return q
}

func floorMod(v, m int) int {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
