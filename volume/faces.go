package volume

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	QuadVertices = 6
	VertexWords  = 2
	// QuadWords is the number of uint16 words AppendQuad writes.
	QuadWords = QuadVertices * VertexWords
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Direction names one of the six cube faces. Opposite directions differ only
// in the lowest bit.
type Direction int

const (
	NegX Direction = iota
	PosX
	NegY
	PosY
	NegZ
	PosZ
)

func (d Direction) Inverse() Direction { return d ^ 1 }

func (d Direction) String() string {
	switch d {
	case NegX:
		return "-x"
	case PosX:
		return "+x"
	case NegY:
		return "-y"
	case PosY:
		return "+y"
	case NegZ:
		return "-z"
	case PosZ:
		return "+z"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// FaceKey identifies one quad: its axis, its sign and the encoded corner it
// is anchored at.
type FaceKey int

type axisVertex struct {
	pos int
	uv  int
}

// FaceAxis holds the vertex template shared by the two faces on one axis.
type FaceAxis struct {
	Axis     Axis
	unit     int
	vertices [QuadVertices]axisVertex
}

type vertexTemplate struct {
	pos Coord
	uv  [2]int
}

func newFaceAxis(axis Axis, tmpl [QuadVertices]vertexTemplate) *FaceAxis {
	a := &FaceAxis{Axis: axis, unit: VertexCodec.Multiplier(int(axis))}
	for i, v := range tmpl {
		a.vertices[i] = axisVertex{
			pos: int(EncodePos(v.pos)),
			uv:  MaterialCodec.Encode(v.uv[0], v.uv[1]),
		}
	}
	return a
}

func (a *FaceAxis) anchor(origin EncodedPos, sign int) int {
	base := int(origin) + VertexCodec.EncodeAt(3, int(a.Axis), sign)
	if sign == 1 {
		base += a.unit
	}
	return base
}

// AppendQuad writes the two triangles of the quad anchored at origin into
// dst[offset:offset+QuadWords]. Each vertex is a position word followed by a
// material word. Winding is mirrored between sign 0 and 1 so both are front
// facing.
func (a *FaceAxis) AppendQuad(dst []uint16, offset int, origin EncodedPos, sign int, texture, light int) {
	pos := a.anchor(origin, sign)
	mat := MaterialCodec.EncodeAt(2, light, texture)

	order := [QuadVertices]int{0, 2, 1, 3, 5, 4}
	if sign == 1 {
		order = [QuadVertices]int{0, 1, 2, 3, 4, 5}
	}
	for i, vi := range order {
		v := a.vertices[vi]
		dst[offset+i*VertexWords] = uint16(pos + v.pos)
		dst[offset+i*VertexWords+1] = uint16(mat + v.uv)
	}
}

// FaceKey returns the key of the quad on this axis anchored at origin.
func (a *FaceAxis) FaceKey(origin EncodedPos, sign int) FaceKey {
	return FaceKey(a.anchor(origin, sign))
}

var (
	faceAxisX = newFaceAxis(AxisX, [QuadVertices]vertexTemplate{
		{Coord{0, 0, 0}, [2]int{0, 1}},
		{Coord{0, 1, 1}, [2]int{1, 0}},
		{Coord{0, 0, 1}, [2]int{1, 1}},

		{Coord{0, 0, 0}, [2]int{0, 1}},
		{Coord{0, 1, 0}, [2]int{0, 0}},
		{Coord{0, 1, 1}, [2]int{1, 0}},
	})
	faceAxisY = newFaceAxis(AxisY, [QuadVertices]vertexTemplate{
		{Coord{0, 0, 0}, [2]int{0, 0}},
		{Coord{1, 0, 1}, [2]int{1, 1}},
		{Coord{1, 0, 0}, [2]int{1, 0}},

		{Coord{0, 0, 0}, [2]int{0, 0}},
		{Coord{0, 0, 1}, [2]int{0, 1}},
		{Coord{1, 0, 1}, [2]int{1, 1}},
	})
	faceAxisZ = newFaceAxis(AxisZ, [QuadVertices]vertexTemplate{
		{Coord{0, 0, 0}, [2]int{0, 1}},
		{Coord{1, 0, 0}, [2]int{1, 1}},
		{Coord{1, 1, 0}, [2]int{1, 0}},

		{Coord{0, 0, 0}, [2]int{0, 1}},
		{Coord{1, 1, 0}, [2]int{1, 0}},
		{Coord{0, 1, 0}, [2]int{0, 0}},
	})
)

// Face is one immutable entry of the face table.
type Face struct {
	Dir Direction
	// Offset is the coordinate delta towards the neighboring cell.
	Offset Coord
	// EncodedDelta is Offset in encoded form. Only valid while the move stays
	// inside the chunk.
	EncodedDelta int
	Axis         *FaceAxis
	Sign         int
}

// Inverse returns the face pointing the opposite way.
func (f *Face) Inverse() *Face { return Faces[f.Dir.Inverse()] }

// AppendQuad writes this face of the voxel at origin. See FaceAxis.AppendQuad.
func (f *Face) AppendQuad(dst []uint16, offset int, origin EncodedPos, texture, light int) {
	f.Axis.AppendQuad(dst, offset, origin, f.Sign, texture, light)
}

// Key returns the FaceKey of this face of the voxel at origin.
func (f *Face) Key(origin EncodedPos) FaceKey {
	return f.Axis.FaceKey(origin, f.Sign)
}

func (f *Face) Normal() mgl32.Vec3 {
	return mgl32.Vec3{float32(f.Offset[0]), float32(f.Offset[1]), float32(f.Offset[2])}
}

func (f *Face) String() string { return f.Dir.String() }

func newFace(dir Direction, axis *FaceAxis) *Face {
	sign := int(dir) & 1
	step := 1
	if sign == 0 {
		step = -1
	}
	var off Coord
	off[axis.Axis] = step
	return &Face{
		Dir:          dir,
		Offset:       off,
		EncodedDelta: step * axis.unit,
		Axis:         axis,
		Sign:         sign,
	}
}

// Faces is indexed by Direction.
var Faces = [6]*Face{
	newFace(NegX, faceAxisX),
	newFace(PosX, faceAxisX),
	newFace(NegY, faceAxisY),
	newFace(PosY, faceAxisY),
	newFace(NegZ, faceAxisZ),
	newFace(PosZ, faceAxisZ),
}

// FaceTowards returns the face moving along axis in the direction of step's sign.
func FaceTowards(axis Axis, positive bool) *Face {
	d := Direction(int(axis) * 2)
	if positive {
		d++
	}
	return Faces[d]
}
