package mesh

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/voxmesh/volume"
)

// VertexStride is the byte size of one vertex: a position word and a material
// word.
const VertexStride = volume.VertexWords * 2

// VertexLayout describes chunk mesh vertices for a render pipeline. Both words
// arrive in one Uint16x2 attribute at location: x is the packed position and
// face orientation, y the packed material and uv. Draw VertexCount vertices as
// a triangle list.
func VertexLayout(location uint32) wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{
				Format:         wgpu.VertexFormatUint16x2,
				Offset:         0,
				ShaderLocation: location,
			},
		},
	}
}
