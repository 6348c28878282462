package mesh

import (
	"fmt"
	"sort"

	"github.com/gekko3d/voxmesh/gpu"
	"github.com/gekko3d/voxmesh/volume"
	"github.com/google/uuid"
)

// Material is the shading input of one quad.
type Material struct {
	Texture int // [0, 256)
	Light   int // [0, 64)
}

// MaterialFunc shades a newly exposed face. The pointer is only valid for the
// duration of the call.
type MaterialFunc[V any] func(p *volume.Pointer[V], face *volume.Face) Material

// TargetFactory creates the device storage for a new chunk mesh.
type TargetFactory func(label string) gpu.BufferTarget

// Logger is the logging surface the mesher needs.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Options struct {
	// Growth sizes the quad buffers. Defaults to required*1.5 + 60.
	Growth gpu.CapacityFunc
	// LabelPrefix prefixes device buffer labels. Defaults to "ChunkMesh".
	LabelPrefix string
	Logger      Logger
}

// Mesher keeps one ChunkMesh per attached chunk and turns batches of voxel
// presence changes into quad additions and removals.
type Mesher[V any] struct {
	newTarget   TargetFactory
	material    MaterialFunc[V]
	growth      gpu.CapacityFunc
	labelPrefix string
	logger      Logger

	meshes map[volume.ChunkPos]*ChunkMesh
}

func NewMesher[V any](newTarget TargetFactory, material MaterialFunc[V], opts Options) *Mesher[V] {
	if opts.Growth == nil {
		opts.Growth = gpu.LinearGrowth(1.5, 6*10)
	}
	if opts.LabelPrefix == "" {
		opts.LabelPrefix = "ChunkMesh"
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Mesher[V]{
		newTarget:   newTarget,
		material:    material,
		growth:      opts.Growth,
		labelPrefix: opts.LabelPrefix,
		logger:      opts.Logger,
		meshes:      make(map[volume.ChunkPos]*ChunkMesh),
	}
}

// Mesh returns the mesh attached to the chunk at pos, or nil.
func (m *Mesher[V]) Mesh(pos volume.ChunkPos) *ChunkMesh { return m.meshes[pos] }

func (m *Mesher[V]) MeshCount() int { return len(m.meshes) }

// Attach creates the mesh for chunk. Voxels already in the chunk are meshed as
// if they had just been placed.
func (m *Mesher[V]) Attach(chunk *volume.Chunk[V]) (*ChunkMesh, error) {
	pos := chunk.Pos()
	if _, ok := m.meshes[pos]; ok {
		panic(fmt.Sprintf("mesh: %v already has a mesh", chunk))
	}
	id := uuid.New()
	cm, err := newChunkMesh(id, pos, m.newTarget(fmt.Sprintf("%s-%s", m.labelPrefix, id)), m.growth)
	if err != nil {
		return nil, fmt.Errorf("mesh: attach %v: %w", chunk, err)
	}
	m.meshes[pos] = cm

	if voxels := chunk.Voxels(); len(voxels) > 0 {
		if err := m.Apply(chunk, voxels); err != nil {
			delete(m.meshes, pos)
			cm.release()
			return nil, err
		}
	}
	return cm, nil
}

// Detach forgets the mesh of the chunk at pos and releases its storage.
func (m *Mesher[V]) Detach(pos volume.ChunkPos) *ChunkMesh {
	cm, ok := m.meshes[pos]
	if !ok {
		return nil
	}
	delete(m.meshes, pos)
	cm.release()
	return cm
}

type pendingFace struct {
	key      volume.FaceKey
	origin   volume.EncodedPos
	face     *volume.Face
	material Material
}

// meshBatch is the planned change set of one mesh. Reserved keys act as
// placeholders for quads about to be created; nothing touches the mesh until
// commit.
type meshBatch struct {
	mesh      *ChunkMesh
	reserved  map[volume.FaceKey]struct{}
	deleted   map[volume.FaceKey]*gpu.Element
	deletions []volume.FaceKey
	additions []pendingFace
}

func newMeshBatch(cm *ChunkMesh) *meshBatch {
	return &meshBatch{
		mesh:     cm,
		reserved: make(map[volume.FaceKey]struct{}),
		deleted:  make(map[volume.FaceKey]*gpu.Element),
	}
}

func (b *meshBatch) live(key volume.FaceKey) bool {
	if _, gone := b.deleted[key]; gone {
		return false
	}
	_, ok := b.mesh.faces[key]
	return ok
}

func addFace[V any](b *meshBatch, p *volume.Pointer[V], face *volume.Face, material MaterialFunc[V]) {
	key := face.Key(p.Encoded())
	if _, ok := b.reserved[key]; ok || b.live(key) {
		return
	}
	b.reserved[key] = struct{}{}
	b.additions = append(b.additions, pendingFace{
		key:      key,
		origin:   p.Encoded(),
		face:     face,
		material: material(p, face),
	})
}

func deleteFace[V any](b *meshBatch, p *volume.Pointer[V], face *volume.Face) {
	key := face.Key(p.Encoded())
	if _, gone := b.deleted[key]; gone {
		return
	}
	elem, ok := b.mesh.faces[key]
	if !ok {
		return
	}
	b.deleted[key] = elem
	b.deletions = append(b.deletions, key)
}

func (b *meshBatch) finalCount() int {
	return b.mesh.set.ElementCount() - len(b.deletions) + len(b.additions)
}

func (b *meshBatch) commit() error {
	for _, key := range b.deletions {
		b.mesh.set.RemoveElement(b.deleted[key])
		delete(b.mesh.faces, key)
	}
	if len(b.additions) == 0 {
		return nil
	}

	words := make([]uint16, len(b.additions)*volume.QuadWords)
	for i, f := range b.additions {
		f.face.AppendQuad(words, i*volume.QuadWords, f.origin, f.material.Texture, f.material.Light)
	}
	refs, err := b.mesh.set.AddElements(encodeWords(words))
	if err != nil {
		return err
	}
	for i, ref := range refs {
		b.mesh.faces[b.additions[i].key] = ref
	}
	return nil
}

// Apply updates the meshes after the voxels at modified (local coordinates of
// chunk) changed presence. The chunk and its neighbors must already hold their
// final state. Quads are added and removed on chunk's mesh and, across chunk
// boundaries, on the meshes of neighbor chunks.
//
// Every touched buffer is grown to its final size before any of them is
// modified, so on error no mesh has changed.
func (m *Mesher[V]) Apply(chunk *volume.Chunk[V], modified []volume.Coord) error {
	own := m.meshes[chunk.Pos()]
	if own == nil {
		panic(fmt.Sprintf("mesh: %v has no mesh attached", chunk))
	}

	batches := map[volume.ChunkPos]*meshBatch{chunk.Pos(): newMeshBatch(own)}
	batchFor := func(c *volume.Chunk[V]) *meshBatch {
		if b, ok := batches[c.Pos()]; ok {
			return b
		}
		cm := m.meshes[c.Pos()]
		if cm == nil {
			m.logger.Debugf("mesh: %v has no mesh, skipping boundary faces", c)
			return nil
		}
		b := newMeshBatch(cm)
		batches[c.Pos()] = b
		return b
	}
	ownBatch := batches[chunk.Pos()]

	root := chunk.Pointer(volume.Coord{})
	for _, local := range modified {
		root.MoveTo(local)
		solid := root.HasVoxel()

		for _, face := range volume.Faces {
			n := root.Neighbor(face.Dir)
			neighborSolid := n != nil && n.HasVoxel()

			switch {
			case solid && neighborSolid:
				// Both sides of a shared face are hidden.
				if b := batchFor(n.Chunk()); b != nil {
					deleteFace(b, n, face.Inverse())
				}
				deleteFace(ownBatch, root, face)
			case solid:
				addFace(ownBatch, root, face, m.material)
			case neighborSolid:
				// The neighbor's side facing this cell is exposed again.
				if b := batchFor(n.Chunk()); b != nil {
					addFace(b, n, face.Inverse(), m.material)
				}
			}
			if !solid {
				deleteFace(ownBatch, root, face)
			}
		}
	}

	order := make([]volume.ChunkPos, 0, len(batches))
	for pos := range batches {
		if pos != chunk.Pos() {
			order = append(order, pos)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })
	order = append([]volume.ChunkPos{chunk.Pos()}, order...)

	for _, pos := range order {
		b := batches[pos]
		if err := b.mesh.set.EnsureCapacity(b.finalCount()); err != nil {
			m.logger.Warnf("mesh: growing chunk%v to %d quads failed: %v", [3]int(pos), b.finalCount(), err)
			return fmt.Errorf("mesh: grow chunk%v: %w", [3]int(pos), err)
		}
	}

	added, removed := 0, 0
	for _, pos := range order {
		b := batches[pos]
		if err := b.commit(); err != nil {
			return fmt.Errorf("mesh: commit chunk%v: %w", [3]int(pos), err)
		}
		added += len(b.additions)
		removed += len(b.deletions)
	}
	m.logger.Debugf("mesh: %v applied %d changed voxels: +%d -%d quads over %d meshes",
		chunk, len(modified), added, removed, len(order))
	return nil
}

// ReShade rewrites the material of the live quad on face of the voxel at p.
// It reports false if that face has no quad.
func (m *Mesher[V]) ReShade(p *volume.Pointer[V], face *volume.Face) bool {
	cm := m.meshes[p.Chunk().Pos()]
	if cm == nil {
		return false
	}
	elem := cm.faces[face.Key(p.Encoded())]
	if elem == nil {
		return false
	}
	mat := m.material(p, face)
	words := make([]uint16, volume.QuadWords)
	face.AppendQuad(words, 0, p.Encoded(), mat.Texture, mat.Light)
	cm.set.SetElement(elem, encodeWords(words))
	return true
}
