package voxmesh

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/voxmesh/gpu"
	"github.com/gekko3d/voxmesh/mesh"
	"github.com/gekko3d/voxmesh/volume"
	"github.com/gekko3d/voxmesh/voxfile"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrChunkNotLoaded = errors.New("voxmesh: chunk not loaded")

// VoxelEdit sets the voxel at a world-space position.
type VoxelEdit[V any] struct {
	Pos   volume.Coord
	Value V
}

type Stats struct {
	Chunks        int
	Meshes        int
	Voxels        int
	Quads         int
	CapacityBytes int
	// PendingChunks is the number of chunks whose last edit has not been meshed
	// because a buffer could not grow. See Engine.Flush.
	PendingChunks int
}

// HostTargets returns a factory of CPU-side mesh buffers. A positive limit caps
// every buffer at that many bytes.
func HostTargets(limit int) mesh.TargetFactory {
	return func(string) gpu.BufferTarget { return gpu.NewHostTarget(limit) }
}

// WGPUTargets returns a factory of vertex buffers on device.
func WGPUTargets(device *wgpu.Device) mesh.TargetFactory {
	return func(label string) gpu.BufferTarget { return gpu.NewWGPUTarget(device, label) }
}

// Engine owns a voxel world and keeps one mesh per loaded chunk in step with
// it. World-space edits are split per chunk; all voxel writes of a call land
// before any chunk is remeshed, so boundary faces are decided on final state.
//
// An Engine is not safe for concurrent use.
type Engine[V any] struct {
	cfg    Config
	logger Logger
	world  *volume.World[V]
	mesher *mesh.Mesher[V]

	// Modified cells of chunks whose remesh failed, retried on the next call.
	pending map[volume.ChunkPos][]volume.Coord
}

// NewEngine builds an engine from cfg. A nil logger discards all output.
func NewEngine[V any](cfg Config, newTarget mesh.TargetFactory, material mesh.MaterialFunc[V], logger Logger) (*Engine[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("voxmesh: invalid config: %w", err)
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Engine[V]{
		cfg:    cfg,
		logger: logger,
		world:  volume.NewWorld[V](),
		mesher: mesh.NewMesher(newTarget, material, mesh.Options{
			Growth:      cfg.CapacityFunc(),
			LabelPrefix: cfg.Buffer.LabelPrefix,
			Logger:      logger,
		}),
		pending: make(map[volume.ChunkPos][]volume.Coord),
	}, nil
}

func (e *Engine[V]) World() *volume.World[V] { return e.world }

func (e *Engine[V]) Mesh(pos volume.ChunkPos) *mesh.ChunkMesh { return e.mesher.Mesh(pos) }

// LoadChunk inserts c, which may already hold voxels, and meshes it. Faces of
// loaded neighbors that c now covers are removed. On error c is not loaded.
func (e *Engine[V]) LoadChunk(c *volume.Chunk[V]) (*mesh.ChunkMesh, error) {
	e.world.PutChunk(c)
	cm, err := e.mesher.Attach(c)
	if err != nil {
		e.world.DeleteChunk(c.Pos())
		e.logger.Warnf("load %v failed: %v", c, err)
		return nil, fmt.Errorf("voxmesh: load %v: %w", c, err)
	}
	e.logger.Debugf("loaded %v: %d voxels, %d quads", c, c.VoxelCount(), cm.QuadCount())
	return cm, nil
}

// UnloadChunk removes the chunk at pos and releases its mesh. Boundary voxels
// of loaded neighbors become exposed and get their faces back.
func (e *Engine[V]) UnloadChunk(pos volume.ChunkPos) error {
	if e.world.Chunk(pos) == nil {
		return fmt.Errorf("%w: chunk%v", ErrChunkNotLoaded, [3]int(pos))
	}
	e.mesher.Detach(pos)
	c := e.world.DeleteChunk(pos)
	delete(e.pending, pos)

	touched := map[volume.ChunkPos][]volume.Coord{}
	for _, face := range volume.Faces {
		n := e.world.Chunk(pos.Add(face.Offset))
		if n == nil || e.mesher.Mesh(n.Pos()) == nil {
			continue
		}
		if boundary := n.BoundaryVoxels(face.Dir.Inverse()); len(boundary) > 0 {
			touched[n.Pos()] = boundary
		}
	}
	e.logger.Debugf("unloaded %v, repairing %d neighbors", c, len(touched))
	return e.remesh(touched)
}

// PlaceVoxels creates the voxels of edits. Every target cell must be air and
// appear once; placing over a solid voxel panics. If a target chunk is not
// loaded nothing is written and the error wraps ErrChunkNotLoaded.
func (e *Engine[V]) PlaceVoxels(edits []VoxelEdit[V]) error {
	ptrs, err := e.resolve(editPositions(edits))
	if err != nil {
		return err
	}
	seen := make(map[volume.Coord]bool, len(edits))
	for i, p := range ptrs {
		if p.HasVoxel() || seen[edits[i].Pos] {
			panic(fmt.Sprintf("voxmesh: voxel at %v is already solid", edits[i].Pos))
		}
		seen[edits[i].Pos] = true
	}
	for i, p := range ptrs {
		p.Write(edits[i].Value)
	}
	return e.remesh(groupByChunk(ptrs))
}

// RemoveVoxels erases the voxels at the world positions. Air cells are left
// alone.
func (e *Engine[V]) RemoveVoxels(positions []volume.Coord) error {
	ptrs, err := e.resolve(positions)
	if err != nil {
		return err
	}
	for _, p := range ptrs {
		p.Erase()
	}
	return e.remesh(groupByChunk(ptrs))
}

// SetVoxels writes every edit. Cells that were air are placed; solid cells keep
// their geometry and have their visible faces re-shaded.
func (e *Engine[V]) SetVoxels(edits []VoxelEdit[V]) error {
	ptrs, err := e.resolve(editPositions(edits))
	if err != nil {
		return err
	}
	var placed, shaded []*volume.Pointer[V]
	for i, p := range ptrs {
		if p.HasVoxel() {
			shaded = append(shaded, p)
		} else {
			placed = append(placed, p)
		}
		p.Write(edits[i].Value)
	}
	for _, p := range shaded {
		for _, face := range volume.Faces {
			e.mesher.ReShade(p, face)
		}
	}
	return e.remesh(groupByChunk(placed))
}

// ImportModel writes the voxels of m with their minimum corner at origin,
// loading empty chunks where the model reaches outside the loaded world.
// value turns a palette index into a voxel.
func (e *Engine[V]) ImportModel(m *voxfile.Model, origin volume.Coord, value func(colorIndex byte) V) error {
	cells := m.Cells(origin)
	edits := make([]VoxelEdit[V], len(cells))
	for i, cell := range cells {
		cp, _ := volume.SplitWorld(cell.Pos)
		if e.world.Chunk(cp) == nil {
			if _, err := e.LoadChunk(volume.NewChunk[V](cp)); err != nil {
				return err
			}
		}
		edits[i] = VoxelEdit[V]{Pos: cell.Pos, Value: value(cell.ColorIndex)}
	}
	e.logger.Infof("importing %d voxels at %v", len(edits), origin)
	return e.SetVoxels(edits)
}

// VoxelAt reads the voxel at a world position. The bool is false for air and
// for unloaded chunks.
func (e *Engine[V]) VoxelAt(pos volume.Coord) (V, bool) {
	p := e.world.PointerAt(pos)
	if p == nil {
		var zero V
		return zero, false
	}
	return p.Read()
}

// Raycast returns the first solid voxel hit from origin along dir within
// maxDistance, or nil.
func (e *Engine[V]) Raycast(origin, dir mgl32.Vec3, maxDistance float32) *volume.Pointer[V] {
	return volume.NewRayCaster(e.world, origin).Cast(dir, e.cfg.Raycast.StepLength, maxDistance)
}

// Flush retries meshing chunks left pending by an earlier failure.
func (e *Engine[V]) Flush() error {
	return e.remesh(nil)
}

func (e *Engine[V]) Stats() Stats {
	s := Stats{
		Chunks:        e.world.ChunkCount(),
		Meshes:        e.mesher.MeshCount(),
		PendingChunks: len(e.pending),
	}
	for _, c := range e.world.Chunks() {
		s.Voxels += c.VoxelCount()
		if cm := e.mesher.Mesh(c.Pos()); cm != nil {
			s.Quads += cm.QuadCount()
			s.CapacityBytes += cm.Set().Capacity()
		}
	}
	return s
}

func (e *Engine[V]) resolve(positions []volume.Coord) ([]*volume.Pointer[V], error) {
	ptrs := make([]*volume.Pointer[V], len(positions))
	for i, w := range positions {
		p := e.world.PointerAt(w)
		if p == nil {
			cp, _ := volume.SplitWorld(w)
			return nil, fmt.Errorf("%w: chunk%v holding %v", ErrChunkNotLoaded, [3]int(cp), w)
		}
		ptrs[i] = p
	}
	return ptrs, nil
}

// remesh applies touched on top of whatever is pending, chunk by chunk in
// position order. Chunks after a failure stay pending.
func (e *Engine[V]) remesh(touched map[volume.ChunkPos][]volume.Coord) error {
	for pos, cells := range touched {
		e.pending[pos] = append(e.pending[pos], cells...)
	}
	order := make([]volume.ChunkPos, 0, len(e.pending))
	for pos := range e.pending {
		order = append(order, pos)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Less(order[j]) })

	for _, pos := range order {
		c := e.world.Chunk(pos)
		if err := e.mesher.Apply(c, e.pending[pos]); err != nil {
			e.logger.Errorf("remesh %v: %v (%d chunks pending)", c, err, len(e.pending))
			return fmt.Errorf("voxmesh: remesh %v: %w", c, err)
		}
		delete(e.pending, pos)
	}
	return nil
}

func editPositions[V any](edits []VoxelEdit[V]) []volume.Coord {
	out := make([]volume.Coord, len(edits))
	for i, ed := range edits {
		out[i] = ed.Pos
	}
	return out
}

func groupByChunk[V any](ptrs []*volume.Pointer[V]) map[volume.ChunkPos][]volume.Coord {
	out := map[volume.ChunkPos][]volume.Coord{}
	for _, p := range ptrs {
		pos := p.Chunk().Pos()
		out[pos] = append(out[pos], p.Pos())
	}
	return out
}
