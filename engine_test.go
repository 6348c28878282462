package voxmesh

import (
	"bytes"
	"testing"

	"github.com/gekko3d/voxmesh/gpu"
	"github.com/gekko3d/voxmesh/mesh"
	"github.com/gekko3d/voxmesh/volume"
	"github.com/gekko3d/voxmesh/voxfile"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textureMaterial(p *volume.Pointer[uint8], face *volume.Face) mesh.Material {
	v, _ := p.Read()
	return mesh.Material{Texture: int(v), Light: 63}
}

func newTestEngine(t *testing.T, cfg Config, targets mesh.TargetFactory, chunks ...volume.ChunkPos) *Engine[uint8] {
	t.Helper()
	e, err := NewEngine(cfg, targets, textureMaterial, nil)
	require.NoError(t, err)
	for _, pos := range chunks {
		_, err := e.LoadChunk(volume.NewChunk[uint8](pos))
		require.NoError(t, err)
	}
	return e
}

func place(vals uint8, coords ...volume.Coord) []VoxelEdit[uint8] {
	out := make([]VoxelEdit[uint8], len(coords))
	for i, c := range coords {
		out[i] = VoxelEdit[uint8]{Pos: c, Value: vals}
	}
	return out
}

func faceTexture(t *testing.T, cm *mesh.ChunkMesh, face *volume.Face, local volume.Coord) int {
	t.Helper()
	el := cm.Face(face.Key(volume.EncodePos(local)))
	require.NotNil(t, el, "no quad for %v of %v", face, local)
	return volume.MaterialCodec.Decode(int(mesh.DecodeWords(el.Data())[1]))[3]
}

func TestEngine_PlaceAndRemove(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{})

	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{0, 0, 0}, volume.Coord{1, 0, 0})))
	assert.Equal(t, 10, e.Stats().Quads)

	require.NoError(t, e.RemoveVoxels([]volume.Coord{{1, 0, 0}}))
	stats := e.Stats()
	assert.Equal(t, 6, stats.Quads)
	assert.Equal(t, 1, stats.Voxels)

	v, ok := e.VoxelAt(volume.Coord{0, 0, 0})
	assert.True(t, ok)
	assert.Equal(t, uint8(1), v)
	_, ok = e.VoxelAt(volume.Coord{1, 0, 0})
	assert.False(t, ok)
	_, ok = e.VoxelAt(volume.Coord{100, 0, 0})
	assert.False(t, ok, "unloaded chunk reads as empty")

	// Removing air is harmless.
	require.NoError(t, e.RemoveVoxels([]volume.Coord{{1, 0, 0}}))
	assert.Equal(t, 6, e.Stats().Quads)
}

func TestEngine_PlaceAcrossChunks(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{0, 0, 0}, volume.ChunkPos{1, 0, 0})

	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{15, 0, 0}, volume.Coord{16, 0, 0})))
	assert.Equal(t, 5, e.Mesh(volume.ChunkPos{0, 0, 0}).QuadCount())
	assert.Equal(t, 5, e.Mesh(volume.ChunkPos{1, 0, 0}).QuadCount())

	require.NoError(t, e.RemoveVoxels([]volume.Coord{{15, 0, 0}}))
	assert.Equal(t, 0, e.Mesh(volume.ChunkPos{0, 0, 0}).QuadCount())
	assert.Equal(t, 6, e.Mesh(volume.ChunkPos{1, 0, 0}).QuadCount())
}

func TestEngine_PlaceRejectsUnloadedChunk(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{})

	err := e.PlaceVoxels(place(1, volume.Coord{1, 1, 1}, volume.Coord{40, 0, 0}))
	require.ErrorIs(t, err, ErrChunkNotLoaded)
	_, ok := e.VoxelAt(volume.Coord{1, 1, 1})
	assert.False(t, ok, "nothing is written when any chunk is missing")
	assert.Equal(t, 0, e.Stats().Quads)

	assert.ErrorIs(t, e.RemoveVoxels([]volume.Coord{{-1, 0, 0}}), ErrChunkNotLoaded)
	assert.ErrorIs(t, e.SetVoxels(place(1, volume.Coord{0, 16, 0})), ErrChunkNotLoaded)
}

func TestEngine_PlaceOverSolidPanics(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{})
	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{2, 2, 2})))

	assert.Panics(t, func() { e.PlaceVoxels(place(1, volume.Coord{2, 2, 2})) })
	assert.Panics(t, func() { e.PlaceVoxels(place(1, volume.Coord{3, 2, 2}, volume.Coord{3, 2, 2})) })
	_, ok := e.VoxelAt(volume.Coord{3, 2, 2})
	assert.False(t, ok)
}

func TestEngine_SetVoxelsReShades(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{})
	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{3, 3, 3})))
	cm := e.Mesh(volume.ChunkPos{})

	require.NoError(t, e.SetVoxels([]VoxelEdit[uint8]{
		{Pos: volume.Coord{3, 3, 3}, Value: 7},
		{Pos: volume.Coord{4, 3, 3}, Value: 8},
	}))
	assert.Equal(t, 10, cm.QuadCount())
	assert.Equal(t, 7, faceTexture(t, cm, volume.Faces[volume.PosY], volume.Coord{3, 3, 3}))
	assert.Equal(t, 7, faceTexture(t, cm, volume.Faces[volume.NegX], volume.Coord{3, 3, 3}))
	assert.Equal(t, 8, faceTexture(t, cm, volume.Faces[volume.PosX], volume.Coord{4, 3, 3}))
	assert.False(t, cm.HasFace(volume.Faces[volume.PosX].Key(volume.EncodePos(volume.Coord{3, 3, 3}))))
}

func TestEngine_LoadChunkWithVoxels(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{})
	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{15, 4, 4})))

	c := volume.NewChunk[uint8](volume.ChunkPos{1, 0, 0})
	c.Pointer(volume.Coord{0, 4, 4}).Write(2)
	cm, err := e.LoadChunk(c)
	require.NoError(t, err)

	assert.Equal(t, 5, cm.QuadCount())
	assert.Equal(t, 5, e.Mesh(volume.ChunkPos{}).QuadCount())
	assert.Equal(t, 2, faceTexture(t, cm, volume.Faces[volume.PosX], volume.Coord{0, 4, 4}))
	assert.Panics(t, func() { e.LoadChunk(volume.NewChunk[uint8](volume.ChunkPos{1, 0, 0})) })
}

func TestEngine_LoadChunkFailureUnloads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Growth = GrowthConfig{Factor: 1, SlackElements: 0}
	e := newTestEngine(t, cfg, HostTargets(3*mesh.ElementSize))

	c := volume.NewChunk[uint8](volume.ChunkPos{})
	c.Pointer(volume.Coord{1, 1, 1}).Write(1)
	_, err := e.LoadChunk(c)
	require.ErrorIs(t, err, gpu.ErrOutOfMemory)
	assert.Nil(t, e.World().Chunk(volume.ChunkPos{}))
	assert.Equal(t, Stats{}, e.Stats())
}

func TestEngine_UnloadRepairsNeighbors(t *testing.T) {
	a, b := volume.ChunkPos{0, 0, 0}, volume.ChunkPos{1, 0, 0}
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), a, b)
	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{15, 0, 0}, volume.Coord{16, 0, 0})))
	require.Equal(t, 10, e.Stats().Quads)

	require.NoError(t, e.UnloadChunk(b))
	stats := e.Stats()
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Meshes)
	assert.Equal(t, 6, stats.Quads, "the face against the unloaded chunk is visible again")
	assert.Nil(t, e.Mesh(b))
	assert.True(t, e.Mesh(a).HasFace(volume.Faces[volume.PosX].Key(volume.EncodePos(volume.Coord{15, 0, 0}))))

	assert.ErrorIs(t, e.UnloadChunk(b), ErrChunkNotLoaded)
}

func TestEngine_FailedRemeshStaysPending(t *testing.T) {
	var targets []*gpu.HostTarget
	factory := func(string) gpu.BufferTarget {
		target := gpu.NewHostTarget(6 * mesh.ElementSize)
		targets = append(targets, target)
		return target
	}
	cfg := DefaultConfig()
	cfg.Growth = GrowthConfig{Factor: 1, SlackElements: 0}
	e := newTestEngine(t, cfg, factory, volume.ChunkPos{})

	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{1, 1, 1})))
	err := e.PlaceVoxels(place(1, volume.Coord{5, 5, 5}))
	require.ErrorIs(t, err, gpu.ErrOutOfMemory)

	stats := e.Stats()
	assert.Equal(t, 2, stats.Voxels)
	assert.Equal(t, 6, stats.Quads)
	assert.Equal(t, 1, stats.PendingChunks)
	assert.ErrorIs(t, e.Flush(), gpu.ErrOutOfMemory)

	// The next edit is merged with the pending one and the total fits.
	require.NoError(t, e.RemoveVoxels([]volume.Coord{{1, 1, 1}}))
	stats = e.Stats()
	assert.Equal(t, 0, stats.PendingChunks)
	assert.Equal(t, 6, stats.Quads)
	assert.True(t, e.Mesh(volume.ChunkPos{}).HasFace(volume.Faces[volume.PosY].Key(volume.EncodePos(volume.Coord{5, 5, 5}))))

	targets[0].Limit = 0
	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{9, 9, 9})))
	require.NoError(t, e.Flush())
	assert.Equal(t, 12, e.Stats().Quads)
}

func TestEngine_Raycast(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{0, 0, 0}, volume.ChunkPos{1, 0, 0})
	require.NoError(t, e.PlaceVoxels(place(1, volume.Coord{20, 1, 1})))

	hit := e.Raycast(mgl32.Vec3{0.5, 1.5, 1.5}, mgl32.Vec3{1, 0, 0}, 30)
	require.NotNil(t, hit)
	assert.Equal(t, volume.Coord{20, 1, 1}, hit.World())

	assert.Nil(t, e.Raycast(mgl32.Vec3{0.5, 1.5, 1.5}, mgl32.Vec3{1, 0, 0}, 10))
	assert.Nil(t, e.Raycast(mgl32.Vec3{0.5, 1.5, 1.5}, mgl32.Vec3{-1, 0, 0}, 30))
}

func TestEngine_ImportModel(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), HostTargets(0), volume.ChunkPos{})
	m := &voxfile.Model{
		SizeX: 2, SizeY: 1, SizeZ: 1,
		Voxels: []voxfile.Voxel{{X: 0, ColorIndex: 5}, {X: 1, ColorIndex: 6}},
	}

	require.NoError(t, e.ImportModel(m, volume.Coord{15, 0, 0}, func(c byte) uint8 { return c * 2 }))
	stats := e.Stats()
	assert.Equal(t, 2, stats.Chunks, "the chunk holding x=16 is loaded on demand")
	assert.Equal(t, 10, stats.Quads)

	v, ok := e.VoxelAt(volume.Coord{16, 0, 0})
	require.True(t, ok)
	assert.Equal(t, uint8(12), v)
	assert.Equal(t, 10, faceTexture(t, e.Mesh(volume.ChunkPos{}), volume.Faces[volume.PosY], volume.Coord{15, 0, 0}))
}

func TestEngine_LogsThroughLogger(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewWriterLogger(&out, &errOut, "test", true)
	e, err := NewEngine(DefaultConfig(), HostTargets(0), textureMaterial, logger)
	require.NoError(t, err)

	_, err = e.LoadChunk(volume.NewChunk[uint8](volume.ChunkPos{}))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[test] DEBUG: loaded chunk[0 0 0]")
	assert.Empty(t, errOut.String())
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Growth.Factor = 0.5
	_, err := NewEngine(cfg, HostTargets(0), textureMaterial, nil)
	assert.Error(t, err)
}
