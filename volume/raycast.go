package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// RayCaster walks a position through a world in small steps. While the ray is
// inside loaded chunks it follows neighbor links; once it leaves them it only
// consults the world again when it crosses a chunk boundary.
//
// Chunks must not be loaded or unloaded while a RayCaster is in use.
type RayCaster[V any] struct {
	world    *World[V]
	position mgl32.Vec3
	pointer  *Pointer[V]
}

func NewRayCaster[V any](w *World[V], origin mgl32.Vec3) *RayCaster[V] {
	return &RayCaster[V]{
		world:    w,
		position: origin,
		pointer:  w.PointerAt(cellOf(origin)),
	}
}

func (r *RayCaster[V]) Position() mgl32.Vec3 { return r.position }

// Pointer returns the cell the ray is in, or nil outside loaded chunks.
func (r *RayCaster[V]) Pointer() *Pointer[V] { return r.pointer }

// Step advances the ray by delta and returns the cell it ends in. Every
// component of delta must lie in [-1, 1].
func (r *RayCaster[V]) Step(delta mgl32.Vec3) *Pointer[V] {
	old := r.position
	r.position = old.Add(delta)

	if r.pointer != nil {
		tracking := true
		for axis := 0; axis < 3 && tracking; axis++ {
			if floorCell(old[axis]) == floorCell(r.position[axis]) {
				continue
			}
			n := r.pointer.Neighbor(FaceTowards(Axis(axis), delta[axis] > 0).Dir)
			if n == nil {
				tracking = false
				break
			}
			r.pointer = n
		}
		if tracking {
			return r.pointer
		}
	} else {
		oldChunk, _ := SplitWorld(cellOf(old))
		newChunk, _ := SplitWorld(cellOf(r.position))
		if oldChunk == newChunk {
			return nil
		}
	}

	r.pointer = r.world.PointerAt(cellOf(r.position))
	return r.pointer
}

// Cast steps from the current position along dir until it reaches a solid
// voxel or has travelled maxDistance.
func (r *RayCaster[V]) Cast(dir mgl32.Vec3, stepLength, maxDistance float32) *Pointer[V] {
	if dir.Len() == 0 || stepLength <= 0 || stepLength > 1 {
		return nil
	}
	step := dir.Normalize().Mul(stepLength)
	if r.pointer != nil && r.pointer.HasVoxel() {
		return r.pointer
	}
	for travelled := float32(0); travelled < maxDistance; travelled += stepLength {
		if p := r.Step(step); p != nil && p.HasVoxel() {
			return p
		}
	}
	return nil
}

func floorCell(v float32) int {
	return int(math.Floor(float64(v)))
}

func cellOf(v mgl32.Vec3) Coord {
	return Coord{floorCell(v[0]), floorCell(v[1]), floorCell(v[2])}
}
